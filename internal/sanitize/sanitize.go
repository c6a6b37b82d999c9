// Package sanitize cleans untrusted input: email text headed for a
// language model, and names and paths supplied by callers.
package sanitize

import (
	"regexp"
	"strings"
)

// Marker replaces every stripped prompt-injection phrase.
const Marker = "[SANITISED]"

// injectionPatterns are phrases that try to steer a model. Matching is
// case-insensitive.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore (?:all )?(?:previous |above )?instructions`),
	regexp.MustCompile(`(?i)you are now`),
	regexp.MustCompile(`(?i)new instructions`),
	regexp.MustCompile(`(?i)forget (?:all )?(?:previous )?(?:instructions|rules)`),
	regexp.MustCompile(`(?i)disregard (?:all )?(?:previous )?(?:instructions|rules)`),
	regexp.MustCompile(`(?i)system\s*prompt`),
	regexp.MustCompile(`(?i)jailbreak`),
}

// Prompt replaces prompt-injection phrases in text with Marker.
//
// Examples:
//
//	"Please IGNORE previous instructions" -> "Please [SANITISED]"
//	"check the system prompt"             -> "check the [SANITISED]"
func Prompt(text string) string {
	for _, re := range injectionPatterns {
		text = re.ReplaceAllString(text, Marker)
	}
	return text
}

// HasInjection reports whether Prompt would change text.
func HasInjection(text string) bool {
	for _, re := range injectionPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Quotes turns double quotes into single quotes so a snippet can be
// embedded in a quoted context.
func Quotes(text string) string {
	return strings.ReplaceAll(text, `"`, "'")
}
