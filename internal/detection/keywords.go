package detection

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var wordRe = regexp.MustCompile(`[a-záéíóöőúüű]+`)

var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		the a an is it to in on for and or but of with this that we i you he she
		hi thanks please thank ok okay yes no regards best sorry sure also as at
		by do if my not so up can will would could should have has had been be
		are was were get got just now then there here what how when which who
		its our your their me him her them us`) {
		stopWords[w] = struct{}{}
	}
}

// Keywords returns the significant words of text: lower-cased alphabetic
// tokens longer than two characters that are not stop words.
func Keywords(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		if utf8.RuneCountInString(w) <= 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

// sharedKeywords counts the keywords a and b have in common.
func sharedKeywords(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for w := range a {
		if _, ok := b[w]; ok {
			n++
		}
	}
	return n
}
