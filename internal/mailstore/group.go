package mailstore

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

var (
	projectPrefixRe = regexp.MustCompile(`(?i)^(?:Re\s*:\s*|Fwd\s*:\s*)*(.+?)\s*[-–]\s`)
	replyPrefixRe   = regexp.MustCompile(`(?i)^(?:Re|Fwd|FW)\s*:\s*`)
	ticketRe        = regexp.MustCompile(`\b[A-Z]+-\d+\b`)
	isoDateRe       = regexp.MustCompile(`\b\d{4}[./-]\d{2}[./-]\d{2}\b`)
	longDateRe      = regexp.MustCompile(`\b\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+\d{4}\b`)
)

var skipProjectWords = map[string]bool{
	"re": true, "fwd": true, "fw": true, "subject": true, "urgent": true, "small": true,
}

// ProjectName derives the project a subject belongs to: the "Name - ..."
// prefix when present, else the normalised subject, else Unclassified.
func ProjectName(subject string) string {
	if name := explicitProject(subject); name != "" {
		return name
	}
	if name := NormalizeSubject(subject); name != "" {
		return name
	}
	return UnclassifiedProject
}

func explicitProject(subject string) string {
	m := projectPrefixRe.FindStringSubmatch(strings.TrimSpace(subject))
	if m == nil {
		return ""
	}
	candidate := strings.TrimSpace(m[1])
	if skipProjectWords[strings.ToLower(candidate)] || utf8.RuneCountInString(candidate) <= 2 {
		return ""
	}
	return candidate
}

// NormalizeSubject strips up to two reply/forward prefixes, ticket ids and
// dates, lower-cases and collapses whitespace.
func NormalizeSubject(subject string) string {
	s := strings.TrimSpace(subject)
	s = replyPrefixRe.ReplaceAllString(s, "")
	s = replyPrefixRe.ReplaceAllString(s, "")
	s = ticketRe.ReplaceAllString(s, "")
	s = isoDateRe.ReplaceAllString(s, "")
	s = longDateRe.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// GroupByProject buckets messages by ProjectName of their subject. Each
// project's messages are sorted by date, unknown last; projects are
// returned sorted by name.
func GroupByProject(msgs []Message) []Project {
	byName := make(map[string][]Message)
	for _, m := range msgs {
		m.Project = ProjectName(m.Subject)
		byName[m.Project] = append(byName[m.Project], m)
	}

	projects := make([]Project, 0, len(byName))
	for name, list := range byName {
		sortByDate(list)
		projects = append(projects, Project{Name: name, Messages: list})
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Name < projects[j].Name })
	return projects
}
