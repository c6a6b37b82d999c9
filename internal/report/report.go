package report

import (
	"bytes"
	"embed"
	"fmt"
	"sort"
	"text/template"
	"time"

	"github.com/fyrsmithlabs/threadscan/internal/detection"
	"github.com/fyrsmithlabs/threadscan/internal/sanitize"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var markdownTmpl = template.Must(
	template.New("report.md.tmpl").
		Funcs(template.FuncMap{"quote": sanitize.Quotes}).
		ParseFS(templateFS, "templates/report.md.tmpl"),
)

// TimeLayout is the format of the generation timestamp in the header.
const TimeLayout = "2006-01-02 15:04"

// Input is everything the report is rendered from.
type Input struct {
	GeneratedAt time.Time
	AIEnabled   bool
	Flags       []detection.Flag

	// MessageCounts maps project name to the number of messages that
	// survived noise filtering.
	MessageCounts map[string]int
}

// ProjectView is one project section of the report.
type ProjectView struct {
	Name      string
	Messages  int
	Counts    detection.Counts
	Open      []detection.Flag
	Resolved  []detection.Flag
	NextSteps []NextStep
}

// NextStep is a suggested follow-up, one per thread and category.
type NextStep struct {
	Thread   string
	Category detection.Category
}

type view struct {
	GeneratedAt string
	AIEnabled   bool
	Totals      detection.Counts
	Projects    []ProjectView
}

// Projects groups the input by project, sorted by name. Projects with
// messages but no flags are included.
func Projects(in Input) []ProjectView {
	byName := make(map[string]*ProjectView)
	get := func(name string) *ProjectView {
		p, ok := byName[name]
		if !ok {
			p = &ProjectView{Name: name, Messages: in.MessageCounts[name]}
			byName[name] = p
		}
		return p
	}
	for name := range in.MessageCounts {
		get(name)
	}

	flagsBy := make(map[string][]detection.Flag)
	for _, f := range in.Flags {
		get(f.Project())
		flagsBy[f.Project()] = append(flagsBy[f.Project()], f)
	}

	out := make([]ProjectView, 0, len(byName))
	for name, p := range byName {
		flags := flagsBy[name]
		p.Counts = detection.Tally(flags)
		seen := make(map[NextStep]bool)
		for _, f := range flags {
			switch {
			case f.IsOpen():
				p.Open = append(p.Open, f)
				step := NextStep{Thread: f.Origin().Thread, Category: f.Category()}
				if !seen[step] {
					seen[step] = true
					p.NextSteps = append(p.NextSteps, step)
				}
			case f.IsResolved():
				p.Resolved = append(p.Resolved, f)
			}
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Markdown renders the full health report.
func Markdown(in Input) (string, error) {
	if in.GeneratedAt.IsZero() {
		in.GeneratedAt = time.Now()
	}
	v := view{
		GeneratedAt: in.GeneratedAt.Format(TimeLayout),
		AIEnabled:   in.AIEnabled,
		Totals:      detection.Tally(in.Flags),
		Projects:    Projects(in),
	}
	var buf bytes.Buffer
	if err := markdownTmpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("rendering report: %w", err)
	}
	return buf.String(), nil
}
