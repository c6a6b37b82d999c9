package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45")).
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	openStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Padding(0, 1)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
)

const openColumn = 2

// Summary renders a per-project table for the terminal.
func Summary(in Input, d Debug) string {
	projects := Projects(in)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("238"))).
		Headers("PROJECT", "EMAILS", "OPEN", "RESOLVED", "FALSE POS.").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == openColumn:
				return openStyle
			default:
				return cellStyle
			}
		})
	for _, p := range projects {
		t.Row(
			p.Name,
			strconv.Itoa(p.Messages),
			strconv.Itoa(p.Counts.Open),
			strconv.Itoa(p.Counts.Resolved),
			strconv.Itoa(p.Counts.FalsePositive),
		)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Portfolio health"))
	b.WriteString("\n")
	if len(projects) > 0 {
		b.WriteString(t.Render())
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf(
		"%d emails, %d filtered as noise, %d candidate flags, AI enrichment %s, %.2fs",
		d.EmailsLoaded, d.NoiseFiltered, d.CandidateFlags, d.LLMEnrichment, d.RuntimeSeconds,
	)))
	b.WriteString("\n")
	return b.String()
}
