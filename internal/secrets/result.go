package secrets

import "sort"

// Result is the outcome of a Check or Redact call.
type Result struct {
	// Text is the input for Check and the redacted text for Redact.
	Text string `json:"-"`

	// Findings never include the matched value.
	Findings []Finding `json:"findings,omitempty"`

	// ByRule maps rule IDs to finding counts.
	ByRule map[string]int `json:"by_rule,omitempty"`
}

// Finding is one detected secret.
type Finding struct {
	RuleID      string `json:"rule_id"`
	Description string `json:"description"`
	Severity    string `json:"severity,omitempty"`
	Source      string `json:"source"`
	Line        int    `json:"line,omitempty"`

	start, end int
}

// Detector sources.
const (
	SourceRules    = "rules"
	SourceGitleaks = "gitleaks"
)

// HasFindings reports whether anything was detected.
func (r *Result) HasFindings() bool {
	return len(r.Findings) > 0
}

// RuleIDs returns the sorted unique rule IDs that matched.
func (r *Result) RuleIDs() []string {
	ids := make([]string, 0, len(r.ByRule))
	for id := range r.ByRule {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Result) add(f Finding) {
	r.Findings = append(r.Findings, f)
	if r.ByRule == nil {
		r.ByRule = make(map[string]int)
	}
	r.ByRule[f.RuleID]++
}
