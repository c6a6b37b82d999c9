package detection

import (
	"encoding/json"
	"time"
)

// Category is the kind of issue a flag represents.
type Category string

const (
	CategoryAction Category = "ACTION"
	CategoryRisk   Category = "RISK"
)

// Label is the upper-case wording used in reports and prompts.
func (c Category) Label() string {
	if c == CategoryRisk {
		return "RISK_BLOCKER"
	}
	return "UNRESOLVED_ACTION"
}

// Status is the lifecycle state of a flag.
type Status string

const (
	StatusOpen          Status = "OPEN"
	StatusResolved      Status = "RESOLVED"
	StatusFalsePositive Status = "FALSE_POSITIVE"
)

// Message is the read-only view of a parsed email the core works on.
// Index is the 0-based position within Thread after chronological sort.
// A nil Date means the timestamp is unknown.
type Message struct {
	Thread string
	Index  int
	Date   *time.Time
	Body   string
	Sender string
}

// Origin identifies the message that triggered a flag.
type Origin struct {
	Thread string `json:"thread"`
	Index  int    `json:"index"`
}

// Enrichment holds the metadata an external classifier may attach to a flag.
type Enrichment struct {
	Owner      string `json:"owner,omitempty"`
	Priority   string `json:"priority,omitempty"`
	Summary    string `json:"summary,omitempty"`
	Confidence string `json:"confidence,omitempty"`
}

// Flag is a detected action item or risk carrying verbatim evidence.
//
// Fields are only reachable through accessors. Status and snippets change
// through named transitions: flags are created by ExtractSignals, resolved
// by DetectResolutions and enriched or declassified by the enrichment step.
type Flag struct {
	category    Category
	status      Status
	project     string
	origin      Origin
	trigger     string
	triggerDate *time.Time
	resolution  string
	cue         string
	enrichment  Enrichment
}

// newFlag is the extract transition. The caller guarantees a non-empty
// snippet lifted from msg.
func newFlag(category Category, project string, msg Message, snippet, cue string) Flag {
	return Flag{
		category:    category,
		status:      StatusOpen,
		project:     project,
		origin:      Origin{Thread: msg.Thread, Index: msg.Index},
		trigger:     snippet,
		triggerDate: msg.Date,
		cue:         cue,
	}
}

// resolve is the resolve transition. Only OPEN flags move; a RESOLVED
// flag keeps its first resolution snippet.
func (f *Flag) resolve(snippet string) bool {
	if f.status != StatusOpen || snippet == "" {
		return false
	}
	f.status = StatusResolved
	f.resolution = snippet
	return true
}

// Enrich attaches classifier metadata to an OPEN flag. It reports whether
// the flag was changed.
func (f *Flag) Enrich(e Enrichment) bool {
	if f.status != StatusOpen {
		return false
	}
	f.enrichment = e
	return true
}

// Declassify marks an OPEN flag as a false positive. It reports whether
// the flag was changed.
func (f *Flag) Declassify() bool {
	if f.status != StatusOpen {
		return false
	}
	f.status = StatusFalsePositive
	return true
}

func (f Flag) Category() Category        { return f.category }
func (f Flag) Status() Status            { return f.status }
func (f Flag) Project() string           { return f.project }
func (f Flag) Origin() Origin            { return f.origin }
func (f Flag) TriggerSnippet() string    { return f.trigger }
func (f Flag) TriggerDate() *time.Time   { return f.triggerDate }
func (f Flag) ResolutionSnippet() string { return f.resolution }
func (f Flag) Cue() string               { return f.cue }
func (f Flag) Enrichment() Enrichment    { return f.enrichment }
func (f Flag) Owner() string             { return f.enrichment.Owner }
func (f Flag) Priority() string          { return f.enrichment.Priority }
func (f Flag) Summary() string           { return f.enrichment.Summary }
func (f Flag) Confidence() string        { return f.enrichment.Confidence }
func (f Flag) IsOpen() bool              { return f.status == StatusOpen }
func (f Flag) IsResolved() bool          { return f.status == StatusResolved }
func (f Flag) IsFalsePositive() bool     { return f.status == StatusFalsePositive }

// flagJSON is the wire form of a Flag.
type flagJSON struct {
	Category          Category   `json:"category"`
	Status            Status     `json:"status"`
	Project           string     `json:"project"`
	Source            Origin     `json:"source"`
	TriggerSnippet    string     `json:"trigger_snippet"`
	TriggerDate       *time.Time `json:"trigger_date,omitempty"`
	ResolutionSnippet string     `json:"resolution_snippet,omitempty"`
	Cue               string     `json:"cue"`
	Enrichment
}

// MarshalJSON implements json.Marshaler.
func (f Flag) MarshalJSON() ([]byte, error) {
	return json.Marshal(flagJSON{
		Category:          f.category,
		Status:            f.status,
		Project:           f.project,
		Source:            f.origin,
		TriggerSnippet:    f.trigger,
		TriggerDate:       f.triggerDate,
		ResolutionSnippet: f.resolution,
		Cue:               f.cue,
		Enrichment:        f.enrichment,
	})
}

// Counts summarises a flag set by status and category.
type Counts struct {
	Open            int `json:"open"`
	Resolved        int `json:"resolved"`
	FalsePositive   int `json:"false_positive"`
	OpenActions     int `json:"open_actions"`
	OpenRisks       int `json:"open_risks"`
	ResolvedActions int `json:"resolved_actions"`
	ResolvedRisks   int `json:"resolved_risks"`
}

// Tally counts flags by status and category.
func Tally(flags []Flag) Counts {
	var c Counts
	for _, f := range flags {
		switch f.status {
		case StatusOpen:
			c.Open++
			if f.category == CategoryAction {
				c.OpenActions++
			} else {
				c.OpenRisks++
			}
		case StatusResolved:
			c.Resolved++
			if f.category == CategoryAction {
				c.ResolvedActions++
			} else {
				c.ResolvedRisks++
			}
		case StatusFalsePositive:
			c.FalsePositive++
		}
	}
	return c
}
