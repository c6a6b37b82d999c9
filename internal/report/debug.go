package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Enrichment states recorded in Debug.LLMEnrichment.
const (
	EnrichmentEnabled  = "enabled"
	EnrichmentDisabled = "disabled"
)

// Debug holds the run metrics written next to the report.
type Debug struct {
	RunID            string  `json:"run_id"`
	EmailsLoaded     int     `json:"emails_loaded"`
	FilesLoaded      int     `json:"files_loaded"`
	FileErrors       int     `json:"file_errors"`
	FilesBlocked     int     `json:"files_blocked"`
	ProjectsDetected int     `json:"projects_detected"`
	NoiseFiltered    int     `json:"noise_filtered"`
	CandidateFlags   int     `json:"candidate_flags"`
	OpenFlags        int     `json:"open_flags"`
	ResolvedFlags    int     `json:"resolved_flags"`
	LLMEnrichment    string  `json:"llm_enrichment"`
	LLMCalls         int     `json:"llm_calls"`
	LLMBlocked       int     `json:"llm_blocked"`
	FalsePositives   int     `json:"false_positives"`
	ColleaguesLoaded int     `json:"colleagues_loaded"`
	RuntimeSeconds   float64 `json:"runtime_seconds"`
}

// JSON returns the indented encoding of d.
func (d Debug) JSON() ([]byte, error) {
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding debug metrics: %w", err)
	}
	return append(b, '\n'), nil
}

// WriteDebug writes d as indented JSON to path.
func WriteDebug(path string, d Debug) error {
	b, err := d.JSON()
	if err != nil {
		return err
	}
	return writeFile(path, b)
}

// WriteMarkdown writes the rendered report to path.
func WriteMarkdown(path, md string) error {
	return writeFile(path, []byte(md))
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
