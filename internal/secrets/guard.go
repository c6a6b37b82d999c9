package secrets

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	"go.uber.org/zap"
)

// Guard detects and redacts sensitive data. It is safe for concurrent use.
type Guard struct {
	cfg      *Config
	gitleaks *gitleaksConfig.Config
	logger   *zap.Logger
}

// New builds a Guard. A nil cfg means DefaultConfig.
func New(cfg *Config, logger *zap.Logger) (*Guard, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &Guard{cfg: cfg, logger: logger}
	if !cfg.Enabled || !cfg.Gitleaks {
		return g, nil
	}

	allow, err := LoadAllowlist(cfg.AllowlistFile)
	if err != nil {
		return nil, err
	}
	base, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("loading gitleaks rules: %w", err)
	}
	glCfg := base.Config
	if !allow.empty() {
		glCfg.Allowlists = append(glCfg.Allowlists, allow.gitleaks())
	}
	for _, pattern := range cfg.AllowList {
		extra := &Allowlist{Regexes: []string{pattern}}
		glCfg.Allowlists = append(glCfg.Allowlists, extra.gitleaks())
	}
	g.gitleaks = &glCfg
	logger.Debug("gitleaks rules loaded", zap.Int("rules", len(glCfg.Rules)))
	return g, nil
}

// MustNew is like New but panics on error.
func MustNew(cfg *Config, logger *zap.Logger) *Guard {
	g, err := New(cfg, logger)
	if err != nil {
		panic(err)
	}
	return g
}

// Enabled reports whether the guard inspects anything.
func (g *Guard) Enabled() bool {
	return g != nil && g.cfg.Enabled
}

// Sensitive reports whether text contains anything the guard would redact.
func (g *Guard) Sensitive(text string) bool {
	return g.Check(text).HasFindings()
}

// Check detects secrets without modifying text.
func (g *Guard) Check(text string) *Result {
	result := &Result{Text: text}
	if !g.Enabled() || text == "" {
		return result
	}
	g.checkRules(text, result)
	g.checkGitleaks(text, result)
	return result
}

// Redact replaces every finding with the redaction string.
func (g *Guard) Redact(text string) *Result {
	result := g.Check(text)
	if !result.HasFindings() {
		return result
	}

	spans := make([]Finding, len(result.Findings))
	copy(spans, result.Findings)
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var b strings.Builder
	pos := 0
	for _, s := range spans {
		if s.end <= pos {
			continue
		}
		if s.start > pos {
			b.WriteString(text[pos:s.start])
		}
		b.WriteString(g.cfg.RedactionString)
		pos = s.end
	}
	b.WriteString(text[pos:])
	result.Text = b.String()
	return result
}

func (g *Guard) checkRules(text string, result *Result) {
	for _, rule := range g.cfg.compiledRules {
		if len(rule.keywords) > 0 && !anyMatch(rule.keywords, text) {
			continue
		}
		for _, loc := range rule.pattern.FindAllStringIndex(text, -1) {
			if g.allowed(text[loc[0]:loc[1]]) {
				continue
			}
			result.add(Finding{
				RuleID:      rule.ID,
				Description: rule.Description,
				Severity:    rule.Severity,
				Source:      SourceRules,
				Line:        strings.Count(text[:loc[0]], "\n") + 1,
				start:       loc[0],
				end:         loc[1],
			})
		}
	}
}

// checkGitleaks runs a fresh detector per call; a gitleaks Detector
// accumulates findings across scans.
func (g *Guard) checkGitleaks(text string, result *Result) {
	if g.gitleaks == nil {
		return
	}
	detector := detect.NewDetector(*g.gitleaks)
	for _, f := range detector.DetectString(text) {
		if f.Secret == "" || g.allowed(f.Secret) {
			continue
		}
		for _, start := range indexAll(text, f.Secret) {
			result.add(Finding{
				RuleID:      f.RuleID,
				Description: f.Description,
				Severity:    "high",
				Source:      SourceGitleaks,
				Line:        strings.Count(text[:start], "\n") + 1,
				start:       start,
				end:         start + len(f.Secret),
			})
		}
	}
}

func (g *Guard) allowed(match string) bool {
	return anyMatch(g.cfg.compiledAllowList, match)
}

func anyMatch(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

func indexAll(s, sub string) []int {
	var out []int
	for off := 0; ; {
		i := strings.Index(s[off:], sub)
		if i < 0 {
			return out
		}
		out = append(out, off+i)
		off += i + len(sub)
	}
}
