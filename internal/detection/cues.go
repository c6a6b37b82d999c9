package detection

// DefaultCueConfig returns the stock cue lists and thresholds.
func DefaultCueConfig() CueConfig {
	return CueConfig{
		ActionCues:        DefaultActionCues(),
		RiskCues:          DefaultRiskCues(),
		ResolutionCues:    DefaultResolutionCues(),
		CorrectionCues:    DefaultCorrectionCues(),
		NoiseKeywords:     DefaultNoiseKeywords(),
		NoiseMinHits:      DefaultNoiseMinHits,
		NoiseMaxWords:     DefaultNoiseMaxWords,
		SnippetLength:     DefaultSnippetLength,
		Lookback:          DefaultLookback,
		WindowBefore:      DefaultWindowBefore,
		WindowAfter:       DefaultWindowAfter,
		MinSharedKeywords: DefaultMinSharedKeywords,
	}
}

// DefaultActionCues signal a request, question or task.
func DefaultActionCues() []string {
	return []string{
		`\bplease\b.*[\?!]`,
		`\bcan you\b`,
		`\bcould you\b`,
		`\bwe need\b`,
		`\bwhat.s the status\b`,
		`\bstill pending\b`,
		`\bany progress\b`,
		`\bany feedback\b`,
		`\bplease estimate\b`,
		`\bplease review\b`,
		`\bplease look into\b`,
		`\bplease investigate\b`,
		`\bplease take a look\b`,
		`\bplease help\b`,
		`\bplease create\b`,
		`\bplease ask\b`,
		`\blet me know\b`,
		`\bhas this been confirmed\b`,
		`\bwhat do you think\b`,
		`\bcan we\b.*\?`,
		`\bdo we need\b`,
		`\bhow should we\b`,
		`\bwhat should\b`,
		`\bstill open\b`,
	}
}

// DefaultRiskCues signal blockers, scope changes and risks.
func DefaultRiskCues() []string {
	return []string{
		`\bnot included in the estimate\b`,
		`\bre-plan\b`,
		`\bextra effort\b`,
		`\bnot in the.*spec`,
		`\bnew requirement\b`,
		`\bscope\b`,
		`\bblocked\b|\bblocker\b`,
		`\bcan.t proceed\b`,
		`\bstuck\b`,
		`\burgent\b`,
		`\bgdpr\b`,
		`\bproduction\b.*\bfix\b`,
		`\bwrong environment variable\b`,
		`\bfaulty\b`,
		`\bplaceholder\b`,
		`\bnice to have\b`,
		`\bextra development\b`,
		`\bsidelined\b`,
	}
}

// DefaultResolutionCues signal that an issue was addressed.
func DefaultResolutionCues() []string {
	return []string{
		`\bfixed\b`,
		`\bresolved\b`,
		`\bdone\b`,
		`\bcompleted\b`,
		`\bworking (again|now)\b`,
		`\bit works\b`,
		`\bremoved from.*scope\b`,
		`\bwe can remove\b`,
		`\bcan go live\b`,
		`\bi.ll (fix|check|do|handle|implement|update|continue)\b`,
		`\bi.ve (fixed|pushed|enlarged|updated|closed)\b`,
		`\bsure,? i can\b`,
		`\bokay.*i.ll\b`,
		`\bthat.s clear\b`,
		`\bget it done\b`,
	}
}

// DefaultCorrectionCues signal that an earlier reply was wrong or
// overridden. A later message in the same thread matching one of these
// invalidates an earlier resolution candidate.
func DefaultCorrectionCues() []string {
	return []string{
		`\bstop\b`,
		`\bno,\s`,
		`\bwait\b`,
		`\bnot what\b`,
		`\bthat.s wrong\b`,
		`\bonly modify\b`,
		`\bonly mentioned\b`,
		`\bthat.s not\b`,
		`\bdo not\b`,
		`\bdon.t\b`,
	}
}

// DefaultNoiseKeywords mark social or off-topic content.
func DefaultNoiseKeywords() []string {
	return []string{
		`\blunch\b`,
		`\brestaurant\b`,
		`\bpizza\b`,
		`\bmexican\b`,
		`\bfried chicken\b`,
		`\bmarzipan\b`,
		`\bcake\b`,
		`\bbirthday\b`,
		`\bchip in\b`,
		`\bsurprise\b`,
		`\bnot meant for here\b`,
		`\bwasn.t meant for\b`,
		`\bwrong.*thread\b`,
	}
}
