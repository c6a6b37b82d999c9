package detection

// ExtractSignals scans msgs for action and risk cues and returns one OPEN
// flag per category per message at most.
func ExtractSignals(rules *Rules, msgs []Message, project string) []Flag {
	var flags []Flag
	for _, m := range msgs {
		if f, ok := rules.scan(CategoryAction, rules.action, m, project); ok {
			flags = append(flags, f)
		}
		if f, ok := rules.scan(CategoryRisk, rules.risk, m, project); ok {
			flags = append(flags, f)
		}
	}
	return flags
}

// scan tries cues in declaration order. A match under hypothetical framing
// ("if there's any blocker") is discarded and the next cue is tried.
func (r *Rules) scan(category Category, cues []rule, m Message, project string) (Flag, bool) {
	for _, cue := range cues {
		loc := cue.regex.FindStringIndex(m.Body)
		if loc == nil {
			continue
		}
		if r.isConditional(m.Body, loc[0]) {
			continue
		}
		snippet := window(m.Body, loc[0], loc[1], r.windowBefore, r.windowAfter, r.snippetLength)
		if snippet == "" {
			continue
		}
		return newFlag(category, project, m, snippet, cue.id), true
	}
	return Flag{}, false
}

func (r *Rules) isConditional(body string, matchStart int) bool {
	return conditionalRe.MatchString(lookback(body, matchStart, r.lookback))
}
