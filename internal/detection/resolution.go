package detection

// DetectResolutions searches msgs for a later acknowledgement of each OPEN
// flag and resolves the flag against the first candidate, in scan order,
// that passes every rule. Flags that are not OPEN are left untouched, so
// running it twice yields the same flags. The flags slice is updated in
// place and returned.
func DetectResolutions(rules *Rules, flags []Flag, msgs []Message) []Flag {
	for i := range flags {
		f := &flags[i]
		if f.status != StatusOpen {
			continue
		}
		if snippet, ok := rules.findResolution(f, msgs); ok {
			f.resolve(snippet)
		}
	}
	return flags
}

// DetectProjectResolutions routes each flag to the messages of its own
// project. Flags whose project has no messages stay OPEN.
func DetectProjectResolutions(rules *Rules, flags []Flag, byProject map[string][]Message) []Flag {
	for i := range flags {
		f := &flags[i]
		if f.status != StatusOpen {
			continue
		}
		if snippet, ok := rules.findResolution(f, byProject[f.project]); ok {
			f.resolve(snippet)
		}
	}
	return flags
}

func (r *Rules) findResolution(f *Flag, msgs []Message) (string, bool) {
	var triggerKeywords map[string]struct{}

	for _, m := range msgs {
		if m.Thread == f.origin.Thread && m.Index == f.origin.Index {
			continue
		}
		if !isLater(m, f) {
			continue
		}

		// A single thread is one conversation; only other threads need to
		// prove they are about the same topic.
		if m.Thread != f.origin.Thread {
			if triggerKeywords == nil {
				triggerKeywords = Keywords(f.trigger)
			}
			if sharedKeywords(triggerKeywords, Keywords(m.Body)) < r.minSharedKeywords {
				continue
			}
		}

		_, loc, ok := firstMatch(r.resolution, m.Body)
		if !ok {
			continue
		}
		if r.isCorrected(m, msgs) {
			continue
		}

		snippet := window(m.Body, loc[0], loc[1], r.windowBefore, r.windowAfter, 0)
		if snippet == "" {
			continue
		}
		return snippet, true
	}
	return "", false
}

// isLater reports whether candidate comes after the flag's origin.
//
// Both timestamps known: strict comparison. Both unknown in the same
// thread: thread position. Anything else cannot be disproven and counts as
// later.
func isLater(candidate Message, f *Flag) bool {
	if f.triggerDate != nil && candidate.Date != nil {
		return candidate.Date.After(*f.triggerDate)
	}
	if f.triggerDate == nil && candidate.Date == nil && candidate.Thread == f.origin.Thread {
		return candidate.Index > f.origin.Index
	}
	return true
}

// isCorrected reports whether any message later in the candidate's thread
// carries a correction cue.
func (r *Rules) isCorrected(candidate Message, msgs []Message) bool {
	for _, m := range msgs {
		if m.Thread != candidate.Thread || m.Index <= candidate.Index {
			continue
		}
		if _, _, ok := firstMatch(r.correction, m.Body); ok {
			return true
		}
	}
	return false
}
