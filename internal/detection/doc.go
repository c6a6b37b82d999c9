// Package detection is the deterministic analysis core of threadscan.
//
// It runs three stages over the messages of one project:
//
//   - FilterNoise drops short social/off-topic messages.
//   - ExtractSignals scans the surviving messages for action and risk cues and
//     creates OPEN flags carrying a verbatim evidence snippet.
//   - DetectResolutions looks for a later acknowledgement of each flag,
//     subject to ordering, topical and correction constraints, and moves the
//     flag to RESOLVED with a resolution snippet.
//
// # Configuration
//
// All cue lists and thresholds live in CueConfig. Compile turns a CueConfig
// into an immutable Rules value and rejects invalid patterns before any
// message is processed:
//
//	rules, err := detection.Compile(detection.DefaultCueConfig())
//	if err != nil {
//	    return err
//	}
//	clean, dropped := detection.FilterNoise(rules, msgs)
//	flags := detection.ExtractSignals(rules, clean, "Phoenix")
//	flags = detection.DetectResolutions(rules, flags, clean)
//
// Pattern lists are ordered and first match wins, so declaration order is
// significant. Patterns are matched case-insensitively.
//
// # Ordering
//
// When two messages cannot be ordered (one timestamp missing, or no
// timestamps across different threads) the candidate is treated as later
// than the origin. This deliberately favours a false resolution over a
// missed one when metadata is sparse.
//
// # Concurrency
//
// Every function in this package is pure apart from the flags it is handed.
// Rules is safe for concurrent use, so projects can be analysed in parallel.
package detection
