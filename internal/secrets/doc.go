// Package secrets guards text before it leaves the process.
//
// A Guard runs two detectors over a snippet: a short list of regex rules
// tuned for email bodies (credentials, tokens, card numbers) and,
// optionally, the full gitleaks rule set. Findings never carry the matched
// value. Callers either block the text (enrichment) or redact it.
package secrets
