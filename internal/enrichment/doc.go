// Package enrichment re-classifies OPEN flags with a language model.
//
// Enrichment is optional and strictly additive: every failure leaves the
// flag exactly as the detection engine produced it. Two tiers run in
// sequence. Tier 1 uses a cheap model on every OPEN flag; Tier 2 re-runs
// a stronger model on flags Tier 1 rated HIGH priority and genuine. A
// Tier 2 failure keeps the Tier 1 result.
//
// Before any call the evidence snippet is stripped of prompt-injection
// phrases and checked by the secrets guard. A snippet carrying sensitive
// data is never sent.
//
// The API key is never logged. Failures are logged with the error type
// only.
package enrichment
