// Package pipeline runs one analysis pass: load threads, group them into
// projects, filter noise, extract signals, detect resolutions, optionally
// enrich the open flags, and assemble what the report needs.
//
// Per-project detection fans out over a bounded errgroup. Each stage gets
// a span, and run totals are exported as Prometheus metrics.
package pipeline
