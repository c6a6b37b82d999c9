// Package logging wraps zap for threadscan.
//
// Loggers write to stderr so that report output on stdout stays clean, and
// can additionally feed an OpenTelemetry log provider. Context carries the
// analysis run ID and the project being processed:
//
//	ctx = logging.WithRunID(ctx, runID)
//	ctx = logging.WithProject(ctx, "Phoenix")
//	logger.Info(ctx, "signals extracted", zap.Int("flags", n))
//
// Field names that usually hold credentials or raw email text (api_key,
// authorization, body, snippet) are redacted by the encoder, as are values
// that look like bearer tokens or OpenAI keys. Errors are never sampled.
//
// Packages that only need a *zap.Logger take one directly and add
// ContextFields themselves.
package logging
