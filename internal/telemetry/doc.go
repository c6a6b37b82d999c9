// Package telemetry sets up OpenTelemetry tracing and metrics export for
// threadscan.
//
// Telemetry is off by default. When enabled, spans and metrics are shipped
// over OTLP (gRPC or HTTP) to a collector:
//
//	tel, err := telemetry.New(ctx, cfg, logger)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx, span := tel.Tracer("threadscan/pipeline").Start(ctx, "pipeline.Run")
//	defer span.End()
//
// Exporter failures never stop an analysis run. The instance is marked
// degraded and falls back to the global no-op providers.
//
// Tests use NewTestTelemetry, which records spans and metrics in memory.
package telemetry
