// Package telemetry sets up OpenTelemetry tracing and metrics export.
//
// When enabled, spans and metrics are exported over OTLP (gRPC or
// HTTP/protobuf) and the global providers are replaced, so packages that call
// otel.Tracer and otel.Meter pick them up. When disabled everything stays
// no-op.
//
//	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Export failures never stop the server; the instance is marked degraded
// instead.
//
// Tests use NewTestTelemetry, which records spans and metrics in memory.
package telemetry
