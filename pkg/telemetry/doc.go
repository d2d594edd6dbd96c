// Package telemetry provides logging, tracing and metrics for modelops.
//
// The package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry) and metrics (Prometheus) behind a single Telemetry value
// built at startup:
//
//	cfg := telemetry.DefaultConfig()
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
// # Logging
//
// Logs go to stderr by default so that command output on stdout stays
// machine-readable:
//
//	logger := tel.Logger.NewComponentLogger("engine").Zerolog()
//	logger.Info().Str("node", "web").Msg("resolved operation")
//
// # Tracing
//
// Engine code starts spans through StartSpan, which uses the globally
// installed provider. With tracing disabled spans are no-ops.
//
//	ctx, span := telemetry.StartSpan(ctx, "operation.execute",
//	    telemetry.AttrNode.String("web"),
//	    telemetry.AttrOperation.String("create"),
//	)
//	defer span.End()
//
// # Metrics
//
// Metrics are registered on a private registry. A nil *Metrics drops every
// observation, so callers never need to check for it:
//
//	tel.Metrics.RecordAttemptStarted()
//	tel.Metrics.RecordAttempt("create", "success", "terraform", elapsed)
//	tel.Metrics.RecordAuditFailure("file")
//
// The HTTP endpoint is served only when Metrics.ListenAddress is set.
package telemetry
