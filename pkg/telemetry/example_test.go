package telemetry_test

import (
	"context"
	"time"

	"github.com/openfroyo/modelops/pkg/telemetry"
)

// Example_basicSetup demonstrates basic telemetry setup.
func Example_basicSetup() {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = "1.0.0"

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	logger := tel.Logger.NewComponentLogger("cli").Zerolog()
	logger.Info().Str("version", cfg.ServiceVersion).Msg("modelops started")
}

// Example_operationSpan demonstrates tracing an operation attempt.
func Example_operationSpan() {
	ctx, span := telemetry.StartSpan(context.Background(), "operation.execute",
		telemetry.AttrNode.String("web"),
		telemetry.AttrInterface.String("Standard"),
		telemetry.AttrOperation.String("create"),
	)
	defer span.End()

	_ = ctx
	telemetry.RecordSuccess(span)
}

// Example_metricsCollection demonstrates recording attempt metrics.
func Example_metricsCollection() {
	m, _ := telemetry.NewMetrics(telemetry.DefaultConfig().Metrics)

	start := time.Now()
	m.RecordAttemptStarted()
	m.RecordAttempt("create", "success", "terraform", time.Since(start))

	m.RecordRejection("NODE_NOT_FOUND", "permanent")
	m.RecordAuditFailure("file")
}
