package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/modelops/pkg/audit"
	"github.com/openfroyo/modelops/pkg/telemetry"
)

// waitDelay bounds how long Run waits for output pipes after the child is
// killed on cancellation.
const waitDelay = 5 * time.Second

// Executor launches invocations as child processes and audits every attempt
// with a STARTED record before launch and a terminal record after it.
type Executor struct {
	reporter *audit.Reporter
	logger   zerolog.Logger
	metrics  *telemetry.Metrics
	timeout  time.Duration
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorLogger sets the logger for process and audit diagnostics.
func WithExecutorLogger(logger zerolog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithExecutorMetrics sets the metrics collector.
func WithExecutorMetrics(m *telemetry.Metrics) ExecutorOption {
	return func(e *Executor) {
		e.metrics = m
	}
}

// WithTimeout kills processes that run longer than d. Zero disables the limit.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.timeout = d
	}
}

// NewExecutor creates an executor that audits to sink.
func NewExecutor(sink audit.Sink, opts ...ExecutorOption) *Executor {
	e := &Executor{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With().Str("component", "executor").Logger()
	e.reporter = audit.NewReporter(sink, e.logger, e.metrics.RecordAuditFailure)
	return e
}

// Run executes inv and classifies the outcome. It never returns an error and
// never panics: launch errors, non-zero exits, timeouts and cancellation all
// become a failed ExecutionResult. Audit write failures are reported and do
// not change the result.
func (e *Executor) Run(ctx context.Context, attempt Attempt, inv Invocation) ExecutionResult {
	ctx, span := telemetry.StartSpan(ctx, "process.run",
		telemetry.AttrAttemptID.String(attempt.ID),
		telemetry.AttrProgram.String(inv.Program),
		telemetry.AttrArtifactKind.String(string(inv.Kind)),
	)
	defer span.End()

	logger := e.logger.With().
		Str("attempt_id", attempt.ID).
		Str("node", attempt.Node).
		Str("operation", attempt.Operation).
		Logger()

	e.reporter.Record(ctx, audit.NewRecord(attempt.ID, attempt.Node, attempt.Interface, attempt.Operation,
		audit.StatusStarted, "Command: "+inv.String()))
	e.metrics.RecordAttemptStarted()
	logger.Info().Str("command", inv.String()).Msg("launching process")

	res := e.launch(ctx, inv)

	status, details := audit.StatusSuccess, res.Output
	if !res.Succeeded() {
		status, details = audit.StatusFailed, res.Error
	}
	e.reporter.Record(ctx, audit.NewRecord(attempt.ID, attempt.Node, attempt.Interface, attempt.Operation,
		status, details))
	e.metrics.RecordAttempt(attempt.Operation, string(res.Status), string(inv.Kind), res.Duration)

	span.SetAttributes(telemetry.AttrExitCode.Int(res.ExitCode))
	if res.Succeeded() {
		telemetry.RecordSuccess(span)
		logger.Info().Dur("duration", res.Duration).Msg("process succeeded")
	} else {
		telemetry.RecordFailure(span, res.Error)
		logger.Warn().
			Int("exit_code", res.ExitCode).
			Dur("duration", res.Duration).
			Str("error", res.Error).
			Msg("process failed")
	}
	return res
}

func (e *Executor) launch(ctx context.Context, inv Invocation) (res ExecutionResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = ExecutionResult{
				Status:   StatusFailed,
				Error:    fmt.Sprintf("executor panic: %v", r),
				ExitCode: -1,
				Duration: time.Since(start),
			}
		}
	}()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, inv.Program, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res.Duration = time.Since(start)
	out := strings.TrimSpace(stdout.String())
	errText := strings.TrimSpace(stderr.String())

	if err == nil {
		res.Status = StatusSuccess
		res.Output = out
		return res
	}

	res.Status = StatusFailed
	res.ExitCode = -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	}

	switch {
	case ctx.Err() != nil:
		res.Error = fmt.Sprintf("process terminated: %v", ctx.Err())
		if errText != "" {
			res.Error += "\n" + errText
		}
	case errText != "":
		res.Error = errText
	default:
		res.Error = err.Error()
	}
	return res
}
