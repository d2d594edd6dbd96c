package audit

import (
	"context"

	"github.com/rs/zerolog"
)

// Reporter wraps a sink so that append failures are reported instead of
// returned. Audit failures never change the outcome of an attempt.
type Reporter struct {
	sink      Sink
	logger    zerolog.Logger
	onFailure func(sink string)
}

// NewReporter wraps sink. onFailure, when non-nil, is called once per failed
// sink name for every record that could not be persisted.
func NewReporter(sink Sink, logger zerolog.Logger, onFailure func(sink string)) *Reporter {
	return &Reporter{
		sink:      sink,
		logger:    logger.With().Str("component", "audit").Logger(),
		onFailure: onFailure,
	}
}

// Record appends rec and reports whether every sink accepted it.
func (r *Reporter) Record(ctx context.Context, rec Record) bool {
	if r == nil || r.sink == nil {
		return true
	}
	err := r.sink.Append(ctx, rec)
	if err == nil {
		return true
	}
	sinks := FailedSinks(err)
	r.logger.Error().
		Err(err).
		Strs("sinks", sinks).
		Str("attempt_id", rec.AttemptID).
		Str("node", rec.Node).
		Str("operation", rec.Operation).
		Str("status", string(rec.Status)).
		Msg("failed to write audit record")
	if r.onFailure != nil {
		for _, name := range sinks {
			r.onFailure(name)
		}
	}
	return false
}
