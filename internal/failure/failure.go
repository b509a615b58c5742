// Package failure carries the observable stream of terminally failed
// events. Nothing in the intake path drops an event without writing a
// record here first.
package failure

import (
	"context"
	"log/slog"
	"time"

	"github.com/flowsentinel/intake/internal/models"
)

// Writer records a failure for operator alerting. Implementations must not
// panic or block indefinitely; a failure to record is logged, never escalated.
type Writer interface {
	Write(ctx context.Context, rec *models.FailureRecord) error
	Close() error
}

// NewRecord builds a failure record for an event, stamping the time of the
// drop decision.
func NewRecord(ev *models.Event, reason string, err error) *models.FailureRecord {
	rec := &models.FailureRecord{
		Event:     ev,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	return rec
}

// LogWriter emits each failure record as a structured log line. This is the
// default backend; a log collector turns the lines into an alerting stream.
type LogWriter struct {
	logger *slog.Logger
}

func NewLogWriter(logger *slog.Logger) *LogWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogWriter{logger: logger}
}

func (w *LogWriter) Write(ctx context.Context, rec *models.FailureRecord) error {
	w.logger.ErrorContext(ctx, "event dropped",
		slog.String("event_id", rec.Event.ID),
		slog.Uint64("seq", rec.Event.Seq),
		slog.String("source", rec.Event.SourceTag),
		slog.String("payload", rec.Event.RawPayload),
		slog.String("reason", rec.Reason),
		slog.String("error", rec.Error),
		slog.Time("failed_at", rec.Timestamp),
	)
	return nil
}

func (w *LogWriter) Close() error { return nil }
