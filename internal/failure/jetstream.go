package failure

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/flowsentinel/intake/internal/models"
)

const (
	// StreamName is the JetStream stream that captures failure records.
	StreamName = "INTAKE_FAILED"

	subjectPrefix = "intake.failed."
	streamMaxAge  = 7 * 24 * time.Hour
)

// JetStreamWriter publishes failure records to NATS JetStream so multiple
// intake instances share one durable failure stream.
type JetStreamWriter struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	written uint64
}

// NewJetStreamWriter connects to NATS and ensures the failure stream exists.
func NewJetStreamWriter(ctx context.Context, url string) (*JetStreamWriter, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{subjectPrefix + ">"},
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
		MaxAge:    streamMaxAge,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create failure stream: %w", err)
	}

	return &JetStreamWriter{nc: nc, js: js}, nil
}

// Write publishes the record as JSON on intake.failed.<reason>.
func (w *JetStreamWriter) Write(ctx context.Context, rec *models.FailureRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		slog.Error("failed to marshal failure record", slog.String("error", err.Error()))
		return err
	}

	if _, err := w.js.Publish(ctx, subjectPrefix+rec.Reason, data); err != nil {
		slog.Error("failed to publish failure record", slog.String("error", err.Error()))
		return err
	}

	atomic.AddUint64(&w.written, 1)
	return nil
}

// Written returns how many records this instance has published.
func (w *JetStreamWriter) Written() uint64 {
	return atomic.LoadUint64(&w.written)
}

func (w *JetStreamWriter) Close() error {
	w.nc.Close()
	return nil
}
