// Package dispatcher drains the write buffer and performs the only network
// I/O against the external store.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/flowsentinel/intake/internal/buffer"
	"github.com/flowsentinel/intake/internal/failure"
	"github.com/flowsentinel/intake/internal/metrics"
	"github.com/flowsentinel/intake/internal/models"
	"github.com/flowsentinel/intake/internal/sink"
)

// Failure reasons reported on the failure channel.
const (
	ReasonRetriesExhausted = "retries_exhausted"
	ReasonCanceled         = "canceled"
	ReasonShutdown         = "shutdown"
)

// RetryPolicy bounds how hard the dispatcher pushes against a failing sink.
// It is injected rather than embedded so tests can drive it with a fake sink.
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Multiplier  float64
	MaxInterval time.Duration
}

func (p RetryPolicy) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Base
	b.Multiplier = p.Multiplier
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.Reset()
	return b
}

// Config tunes batch cadence and the per-attempt write deadline.
type Config struct {
	BatchSize     int
	BatchInterval time.Duration
	WriteTimeout  time.Duration
	Retry         RetryPolicy
}

// Dispatcher pulls batches from the write buffer on a fixed cadence or when
// buffer occupancy reaches the batch size, whichever comes first. Exactly one
// dispatcher drains a given buffer.
type Dispatcher struct {
	buf      *buffer.Buffer
	sink     sink.Sink
	failures failure.Writer
	logger   *slog.Logger
	cfg      Config

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func New(buf *buffer.Buffer, s sink.Sink, failures failure.Writer, logger *slog.Logger, cfg Config) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchInterval <= 0 {
		cfg.BatchInterval = 2 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		buf:      buf,
		sink:     s,
		failures: failures,
		logger:   logger,
		cfg:      cfg,
	}
}

// Start launches the background drain loop.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher already running")
	}
	d.running = true
	d.stopChan = make(chan struct{})
	d.mu.Unlock()

	d.logger.Info("dispatcher starting",
		slog.String("sink", d.sink.Name()),
		slog.Int("batch_size", d.cfg.BatchSize),
		slog.Duration("batch_interval", d.cfg.BatchInterval),
	)

	d.wg.Add(1)
	go d.run(ctx)
	return nil
}

// Stop halts the loop, makes one final best-effort write pass over whatever
// is still buffered, and reports the remainder as failed.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher not running")
	}
	d.running = false
	close(d.stopChan)
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("dispatcher stopped")
	return nil
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.BatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.finalFlush()
			return
		case <-d.stopChan:
			d.finalFlush()
			return
		case <-ticker.C:
			d.flush(ctx)
		case <-d.buf.Wakeup():
			d.flush(ctx)
		}
	}
}

// flush drains and writes until the buffer is empty or the context ends.
func (d *Dispatcher) flush(ctx context.Context) {
	for ctx.Err() == nil {
		batch := d.buf.Drain(d.cfg.BatchSize)
		if len(batch) == 0 {
			return
		}
		d.writeBatch(ctx, batch)
	}
}

// writeBatch attempts one physical write for the whole batch, retrying with
// exponential backoff. A timed-out attempt counts toward the budget. The
// batch succeeds or fails as a unit.
func (d *Dispatcher) writeBatch(ctx context.Context, batch []*models.Event) {
	bo := d.cfg.Retry.newBackOff()

	var lastErr error
	for attempt := 1; ; attempt++ {
		wctx, cancel := context.WithTimeout(ctx, d.cfg.WriteTimeout)
		start := time.Now()
		err := d.sink.Write(wctx, batch)
		cancel()
		metrics.WriteDuration.Observe(time.Since(start).Seconds())

		if err == nil {
			d.markWritten(batch)
			return
		}
		lastErr = err

		d.logger.Warn("sink write failed",
			slog.String("sink", d.sink.Name()),
			slog.Int("attempt", attempt),
			slog.Int("batch_size", len(batch)),
			slog.String("error", err.Error()),
		)

		if attempt >= d.cfg.Retry.MaxAttempts {
			d.markFailed(batch, ReasonRetriesExhausted, lastErr)
			return
		}

		metrics.WriteRetries.Inc()
		sleep := bo.NextBackOff()
		if sleep == backoff.Stop {
			sleep = d.cfg.Retry.Base
		}
		select {
		case <-ctx.Done():
			d.markFailed(batch, ReasonCanceled, ctx.Err())
			return
		case <-time.After(sleep):
		}
	}
}

// finalFlush gives each remaining batch a single attempt during shutdown.
func (d *Dispatcher) finalFlush() {
	for {
		batch := d.buf.Drain(d.cfg.BatchSize)
		if len(batch) == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.WriteTimeout)
		err := d.sink.Write(ctx, batch)
		cancel()

		if err == nil {
			d.markWritten(batch)
			continue
		}
		d.markFailed(batch, ReasonShutdown, err)
	}
}

func (d *Dispatcher) markWritten(batch []*models.Event) {
	for _, ev := range batch {
		if err := ev.Advance(models.StatusWritten); err != nil {
			d.logger.Error("event state error", slog.String("event_id", ev.ID), slog.String("error", err.Error()))
		}
	}
	metrics.EventsWritten.Add(float64(len(batch)))
	d.logger.Debug("batch written", slog.Int("batch_size", len(batch)))
}

func (d *Dispatcher) markFailed(batch []*models.Event, reason string, cause error) {
	for _, ev := range batch {
		if err := ev.Advance(models.StatusFailed); err != nil {
			d.logger.Error("event state error", slog.String("event_id", ev.ID), slog.String("error", err.Error()))
		}
		rec := failure.NewRecord(ev, reason, cause)
		if d.failures != nil {
			if err := d.failures.Write(context.Background(), rec); err != nil {
				d.logger.Error("failed to record dropped event",
					slog.String("event_id", ev.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
	metrics.EventsFailed.Add(float64(len(batch)))
}
