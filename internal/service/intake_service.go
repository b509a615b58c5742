package service

import (
	"sync"
	"time"

	"github.com/flowsentinel/intake/internal/buffer"
	"github.com/flowsentinel/intake/internal/metrics"
	"github.com/flowsentinel/intake/internal/models"
	"github.com/flowsentinel/intake/internal/normalizer"
)

// IntakeService accepts one raw message per call, normalizes it, and hands
// it to the write buffer. The returned event is queued for write, not yet
// durable.
type IntakeService struct {
	normalizer *normalizer.Normalizer
	buf        *buffer.Buffer

	stats      models.IngestionStats
	statsMutex sync.RWMutex
}

func NewIntakeService(n *normalizer.Normalizer, buf *buffer.Buffer) *IntakeService {
	return &IntakeService{
		normalizer: n,
		buf:        buf,
	}
}

// Ingest validates and enqueues a single message. Validation errors and
// buffer-full rejections are returned synchronously; sink failures surface
// later on the failure channel.
func (s *IntakeService) Ingest(message string) (*models.Event, error) {
	ev, err := s.normalizer.Normalize(message)
	if err != nil {
		s.updateStats(0, false)
		metrics.EventsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	if err := s.buf.Enqueue(ev); err != nil {
		s.updateStats(0, false)
		metrics.EventsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	s.updateStats(len(message), true)
	metrics.EventsTotal.WithLabelValues("accepted").Inc()
	metrics.EventBytesTotal.Add(float64(len(message)))
	return ev, nil
}

// BufferDepth reports current write-buffer occupancy.
func (s *IntakeService) BufferDepth() int {
	return s.buf.Len()
}

func (s *IntakeService) updateStats(bytes int, accepted bool) {
	s.statsMutex.Lock()
	defer s.statsMutex.Unlock()

	s.stats.TotalEvents++
	s.stats.TotalBytes += int64(bytes)
	s.stats.LastEvent = time.Now()

	if accepted {
		s.stats.AcceptedEvents++
	} else {
		s.stats.RejectedEvents++
	}
}

func (s *IntakeService) GetStats() models.IngestionStats {
	s.statsMutex.RLock()
	defer s.statsMutex.RUnlock()
	return s.stats
}
