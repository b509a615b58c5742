// Package normalizer turns a caller-supplied message into a canonical
// intake event.
package normalizer

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flowsentinel/intake/internal/models"
)

var (
	// ErrEmptyPayload rejects events with no message content.
	ErrEmptyPayload = errors.New("empty payload")

	// ErrOversizedPayload rejects events over the configured byte limit.
	ErrOversizedPayload = errors.New("payload exceeds maximum size")
)

// Normalizer validates and canonicalizes raw payloads. It holds no mutable
// state; the only side effect of Normalize is the clock read.
type Normalizer struct {
	maxPayloadBytes int
	sourceTag       string
}

func New(maxPayloadBytes int, sourceTag string) *Normalizer {
	return &Normalizer{
		maxPayloadBytes: maxPayloadBytes,
		sourceTag:       sourceTag,
	}
}

// Normalize returns a pending event with identity and receipt timestamp
// assigned, or a validation error. Seq is left unset; the write buffer
// assigns it at enqueue time.
func (n *Normalizer) Normalize(rawPayload string) (*models.Event, error) {
	if rawPayload == "" {
		return nil, ErrEmptyPayload
	}
	if len(rawPayload) > n.maxPayloadBytes {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrOversizedPayload, len(rawPayload), n.maxPayloadBytes)
	}

	return &models.Event{
		ID:         uuid.New().String(),
		SourceTag:  n.sourceTag,
		RawPayload: rawPayload,
		ReceivedAt: time.Now().UTC(),
		Status:     models.StatusPending,
	}, nil
}
