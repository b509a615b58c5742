package models

import (
	"errors"
	"time"
)

// Status tracks an event through the intake pipeline. Transitions are
// forward-only: pending -> buffered -> written | failed.
type Status int

const (
	StatusPending Status = iota
	StatusBuffered
	StatusWritten
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusBuffered:
		return "buffered"
	case StatusWritten:
		return "written"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusWritten || s == StatusFailed
}

// ErrInvalidTransition is returned when an event would regress or skip a state.
var ErrInvalidTransition = errors.New("invalid status transition")

// Event is the unit of intake work. Seq is assigned by the write buffer at
// enqueue time and is unique per process; ReceivedAt is assigned at receipt.
type Event struct {
	ID         string    `json:"id"`
	SourceTag  string    `json:"source"`
	RawPayload string    `json:"payload"`
	ReceivedAt time.Time `json:"received_at"`
	Seq        uint64    `json:"seq"`
	Status     Status    `json:"status"`
}

// Advance moves the event to the next status, enforcing the forward-only
// state machine.
func (e *Event) Advance(next Status) error {
	valid := false
	switch e.Status {
	case StatusPending:
		valid = next == StatusBuffered
	case StatusBuffered:
		valid = next == StatusWritten || next == StatusFailed
	}
	if !valid {
		return ErrInvalidTransition
	}
	e.Status = next
	return nil
}

// FailureRecord is emitted on the failure channel once per terminally
// failed event.
type FailureRecord struct {
	Event     *Event    `json:"event"`
	Reason    string    `json:"reason"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// IngestionStats is a point-in-time snapshot of intake activity, exposed on
// the readiness endpoint.
type IngestionStats struct {
	TotalEvents    int64     `json:"total_events"`
	TotalBytes     int64     `json:"total_bytes"`
	AcceptedEvents int64     `json:"accepted_events"`
	RejectedEvents int64     `json:"rejected_events"`
	LastEvent      time.Time `json:"last_event"`
}
