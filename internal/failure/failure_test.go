package failure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/flowsentinel/intake/internal/models"
)

func TestNewRecord(t *testing.T) {
	ev := &models.Event{ID: "ev-1", Seq: 7, RawPayload: "hello"}

	before := time.Now().UTC()
	rec := NewRecord(ev, "retries_exhausted", errors.New("connection refused"))
	after := time.Now().UTC()

	if rec.Event != ev {
		t.Error("record should reference the failed event")
	}

	if rec.Reason != "retries_exhausted" {
		t.Errorf("Reason = %q, want %q", rec.Reason, "retries_exhausted")
	}

	if rec.Error != "connection refused" {
		t.Errorf("Error = %q, want %q", rec.Error, "connection refused")
	}

	if rec.Timestamp.Before(before) || rec.Timestamp.After(after) {
		t.Errorf("Timestamp = %v outside call window", rec.Timestamp)
	}
}

func TestNewRecord_NilError(t *testing.T) {
	rec := NewRecord(&models.Event{}, "shutdown", nil)
	if rec.Error != "" {
		t.Errorf("Error = %q, want empty", rec.Error)
	}
}

func TestLogWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	w := NewLogWriter(logger)

	ev := &models.Event{ID: "ev-1", Seq: 3, SourceTag: "manual_signal", RawPayload: "hello"}
	rec := NewRecord(ev, "retries_exhausted", errors.New("timeout"))

	if err := w.Write(context.Background(), rec); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log output is not JSON: %v\n%s", err, buf.String())
	}

	if line["event_id"] != "ev-1" {
		t.Errorf("event_id = %v, want ev-1", line["event_id"])
	}

	if line["reason"] != "retries_exhausted" {
		t.Errorf("reason = %v, want retries_exhausted", line["reason"])
	}

	if line["payload"] != "hello" {
		t.Errorf("payload = %v, want hello", line["payload"])
	}
}

func TestLogWriter_Close(t *testing.T) {
	w := NewLogWriter(nil)
	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
