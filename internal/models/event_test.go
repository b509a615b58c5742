package models

import (
	"errors"
	"testing"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusPending, "pending"},
		{StatusBuffered, "buffered"},
		{StatusWritten, "written"},
		{StatusFailed, "failed"},
		{Status(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestStatus_Terminal(t *testing.T) {
	if StatusPending.Terminal() || StatusBuffered.Terminal() {
		t.Error("pending/buffered should not be terminal")
	}
	if !StatusWritten.Terminal() || !StatusFailed.Terminal() {
		t.Error("written/failed should be terminal")
	}
}

func TestEvent_Advance(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		wantErr bool
	}{
		{"pending to buffered", StatusPending, StatusBuffered, false},
		{"buffered to written", StatusBuffered, StatusWritten, false},
		{"buffered to failed", StatusBuffered, StatusFailed, false},
		{"pending to written skips buffered", StatusPending, StatusWritten, true},
		{"pending to failed skips buffered", StatusPending, StatusFailed, true},
		{"written is terminal", StatusWritten, StatusFailed, true},
		{"failed is terminal", StatusFailed, StatusBuffered, true},
		{"no regression", StatusBuffered, StatusPending, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := &Event{Status: tt.from}
			err := ev.Advance(tt.to)

			if (err != nil) != tt.wantErr {
				t.Fatalf("Advance(%s) from %s error = %v, wantErr %v", tt.to, tt.from, err, tt.wantErr)
			}

			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("error = %v, want ErrInvalidTransition", err)
				}
				if ev.Status != tt.from {
					t.Errorf("status changed to %s on rejected transition", ev.Status)
				}
			} else if ev.Status != tt.to {
				t.Errorf("status = %s, want %s", ev.Status, tt.to)
			}
		})
	}
}
