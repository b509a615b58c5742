package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/flowsentinel/intake/internal/buffer"
	"github.com/flowsentinel/intake/internal/models"
	"github.com/flowsentinel/intake/internal/normalizer"
	"github.com/flowsentinel/intake/internal/ratelimit"
)

// IntakeService is the surface the handler needs from the service layer.
type IntakeService interface {
	Ingest(message string) (*models.Event, error)
	GetStats() models.IngestionStats
	BufferDepth() int
}

// Response codes, stable for API clients.
const (
	codeSuccess     = 0
	codeNoData      = 5
	codeInvalidData = 6
	codeServerBusy  = 9
	codeTooMany     = 10
)

type apiResponse struct {
	Text    string `json:"text"`
	Code    int    `json:"code"`
	EventID string `json:"event_id,omitempty"`
}

type postEventRequest struct {
	Message string `json:"message"`
}

// EventHandler exposes the intake API. The 202 acknowledgment promises the
// event is queued for write, not that the store has it.
type EventHandler struct {
	service    IntakeService
	limiter    ratelimit.Limiter
	retryAfter time.Duration
	logger     *slog.Logger
}

func NewEventHandler(service IntakeService, limiter ratelimit.Limiter, retryAfter time.Duration, logger *slog.Logger) *EventHandler {
	if limiter == nil {
		limiter = &ratelimit.NoOpLimiter{}
	}
	if retryAfter <= 0 {
		retryAfter = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHandler{
		service:    service,
		limiter:    limiter,
		retryAfter: retryAfter,
		logger:     logger,
	}
}

// HandleEventPath accepts GET /event/{message}.
func (h *EventHandler) HandleEventPath(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r) {
		return
	}
	h.ingest(w, r, r.PathValue("message"))
}

// HandleEventPost accepts POST /event with a JSON body {"message": "..."}.
func (h *EventHandler) HandleEventPost(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r) {
		return
	}

	var req postEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, codeInvalidData, "invalid request body")
		return
	}
	defer r.Body.Close()

	h.ingest(w, r, req.Message)
}

func (h *EventHandler) ingest(w http.ResponseWriter, r *http.Request, message string) {
	ev, err := h.service.Ingest(message)
	if err != nil {
		switch {
		case errors.Is(err, normalizer.ErrEmptyPayload):
			h.sendError(w, http.StatusBadRequest, codeNoData, "no event data")
		case errors.Is(err, normalizer.ErrOversizedPayload):
			h.sendError(w, http.StatusBadRequest, codeInvalidData, err.Error())
		case errors.Is(err, buffer.ErrBufferFull):
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSeconds(h.retryAfter)))
			h.sendError(w, http.StatusServiceUnavailable, codeServerBusy, "server busy, retry later")
		default:
			h.logger.ErrorContext(r.Context(), "ingest failed", slog.String("error", err.Error()))
			h.sendError(w, http.StatusInternalServerError, codeInvalidData, "internal error")
		}
		return
	}

	h.logger.DebugContext(r.Context(), "event accepted",
		slog.String("event_id", ev.ID),
		slog.Uint64("seq", ev.Seq),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(apiResponse{
		Text:    "Accepted",
		Code:    codeSuccess,
		EventID: ev.ID,
	})
}

func (h *EventHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	})
}

func (h *EventHandler) Ready(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":       "ready",
		"buffer_depth": h.service.BufferDepth(),
		"stats":        h.service.GetStats(),
	})
}

// allow applies the rate limiter keyed by client IP. Limiter errors fail
// open: an unreachable Redis must not take intake down with it.
func (h *EventHandler) allow(w http.ResponseWriter, r *http.Request) bool {
	ip := clientIP(r)
	allowed, err := h.limiter.Allow(r.Context(), ip)
	if err != nil {
		h.logger.WarnContext(r.Context(), "rate limit check failed", slog.String("error", err.Error()))
		return true
	}
	if !allowed {
		h.sendError(w, http.StatusTooManyRequests, codeTooMany, "rate limit exceeded")
		return false
	}
	return true
}

func (h *EventHandler) sendError(w http.ResponseWriter, httpStatus, code int, text string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(apiResponse{
		Text: text,
		Code: code,
	})
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(d / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
