package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jwebster45206/narration-engine/internal/middleware"
	"github.com/jwebster45206/narration-engine/internal/services/events"
)

const keepaliveInterval = 30 * time.Second

// EventsHandler streams side-channel events (loot toasts, combat deltas,
// media readiness) over Server-Sent Events.
type EventsHandler struct {
	broadcaster *events.Broadcaster
	keepalive   time.Duration
	logger      *slog.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(broadcaster *events.Broadcaster, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		broadcaster: broadcaster,
		keepalive:   keepaliveInterval,
		logger:      logger,
	}
}

// ServeHTTP handles SSE requests.
// GET /v1/events[?replay=N] replays up to N recent events before going live.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := middleware.LoggerFrom(r.Context(), h.logger)
	if !requireMethod(w, r, log, http.MethodGet) {
		return
	}

	var replay int64
	if v := r.URL.Query().Get("replay"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			writeError(w, log, http.StatusBadRequest, "replay must be a non-negative integer.")
			return
		}
		replay = min(n, events.DefaultBacklog)
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, log, http.StatusInternalServerError, "Streaming unsupported.")
		return
	}

	ctx := r.Context()
	pubsub := h.broadcaster.Subscribe(ctx)
	defer func() {
		if err := pubsub.Close(); err != nil {
			log.Error("Failed to close pubsub", "error", err)
		}
	}()

	// Confirm the subscription so nothing published after "connected" is lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		log.Error("Failed to subscribe to events", "error", err)
		writeError(w, log, http.StatusServiceUnavailable, "Event stream unavailable.")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	log.Info("SSE connection established", "remote_addr", r.RemoteAddr)

	h.sendSSE(w, log, "connected", map[string]any{
		"message": "Connected to event stream",
	})

	if replay > 0 {
		recent, err := h.broadcaster.Recent(ctx, replay)
		if err != nil {
			log.Warn("Failed to replay recent events", "error", err)
		}
		for _, e := range recent {
			h.sendSSE(w, log, string(e.Type), e)
		}
	}

	msgChan := pubsub.Channel()
	keepaliveTicker := time.NewTicker(h.keepalive)
	defer keepaliveTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("SSE client disconnected")
			return

		case msg, ok := <-msgChan:
			if !ok {
				return
			}
			var event events.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error("Failed to unmarshal event", "error", err, "payload", msg.Payload)
				continue
			}
			h.sendSSE(w, log, string(event.Type), event)

		case <-keepaliveTicker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				log.Error("Failed to write keepalive", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

// sendSSE sends a Server-Sent Event to the client
func (h *EventsHandler) sendSSE(w http.ResponseWriter, log *slog.Logger, eventType string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		log.Error("Failed to marshal SSE data", "error", err)
		return
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, dataJSON); err != nil {
		log.Error("Failed to write event", "error", err)
		return
	}

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}
