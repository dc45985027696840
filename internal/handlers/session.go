package handlers

import (
	"log/slog"
	"net/http"

	"github.com/jwebster45206/narration-engine/internal/middleware"
)

// SessionHandler serves the session view and settings.
// Routes:
// GET /v1/session  - full session view
// PUT /v1/settings - update player settings
type SessionHandler struct {
	session Session
	logger  *slog.Logger
}

func NewSessionHandler(s Session, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{session: s, logger: logger}
}

type SettingsRequest struct {
	Narration *bool `json:"narration"`
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := middleware.LoggerFrom(r.Context(), h.logger)

	switch r.URL.Path {
	case "/v1/session":
		if !requireMethod(w, r, log, http.MethodGet) {
			return
		}
		writeJSON(w, log, http.StatusOK, h.session.View())

	case "/v1/settings":
		if !requireMethod(w, r, log, http.MethodPut) {
			return
		}
		var req SettingsRequest
		if !decodeBody(w, r, log, &req) {
			return
		}
		if req.Narration != nil {
			h.session.SetNarration(*req.Narration)
			log.Info("Narration toggled", "narration", *req.Narration)
		}
		writeJSON(w, log, http.StatusOK, h.session.View())

	default:
		writeError(w, log, http.StatusNotFound, "Not found.")
	}
}
