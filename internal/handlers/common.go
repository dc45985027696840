package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/narration-engine/internal/session"
	"github.com/jwebster45206/narration-engine/pkg/actor"
	"github.com/jwebster45206/narration-engine/pkg/mode"
)

// maxBodyBytes caps request bodies; form submissions are the largest.
const maxBodyBytes = 64 << 10

type ErrorResponse struct {
	Error string `json:"error"`
}

// Session is the part of the session controller the HTTP layer drives.
type Session interface {
	View() session.View
	Submit(ctx context.Context, text string) (*session.Result, error)
	SubmitForm(ctx context.Context, values map[string]any) (*session.Result, error)
	RetryForm(ctx context.Context) (*session.Result, error)
	ItemAction(ctx context.Context, action, item string) (*session.Result, error)
	SelectPregen(ctx context.Context, id string) (*session.Result, error)
	SetNarration(on bool)
}

var _ Session = (*session.Controller)(nil)

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, ErrorResponse{Error: msg})
}

// decodeBody reads a JSON body into dst, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, logger *slog.Logger, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logger.Warn("Invalid request body", "error", err, "path", r.URL.Path)
		writeError(w, logger, http.StatusBadRequest, "Invalid request body.")
		return false
	}
	return true
}

// requireMethod writes a 405 unless r uses one of methods.
func requireMethod(w http.ResponseWriter, r *http.Request, logger *slog.Logger, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	logger.Warn("Method not allowed",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr)
	w.Header().Set("Allow", methods[0])
	writeError(w, logger, http.StatusMethodNotAllowed, "Method not allowed.")
	return false
}

// writeSessionError maps session errors to HTTP statuses.
func writeSessionError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrTurnInFlight), errors.Is(err, session.ErrNoForm):
		status = http.StatusConflict
	case errors.Is(err, session.ErrInvalidInput),
		errors.Is(err, session.ErrInvalidAction),
		errors.Is(err, mode.ErrInvalidSubmission):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrUnknownItem), errors.Is(err, actor.ErrUnknownPregen):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrNotBootstrapped):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		logger.Error("Session request failed", "error", err)
		writeError(w, logger, status, "Internal server error.")
		return
	}
	logger.Warn("Session request rejected", "error", err, "status", status)
	writeError(w, logger, status, err.Error())
}
