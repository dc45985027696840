package handlers

import (
	"log/slog"
	"net/http"

	"github.com/jwebster45206/narration-engine/internal/middleware"
	"github.com/jwebster45206/narration-engine/internal/session"
)

// TurnHandler runs primary requests. Every route answers with the
// committed turn, or 409 while another turn is in flight.
// Routes:
// POST /v1/turns      - free player input
// POST /v1/form       - submit the active form
// POST /v1/form/retry - ask the narrator to resend an empty form
// POST /v1/items      - use, examine or discard an item
// POST /v1/pregen     - pick a character
type TurnHandler struct {
	session Session
	logger  *slog.Logger
}

func NewTurnHandler(s Session, logger *slog.Logger) *TurnHandler {
	return &TurnHandler{session: s, logger: logger}
}

type TurnRequest struct {
	Message string `json:"message"`
}

type FormRequest struct {
	Values map[string]any `json:"values"`
}

type ItemRequest struct {
	Action string `json:"action"`
	Item   string `json:"item"`
}

type PregenRequest struct {
	ID string `json:"id"`
}

func (h *TurnHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := middleware.LoggerFrom(r.Context(), h.logger)
	if !requireMethod(w, r, log, http.MethodPost) {
		return
	}

	var (
		res *session.Result
		err error
	)
	ctx := r.Context()

	switch r.URL.Path {
	case "/v1/turns":
		var req TurnRequest
		if !decodeBody(w, r, log, &req) {
			return
		}
		res, err = h.session.Submit(ctx, req.Message)

	case "/v1/form":
		var req FormRequest
		if !decodeBody(w, r, log, &req) {
			return
		}
		res, err = h.session.SubmitForm(ctx, req.Values)

	case "/v1/form/retry":
		res, err = h.session.RetryForm(ctx)

	case "/v1/items":
		var req ItemRequest
		if !decodeBody(w, r, log, &req) {
			return
		}
		res, err = h.session.ItemAction(ctx, req.Action, req.Item)

	case "/v1/pregen":
		var req PregenRequest
		if !decodeBody(w, r, log, &req) {
			return
		}
		res, err = h.session.SelectPregen(ctx, req.ID)

	default:
		writeError(w, log, http.StatusNotFound, "Not found.")
		return
	}

	if err != nil {
		writeSessionError(w, log, err)
		return
	}
	writeJSON(w, log, http.StatusOK, res)
}
