// internal/api/handler/session.go
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"astrolive/internal/api/types"
	"astrolive/internal/domain"
	"astrolive/internal/session"
)

// SessionHandler exposes live billing sessions.
type SessionHandler struct {
	biller *session.Biller
	logger *slog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(biller *session.Biller, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{biller: biller, logger: logger}
}

// List returns every active session.
// GET /sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, h.logger, http.StatusOK, types.ListResponse[domain.SessionSnapshot]{Data: h.biller.Active()})
}

// Get returns one active session.
// GET /sessions/{roomID}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	snap, err := h.biller.Snapshot(chi.URLParam(r, "roomID"))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, snap)
}

// EndSessionRequest names the party ending the session.
type EndSessionRequest struct {
	Initiator string `json:"initiator"`
}

// End stops billing a room.
// POST /sessions/{roomID}/end
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	var req EndSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	roomID := chi.URLParam(r, "roomID")
	if err := h.biller.End(r.Context(), roomID, domain.Initiator(req.Initiator)); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, map[string]string{
		"message": "Session ended",
		"room_id": roomID,
	})
}
