// internal/api/handler/consultation.go
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"astrolive/internal/domain"
	"astrolive/internal/session"
	"astrolive/internal/util"
)

// ConsultationHandler exposes the negotiation protocol over HTTP.
type ConsultationHandler struct {
	negotiator *session.Negotiator
	logger     *slog.Logger
}

// NewConsultationHandler creates a new ConsultationHandler.
func NewConsultationHandler(negotiator *session.Negotiator, logger *slog.Logger) *ConsultationHandler {
	return &ConsultationHandler{negotiator: negotiator, logger: logger}
}

// CreateConsultationRequest represents the request body for asking a provider for a session.
type CreateConsultationRequest struct {
	ClientID    string `json:"clientId"`
	ProviderID  string `json:"providerId"`
	ChannelType string `json:"channelType"`
}

// Create sends a consultation request to a provider.
// POST /consultations
func (h *ConsultationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateConsultationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	if req.ClientID == "" || req.ProviderID == "" {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}
	created, err := h.negotiator.RequestSession(r.Context(), req.ClientID, req.ProviderID, domain.ChannelType(req.ChannelType))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusCreated, created)
}

// RespondRequest represents the provider's answer.
type RespondRequest struct {
	Decision string `json:"decision"`
}

// Respond accepts or rejects a pending request.
// POST /consultations/{requestID}/respond
func (h *ConsultationHandler) Respond(w http.ResponseWriter, r *http.Request) {
	var req RespondRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	decision, ok := domain.ParseDecision(req.Decision)
	if !ok {
		respondWithError(w, h.logger, util.ErrInvalidDecision)
		return
	}
	resolved, snap, err := h.negotiator.RespondToSession(r.Context(), chi.URLParam(r, "requestID"), decision)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, map[string]any{
		"request": resolved,
		"session": snap,
	})
}
