// internal/api/handler/provider.go
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"astrolive/internal/api/types"
	"astrolive/internal/domain"
	"astrolive/internal/service"
	"astrolive/internal/session"
)

// ProviderHandler handles provider onboarding and availability.
type ProviderHandler struct {
	accounts   service.AccountService
	guard      *session.AvailabilityGuard
	negotiator *session.Negotiator
	logger     *slog.Logger
}

// NewProviderHandler creates a new ProviderHandler.
func NewProviderHandler(accounts service.AccountService, guard *session.AvailabilityGuard, negotiator *session.Negotiator, logger *slog.Logger) *ProviderHandler {
	return &ProviderHandler{accounts: accounts, guard: guard, negotiator: negotiator, logger: logger}
}

// RegisterProviderRequest represents the request body for provider registration.
type RegisterProviderRequest struct {
	Name   string               `json:"name"`
	Prices domain.ChannelPrices `json:"prices"`
}

// Register creates a provider, its account and its wallet. New providers are
// offline until they connect.
// POST /providers/{providerID}
func (h *ProviderHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterProviderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	provider, wallet, err := h.accounts.RegisterProvider(r.Context(), chi.URLParam(r, "providerID"), req.Name, req.Prices)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusCreated, map[string]any{
		"provider": provider,
		"balance":  wallet.Balance,
	})
}

// GetAvailability returns available, busy or offline.
// GET /providers/{providerID}/availability
func (h *ProviderHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerID")
	availability, err := h.guard.Current(r.Context(), providerID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, map[string]any{
		"provider_id":  providerID,
		"availability": availability,
	})
}

// ListPending returns the provider's unanswered consultation requests.
// GET /providers/{providerID}/consultations/pending
func (h *ProviderHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	requests, err := h.negotiator.ListPending(r.Context(), chi.URLParam(r, "providerID"))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, types.ListResponse[domain.ConsultationRequest]{Data: requests})
}
