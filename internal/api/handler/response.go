// internal/api/handler/response.go
package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"astrolive/internal/api/types"
	"astrolive/internal/service"
	"astrolive/internal/util"
)

// DefaultTimeout bounds every HTTP request except WebSocket upgrades.
const DefaultTimeout = 15 * time.Second

// respondWithJSON writes payload as a JSON response.
func respondWithJSON(w http.ResponseWriter, logger *slog.Logger, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// respondWithError maps service errors to HTTP statuses.
func respondWithError(w http.ResponseWriter, logger *slog.Logger, err error) {
	statusCode := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case util.IsError(err, util.ErrInvalidInput),
		util.IsError(err, util.ErrInvalidAmount),
		util.IsError(err, util.ErrInvalidChannel),
		util.IsError(err, util.ErrInvalidDecision),
		util.IsError(err, util.ErrInvalidSplit):
		statusCode = http.StatusBadRequest
		message = err.Error()
	case util.IsError(err, util.ErrWalletNotFound),
		util.IsError(err, util.ErrAccountNotFound),
		util.IsError(err, util.ErrProviderNotFound),
		util.IsError(err, util.ErrRequestNotFound),
		util.IsError(err, util.ErrSessionNotFound):
		statusCode = http.StatusNotFound
		message = err.Error()
	case util.IsError(err, util.ErrInsufficientFunds):
		statusCode = http.StatusPaymentRequired
		message = "Insufficient funds"
	case util.IsError(err, util.ErrProviderBusy),
		util.IsError(err, util.ErrProviderOffline),
		util.IsError(err, util.ErrSessionActive),
		util.IsError(err, util.ErrDuplicateEntry):
		statusCode = http.StatusConflict
		message = err.Error()
	case util.IsError(err, service.ErrLedgerUnavailable):
		statusCode = http.StatusServiceUnavailable
		message = "Ledger temporarily unavailable"
	case util.IsError(err, util.ErrShuttingDown):
		statusCode = http.StatusServiceUnavailable
		message = err.Error()
	default:
		logger.Error("Unhandled service error", "error", err)
	}

	respondWithJSON(w, logger, statusCode, types.ErrorResponse{Error: message})
}

// decodeJSON reads the request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return util.ErrInvalidInput
	}
	return nil
}

// pagination parses limit and offset query parameters.
func pagination(r *http.Request) (limit, offset int) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	offset, err = strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
