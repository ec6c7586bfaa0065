// internal/api/handler/wallet.go
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"astrolive/internal/api/types"
	"astrolive/internal/domain"
	"astrolive/internal/service"
	"astrolive/internal/util"
)

// WalletHandler handles HTTP requests related to wallets.
type WalletHandler struct {
	accounts service.AccountService
	ledger   service.LedgerService
	logger   *slog.Logger
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(accounts service.AccountService, ledger service.LedgerService, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{accounts: accounts, ledger: ledger, logger: logger}
}

// CreateWalletRequest represents the request body for opening a client wallet.
type CreateWalletRequest struct {
	Role string `json:"role"`
	Name string `json:"name"`
}

// CreateWallet opens an account and its empty wallet. Providers register
// through the provider endpoint because they also need prices.
// POST /wallets/{accountID}
func (h *WalletHandler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	var req CreateWalletRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	role := domain.Role(req.Role)
	if role == "" {
		role = domain.RoleClient
	}
	if role == domain.RoleProvider {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	account, wallet, err := h.accounts.OpenAccount(r.Context(), accountID, role, req.Name)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusCreated, map[string]any{
		"account_id": account.ID,
		"role":       account.Role,
		"balance":    wallet.Balance,
	})
}

// RechargeRequest represents the request body for topping up a wallet.
type RechargeRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
}

// Recharge credits a wallet from an external payment.
// POST /wallets/{accountID}/recharge
func (h *WalletHandler) Recharge(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	var req RechargeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	if !req.Amount.IsPositive() {
		respondWithError(w, h.logger, util.ErrInvalidAmount)
		return
	}

	tx, err := h.ledger.Credit(r.Context(), accountID, req.Amount, domain.CategoryRecharge, "wallet recharge", req.Reference)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, map[string]any{
		"message":        "Recharge successful",
		"account_id":     accountID,
		"new_balance":    tx.BalanceAfter,
		"transaction_id": tx.ID,
	})
}

// GetWalletBalance returns the current balance.
// GET /wallets/{accountID}/balance
func (h *WalletHandler) GetWalletBalance(w http.ResponseWriter, r *http.Request) {
	wallet, err := h.ledger.GetWallet(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, map[string]any{
		"account_id": wallet.AccountID,
		"balance":    wallet.Balance,
	})
}

// GetTransactionHistory returns a page of the wallet's ledger, newest first.
// GET /wallets/{accountID}/transactions
func (h *WalletHandler) GetTransactionHistory(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	transactions, total, err := h.ledger.GetTransactionHistory(r.Context(), chi.URLParam(r, "accountID"), limit, offset)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, types.PaginatedResponse[domain.Transaction]{
		Data:       transactions,
		Limit:      limit,
		Offset:     offset,
		TotalCount: total,
	})
}
