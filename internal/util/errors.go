// internal/util/errors.go
package util

import "errors"

// Common application-specific errors.
var (
	ErrInvalidInput   = errors.New("invalid input provided")
	ErrInvalidAmount  = errors.New("amount must be positive")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Ledger
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrAccountNotFound   = errors.New("account not found")
	ErrInvalidSplit      = errors.New("invalid split allocation")

	// Negotiation
	ErrProviderNotFound = errors.New("provider not found")
	ErrProviderBusy     = errors.New("provider is busy")
	ErrProviderOffline  = errors.New("provider is offline")
	ErrRequestNotFound  = errors.New("consultation request not found or already resolved")
	ErrInvalidChannel   = errors.New("invalid channel type")
	ErrInvalidDecision  = errors.New("invalid decision")

	// Sessions
	ErrSessionActive   = errors.New("session already active for room")
	ErrSessionNotFound = errors.New("session not found")
	ErrShuttingDown    = errors.New("server is shutting down")
)

// IsError reports whether any error in err's chain matches target.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}

// IsDomainError reports whether err is an expected business outcome rather than
// an infrastructure failure. Domain errors are translated into user-facing
// notifications and never trip circuit breakers.
func IsDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var domainErrors = []error{
	ErrInvalidInput,
	ErrInvalidAmount,
	ErrDuplicateEntry,
	ErrInsufficientFunds,
	ErrWalletNotFound,
	ErrAccountNotFound,
	ErrInvalidSplit,
	ErrProviderNotFound,
	ErrProviderBusy,
	ErrProviderOffline,
	ErrRequestNotFound,
	ErrInvalidChannel,
	ErrInvalidDecision,
	ErrSessionActive,
	ErrSessionNotFound,
}
