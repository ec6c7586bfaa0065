// internal/domain/session.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SessionState is the lifecycle of a billing session.
type SessionState string

const (
	SessionStarting SessionState = "starting"
	SessionRunning  SessionState = "running"
	SessionEnded    SessionState = "ended"
)

// Initiator identifies the party that explicitly ended a session.
type Initiator string

const (
	InitiatorClient   Initiator = "client"
	InitiatorProvider Initiator = "provider"
)

// Valid reports whether i is a known initiator.
func (i Initiator) Valid() bool {
	return i == InitiatorClient || i == InitiatorProvider
}

// EndReason returns the termination reason shown to both parties.
func (i Initiator) EndReason() string {
	return "ended by " + string(i)
}

// Termination reasons not caused by a party.
const (
	ReasonInsufficientFunds = "insufficient funds"
	ReasonBillingError      = "billing error"
	ReasonShutdown          = "server shutdown"
)

// SessionSnapshot is a read-only copy of a live session.
type SessionSnapshot struct {
	RoomID           string          `json:"room_id"`
	RequestID        string          `json:"request_id,omitempty"`
	Channel          ChannelType     `json:"channel_type"`
	ClientID         string          `json:"client_id"`
	ProviderID       string          `json:"provider_id"`
	Price            decimal.Decimal `json:"price_per_interval"`
	ElapsedIntervals int             `json:"elapsed_intervals"`
	State            SessionState    `json:"state"`
	StartedAt        time.Time       `json:"started_at"`
}
