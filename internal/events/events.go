// internal/events/events.go
package events

import "github.com/shopspring/decimal"

// Event names pushed to connected parties.
const (
	ChatRequest  = "chat-request"
	ChatAccepted = "chat-accepted"
	ChatRejected = "chat-rejected"
	ChatTimer    = "chat-timer"
	ChatEnd      = "chat-end"
	ChatError    = "chat-error"

	// RequestSent acknowledges a request-session frame to its sender.
	RequestSent = "request-sent"
)

// Domain event names published to the message bus.
const (
	ConsultationRequested = "consultation.requested"
	ConsultationResponded = "consultation.responded"
	SessionStarted        = "session.started"
	SessionCharged        = "session.charged"
	SessionEnded          = "session.ended"
)

type RequestPayload struct {
	RequestID   string `json:"requestId"`
	ClientID    string `json:"clientId"`
	ChannelType string `json:"channelType"`
}

type AcceptedPayload struct {
	RoomID      string `json:"roomId"`
	RequestID   string `json:"requestId"`
	ChannelType string `json:"channelType"`
}

type RequestSentPayload struct {
	RequestID  string `json:"requestId"`
	ProviderID string `json:"providerId"`
}

type RejectedPayload struct {
	RequestID string `json:"requestId"`
	Reason    string `json:"reason,omitempty"`
}

type TimerPayload struct {
	RoomID           string          `json:"roomId"`
	Cost             decimal.Decimal `json:"cost"`
	ElapsedIntervals int             `json:"elapsedIntervals"`
}

type EndPayload struct {
	RoomID string `json:"roomId"`
	Reason string `json:"reason"`
}

type ErrorPayload struct {
	RoomID  string `json:"roomId,omitempty"`
	Message string `json:"message"`
}
