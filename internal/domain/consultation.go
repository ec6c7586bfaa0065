// internal/domain/consultation.go
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChannelType is the medium of a consultation.
type ChannelType string

const (
	ChannelText  ChannelType = "text"
	ChannelAudio ChannelType = "audio"
	ChannelVideo ChannelType = "video"
)

// Valid reports whether c is a known channel.
func (c ChannelType) Valid() bool {
	switch c {
	case ChannelText, ChannelAudio, ChannelVideo:
		return true
	}
	return false
}

// Category maps a channel to the ledger category used when billing it.
func (c ChannelType) Category() Category {
	switch c {
	case ChannelAudio:
		return CategoryAudioCall
	case ChannelVideo:
		return CategoryVideoCall
	default:
		return CategoryChat
	}
}

// RequestStatus is the negotiation state of a ConsultationRequest.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// Decision is a provider's answer to a pending request.
type Decision string

const (
	DecisionAccept Decision = "accepted"
	DecisionReject Decision = "rejected"
)

// ParseDecision accepts both verb and participle forms ("accept", "accepted").
func ParseDecision(s string) (Decision, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "accept", "accepted":
		return DecisionAccept, true
	case "reject", "rejected":
		return DecisionReject, true
	}
	return "", false
}

// Status returns the terminal request status the decision leads to.
func (d Decision) Status() RequestStatus {
	if d == DecisionAccept {
		return RequestAccepted
	}
	return RequestRejected
}

// ConsultationRequest is one negotiation attempt. It leaves pending exactly once.
type ConsultationRequest struct {
	ID         string        `db:"id" json:"id"`
	ClientID   string        `db:"client_id" json:"client_id"`
	ProviderID string        `db:"provider_id" json:"provider_id"`
	Channel    ChannelType   `db:"channel_type" json:"channel_type"`
	Status     RequestStatus `db:"status" json:"status"`
	RoomID     *string       `db:"room_id" json:"room_id,omitempty"` // set only on acceptance
	Reason     string        `db:"reason" json:"reason,omitempty"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updated_at"`
}

// NewConsultationRequest creates a pending request.
func NewConsultationRequest(clientID, providerID string, channel ChannelType) *ConsultationRequest {
	now := time.Now().UTC()
	return &ConsultationRequest{
		ID:         uuid.NewString(),
		ClientID:   clientID,
		ProviderID: providerID,
		Channel:    channel,
		Status:     RequestPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// RoomIDFor derives the deterministic room id of a client/provider pair.
func RoomIDFor(clientID, providerID string) string {
	return fmt.Sprintf("room_%s_%s", clientID, providerID)
}
