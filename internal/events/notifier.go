// internal/events/notifier.go
package events

import (
	"context"
	"log/slog"

	"astrolive/internal/presence"
)

// Sender delivers one event to one transport address.
type Sender interface {
	Send(address, event string, payload any) error
}

// Notifier resolves accounts to their live addresses and pushes events to them.
// Delivery is best effort: an offline account or a failed send is logged, not returned.
type Notifier struct {
	presence presence.Registry
	sender   Sender
	logger   *slog.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(registry presence.Registry, sender Sender, logger *slog.Logger) *Notifier {
	return &Notifier{presence: registry, sender: sender, logger: logger.With("component", "notifier")}
}

// Notify sends event to accountID and reports whether it was handed to the transport.
func (n *Notifier) Notify(ctx context.Context, accountID, event string, payload any) bool {
	address, ok, err := n.presence.GetAddress(ctx, accountID)
	if err != nil {
		n.logger.Warn("presence lookup failed", "account_id", accountID, "event", event, "error", err)
		return false
	}
	if !ok {
		n.logger.Debug("account offline, event dropped", "account_id", accountID, "event", event)
		return false
	}
	if err := n.sender.Send(address, event, payload); err != nil {
		n.logger.Warn("event delivery failed", "account_id", accountID, "event", event, "error", err)
		return false
	}
	return true
}

// NotifyAll sends the same event to every listed account.
func (n *Notifier) NotifyAll(ctx context.Context, event string, payload any, accountIDs ...string) {
	for _, id := range accountIDs {
		n.Notify(ctx, id, event, payload)
	}
}
