// internal/events/publisher.go
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix prefixes every domain event subject.
const DefaultSubjectPrefix = "astrolive"

// Publisher emits domain events for other services (analytics, payouts).
type Publisher interface {
	Publish(ctx context.Context, name string, payload any) error
}

// Envelope wraps every published domain event.
type Envelope struct {
	Event      string    `json:"event"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// NATSPublisher publishes JSON envelopes to "<prefix>.<event name>".
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// ConnectNATS dials the NATS server at url.
func ConnectNATS(url string, logger *slog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("astrolive"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return nc, nil
}

// NewNATSPublisher creates a publisher on an established connection.
func NewNATSPublisher(conn *nats.Conn, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{conn: conn, prefix: prefix}
}

// Subject returns the subject an event name is published on.
func (p *NATSPublisher) Subject(name string) string {
	return p.prefix + "." + name
}

func (p *NATSPublisher) Publish(_ context.Context, name string, payload any) error {
	data, err := json.Marshal(Envelope{Event: name, OccurredAt: time.Now().UTC(), Data: payload})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", name, err)
	}
	if err := p.conn.Publish(p.Subject(name), data); err != nil {
		return fmt.Errorf("publish %s event: %w", name, err)
	}
	return nil
}

// NoopPublisher drops every event. It is used when no bus is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, any) error { return nil }
