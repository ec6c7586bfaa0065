// internal/transport/ws/handler.go
package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"astrolive/internal/domain"
	"astrolive/internal/events"
	"astrolive/internal/presence"
	"astrolive/internal/repository"
	"astrolive/internal/session"
	"astrolive/internal/util"
)

// Inbound event names.
const (
	EventRequestSession = "request-session"
	EventRespondSession = "respond-session"
	EventEndSession     = "end-session"
)

const handleTimeout = 10 * time.Second

type requestSessionData struct {
	ProviderID  string `json:"providerId"`
	ChannelType string `json:"channelType"`
}

type respondSessionData struct {
	RequestID string `json:"requestId"`
	Decision  string `json:"decision"`
}

type endSessionData struct {
	RoomID string `json:"roomId"`
}

// Handler upgrades HTTP requests to WebSocket connections and dispatches
// their inbound events to the session engine.
type Handler struct {
	hub        *Hub
	profiles   repository.ProfileRepository
	presence   presence.Registry
	guard      *session.AvailabilityGuard
	negotiator *session.Negotiator
	biller     *session.Biller
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(
	hub *Hub,
	profiles repository.ProfileRepository,
	registry presence.Registry,
	guard *session.AvailabilityGuard,
	negotiator *session.Negotiator,
	biller *session.Biller,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		hub:        hub,
		profiles:   profiles,
		presence:   registry,
		guard:      guard,
		negotiator: negotiator,
		biller:     biller,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
		logger: logger.With("component", "websocket"),
	}
}

// ServeHTTP handles GET /ws?account_id=<id>&role=<client|provider>.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	role := domain.Role(r.URL.Query().Get("role"))
	if accountID == "" || (role != domain.RoleClient && role != domain.RoleProvider) {
		http.Error(w, "account_id and role (client or provider) are required", http.StatusBadRequest)
		return
	}
	account, err := h.profiles.GetAccount(r.Context(), accountID)
	if err != nil {
		if util.IsError(err, util.ErrAccountNotFound) {
			http.Error(w, "unknown account", http.StatusNotFound)
			return
		}
		h.logger.Error("account lookup failed", "account_id", accountID, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if account.Role != role {
		http.Error(w, "role does not match account", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "account_id", accountID, "error", err)
		return
	}

	c := newClient(h.hub, conn, uuid.NewString(), accountID, role)
	h.hub.register(c)
	if !h.connect(c) {
		h.disconnect(c)
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump(h.dispatch, h.disconnect)
}

// connect records the connection as the account's live address.
func (h *Handler) connect(c *Client) bool {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	if err := h.presence.SetAddress(ctx, c.accountID, c.address); err != nil {
		h.logger.Error("failed to record presence", "account_id", c.accountID, "error", err)
		return false
	}
	if c.role == domain.RoleProvider {
		if _, err := h.guard.MarkOnline(ctx, c.accountID); err != nil {
			h.logger.Error("failed to mark provider online", "provider_id", c.accountID, "error", err)
		}
	}
	return true
}

// disconnect forgets the connection. A provider goes offline only if this was
// still its current connection and it is not in a session.
func (h *Handler) disconnect(c *Client) {
	h.hub.unregister(c)
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	cleared, err := h.presence.ClearIfMatch(ctx, c.accountID, c.address)
	if err != nil {
		h.logger.Error("failed to clear presence", "account_id", c.accountID, "error", err)
		return
	}
	if cleared && c.role == domain.RoleProvider {
		if _, err := h.guard.MarkOffline(ctx, c.accountID); err != nil {
			h.logger.Error("failed to mark provider offline", "provider_id", c.accountID, "error", err)
		}
	}
}

func (h *Handler) dispatch(c *Client, msg inboundMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	var err error
	switch msg.Event {
	case EventRequestSession:
		err = h.requestSession(ctx, c, msg.Data)
	case EventRespondSession:
		err = h.respondSession(ctx, c, msg.Data)
	case EventEndSession:
		err = h.endSession(ctx, c, msg.Data)
	default:
		err = errors.New("unknown event " + msg.Event)
	}
	if err != nil {
		h.logger.Info("inbound event failed", "event", msg.Event, "account_id", c.accountID, "error", err)
		c.reply(events.ChatError, events.ErrorPayload{Message: err.Error()})
	}
}

func (h *Handler) requestSession(ctx context.Context, c *Client, raw json.RawMessage) error {
	if c.role != domain.RoleClient {
		return errors.New("only clients can request a session")
	}
	var data requestSessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return util.ErrInvalidInput
	}
	req, err := h.negotiator.RequestSession(ctx, c.accountID, data.ProviderID, domain.ChannelType(data.ChannelType))
	if err != nil {
		return err
	}
	c.reply(events.RequestSent, events.RequestSentPayload{RequestID: req.ID, ProviderID: req.ProviderID})
	return nil
}

func (h *Handler) respondSession(ctx context.Context, c *Client, raw json.RawMessage) error {
	if c.role != domain.RoleProvider {
		return errors.New("only providers can respond to a session request")
	}
	var data respondSessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return util.ErrInvalidInput
	}
	decision, ok := domain.ParseDecision(data.Decision)
	if !ok {
		return util.ErrInvalidDecision
	}
	_, _, err := h.negotiator.RespondAsProvider(ctx, c.accountID, data.RequestID, decision)
	return err
}

func (h *Handler) endSession(ctx context.Context, c *Client, raw json.RawMessage) error {
	var data endSessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return util.ErrInvalidInput
	}
	return h.biller.EndByParty(ctx, data.RoomID, c.accountID)
}
