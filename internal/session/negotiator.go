// internal/session/negotiator.go
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"astrolive/internal/domain"
	"astrolive/internal/events"
	"astrolive/internal/metrics"
	"astrolive/internal/presence"
	"astrolive/internal/repository"
	"astrolive/internal/util"
)

// Reasons recorded on rejected requests.
const (
	rejectedByProvider = "rejected by provider"
	rejectedBusy       = "provider busy"
	rejectedTimeout    = "timeout"
	rejectedFailure    = "provider unavailable"
)

// Negotiator runs the request/accept/reject handshake that precedes a session.
type Negotiator struct {
	profiles      repository.ProfileRepository
	consultations repository.ConsultationRepository
	guard         *AvailabilityGuard
	presence      presence.Registry
	notifier      *events.Notifier
	publisher     events.Publisher
	biller        *Biller
	scheduler     Scheduler
	timeout       time.Duration // zero: requests never expire
	logger        *slog.Logger

	mu     sync.Mutex
	expiry map[string]Cancel
}

// NewNegotiator creates a Negotiator.
func NewNegotiator(
	profiles repository.ProfileRepository,
	consultations repository.ConsultationRepository,
	guard *AvailabilityGuard,
	registry presence.Registry,
	notifier *events.Notifier,
	publisher events.Publisher,
	biller *Biller,
	scheduler Scheduler,
	timeout time.Duration,
	logger *slog.Logger,
) *Negotiator {
	return &Negotiator{
		profiles:      profiles,
		consultations: consultations,
		guard:         guard,
		presence:      registry,
		notifier:      notifier,
		publisher:     publisher,
		biller:        biller,
		scheduler:     scheduler,
		timeout:       timeout,
		logger:        logger.With("component", "negotiation"),
		expiry:        make(map[string]Cancel),
	}
}

// RequestSession creates a pending request from a client to a provider and
// pushes it to the provider's connection.
func (n *Negotiator) RequestSession(ctx context.Context, clientID, providerID string, channel domain.ChannelType) (*domain.ConsultationRequest, error) {
	if !channel.Valid() {
		return nil, util.ErrInvalidChannel
	}
	if clientID == providerID {
		return nil, fmt.Errorf("request session: %s cannot consult itself: %w", clientID, util.ErrInvalidInput)
	}
	if _, err := n.profiles.GetAccount(ctx, clientID); err != nil {
		return nil, fmt.Errorf("request session: client %s: %w", clientID, err)
	}
	provider, err := n.profiles.GetProvider(ctx, providerID)
	if err != nil {
		metrics.RecordNegotiation("provider_not_found")
		return nil, fmt.Errorf("request session: %w", err)
	}

	availability, err := n.guard.Current(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("request session: %w", err)
	}
	if availability == domain.AvailabilityBusy {
		metrics.RecordNegotiation("provider_busy")
		return nil, util.ErrProviderBusy
	}
	_, online, err := n.presence.GetAddress(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("request session: presence lookup: %w", err)
	}
	if !online || availability == domain.AvailabilityOffline {
		metrics.RecordNegotiation("provider_offline")
		return nil, util.ErrProviderOffline
	}
	if _, ok := provider.PriceFor(channel); !ok {
		return nil, fmt.Errorf("request session: provider does not offer %s: %w", channel, util.ErrInvalidChannel)
	}

	req := domain.NewConsultationRequest(clientID, providerID, channel)
	if err := n.consultations.CreateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("request session: %w", err)
	}

	n.notifier.Notify(ctx, providerID, events.ChatRequest, events.RequestPayload{
		RequestID:   req.ID,
		ClientID:    clientID,
		ChannelType: string(channel),
	})
	n.armExpiry(req.ID)
	metrics.RecordNegotiation("requested")
	n.publish(ctx, events.ConsultationRequested, req)
	n.logger.Info("consultation requested", "request_id", req.ID, "client_id", clientID, "provider_id", providerID, "channel", channel)
	return req, nil
}

// RespondToSession resolves a pending request. On acceptance the provider is
// claimed, both parties receive the room id and billing starts; the returned
// snapshot describes the started session.
func (n *Negotiator) RespondToSession(ctx context.Context, requestID string, decision domain.Decision) (*domain.ConsultationRequest, *domain.SessionSnapshot, error) {
	req, err := n.consultations.GetRequest(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	if req.Status != domain.RequestPending {
		return nil, nil, util.ErrRequestNotFound
	}

	switch decision {
	case domain.DecisionReject:
		resolved, err := n.reject(ctx, req, rejectedByProvider)
		return resolved, nil, err
	case domain.DecisionAccept:
		return n.accept(ctx, req)
	default:
		return nil, nil, util.ErrInvalidDecision
	}
}

// RespondAsProvider is RespondToSession for a caller that must own the request.
func (n *Negotiator) RespondAsProvider(ctx context.Context, providerID, requestID string, decision domain.Decision) (*domain.ConsultationRequest, *domain.SessionSnapshot, error) {
	req, err := n.consultations.GetRequest(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	if req.ProviderID != providerID {
		return nil, nil, util.ErrRequestNotFound
	}
	return n.RespondToSession(ctx, requestID, decision)
}

func (n *Negotiator) reject(ctx context.Context, req *domain.ConsultationRequest, reason string) (*domain.ConsultationRequest, error) {
	resolved, err := n.consultations.ResolveRequest(ctx, req.ID, domain.RequestRejected, nil, reason)
	if err != nil {
		return nil, err
	}
	n.disarmExpiry(req.ID)
	n.announceRejection(ctx, resolved, reason)
	return resolved, nil
}

func (n *Negotiator) announceRejection(ctx context.Context, req *domain.ConsultationRequest, reason string) {
	n.notifier.Notify(ctx, req.ClientID, events.ChatRejected, events.RejectedPayload{RequestID: req.ID, Reason: reason})
	metrics.RecordNegotiation("rejected")
	n.publish(ctx, events.ConsultationResponded, req)
	n.logger.Info("consultation rejected", "request_id", req.ID, "reason", reason)
}

// accept resolves the request before claiming the provider, so a repeated
// accept of the same request fails with ErrRequestNotFound and leaves the
// first one alone. A request that then loses the provider is revoked.
func (n *Negotiator) accept(ctx context.Context, req *domain.ConsultationRequest) (*domain.ConsultationRequest, *domain.SessionSnapshot, error) {
	roomID := domain.RoomIDFor(req.ClientID, req.ProviderID)
	resolved, err := n.consultations.ResolveRequest(ctx, req.ID, domain.RequestAccepted, &roomID, "")
	if err != nil {
		return nil, nil, err
	}
	n.disarmExpiry(req.ID)

	won, err := n.guard.MarkBusy(ctx, req.ProviderID)
	if err != nil {
		n.revoke(ctx, req, rejectedFailure)
		return nil, nil, fmt.Errorf("accept %s: %w", req.ID, err)
	}
	if !won {
		// Another request holds the provider.
		n.revoke(ctx, req, rejectedBusy)
		return nil, nil, util.ErrProviderBusy
	}

	metrics.RecordNegotiation("accepted")
	n.publish(ctx, events.ConsultationResponded, resolved)

	n.notifier.NotifyAll(ctx, events.ChatAccepted, events.AcceptedPayload{
		RoomID:      roomID,
		RequestID:   req.ID,
		ChannelType: string(req.Channel),
	}, req.ClientID, req.ProviderID)
	n.logger.Info("consultation accepted", "request_id", req.ID, "room_id", roomID)

	snap, err := n.biller.Start(ctx, StartParams{
		RoomID:     roomID,
		RequestID:  req.ID,
		ClientID:   req.ClientID,
		ProviderID: req.ProviderID,
		Channel:    req.Channel,
	})
	if err != nil {
		return resolved, nil, err
	}
	return resolved, snap, nil
}

func (n *Negotiator) revoke(ctx context.Context, req *domain.ConsultationRequest, reason string) {
	revoked, err := n.consultations.RevokeAcceptance(ctx, req.ID, reason)
	if err != nil {
		n.logger.Error("failed to revoke acceptance", "request_id", req.ID, "error", err)
		return
	}
	n.announceRejection(ctx, revoked, reason)
}

// ListPending returns a provider's unanswered requests, oldest first.
func (n *Negotiator) ListPending(ctx context.Context, providerID string) ([]domain.ConsultationRequest, error) {
	if _, err := n.profiles.GetProvider(ctx, providerID); err != nil {
		return nil, err
	}
	return n.consultations.ListRequests(ctx, providerID, domain.RequestPending)
}

func (n *Negotiator) armExpiry(requestID string) {
	if n.timeout <= 0 {
		return
	}
	cancel := n.scheduler.ScheduleOnce(n.timeout, func() { n.expire(requestID) })
	n.mu.Lock()
	n.expiry[requestID] = cancel
	n.mu.Unlock()
}

func (n *Negotiator) disarmExpiry(requestID string) {
	n.mu.Lock()
	cancel, ok := n.expiry[requestID]
	delete(n.expiry, requestID)
	n.mu.Unlock()
	if ok {
		cancel()
	}
}

// expire auto-rejects a request nobody answered in time.
func (n *Negotiator) expire(requestID string) {
	ctx := context.Background()
	n.mu.Lock()
	delete(n.expiry, requestID)
	n.mu.Unlock()

	resolved, err := n.consultations.ResolveRequest(ctx, requestID, domain.RequestRejected, nil, rejectedTimeout)
	if err != nil {
		if !util.IsError(err, util.ErrRequestNotFound) {
			n.logger.Error("failed to expire request", "request_id", requestID, "error", err)
		}
		return
	}
	n.notifier.NotifyAll(ctx, events.ChatRejected, events.RejectedPayload{RequestID: requestID, Reason: rejectedTimeout},
		resolved.ClientID, resolved.ProviderID)
	metrics.RecordNegotiation("expired")
	n.publish(ctx, events.ConsultationResponded, resolved)
	n.logger.Info("consultation request expired", "request_id", requestID)
}

func (n *Negotiator) publish(ctx context.Context, name string, payload any) {
	if err := n.publisher.Publish(ctx, name, payload); err != nil {
		n.logger.Warn("domain event not published", "event", name, "error", err)
	}
}
