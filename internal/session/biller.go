// internal/session/biller.go
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"astrolive/internal/domain"
	"astrolive/internal/events"
	"astrolive/internal/metrics"
	"astrolive/internal/repository"
	"astrolive/internal/service"
	"astrolive/internal/util"
)

// BillingConfig controls the metered billing loop.
type BillingConfig struct {
	Interval          time.Duration
	ProviderShare     decimal.Decimal
	OperatorAccountID string
	MoneyPlaces       int32
}

// StartParams identifies the session to start billing.
type StartParams struct {
	RoomID     string
	RequestID  string
	ClientID   string
	ProviderID string
	Channel    domain.ChannelType
}

// Session is one live billing unit. Its price and split are fixed when it starts.
type Session struct {
	roomID     string
	requestID  string
	clientID   string
	providerID string
	channel    domain.ChannelType
	price      decimal.Decimal
	split      []domain.Allocation
	startedAt  time.Time

	mu      sync.Mutex // held for the whole of every charge
	elapsed int
	state   domain.SessionState
	ended   bool
	cancel  Cancel
}

func (s *Session) snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() domain.SessionSnapshot {
	return domain.SessionSnapshot{
		RoomID:           s.roomID,
		RequestID:        s.requestID,
		Channel:          s.channel,
		ClientID:         s.clientID,
		ProviderID:       s.providerID,
		Price:            s.price,
		ElapsedIntervals: s.elapsed,
		State:            s.state,
		StartedAt:        s.startedAt,
	}
}

// Biller runs the metered billing loop of every accepted consultation.
type Biller struct {
	ledger    service.LedgerService
	profiles  repository.ProfileRepository
	guard     *AvailabilityGuard
	registry  *Registry
	scheduler Scheduler
	notifier  *events.Notifier
	publisher events.Publisher
	cfg       BillingConfig
	logger    *slog.Logger

	// lifecycle orders Start's registry insert against Shutdown.
	lifecycle sync.RWMutex
	closing   bool
}

// NewBiller creates a Biller.
func NewBiller(
	ledger service.LedgerService,
	profiles repository.ProfileRepository,
	guard *AvailabilityGuard,
	registry *Registry,
	scheduler Scheduler,
	notifier *events.Notifier,
	publisher events.Publisher,
	cfg BillingConfig,
	logger *slog.Logger,
) *Biller {
	return &Biller{
		ledger:    ledger,
		profiles:  profiles,
		guard:     guard,
		registry:  registry,
		scheduler: scheduler,
		notifier:  notifier,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.With("component", "billing"),
	}
}

// Start begins billing a room whose provider has already been marked busy.
// The first interval is charged before Start returns. If that charge is
// refused for insufficient funds the session ends at once and the returned
// snapshot is in the ended state. Any failure to reach the running state
// releases the provider, except ErrSessionActive where the existing session
// still owns it.
func (b *Biller) Start(ctx context.Context, p StartParams) (*domain.SessionSnapshot, error) {
	// Billing must not be aborted by the caller's request being cancelled.
	ctx = context.WithoutCancel(ctx)

	s, err := b.newSession(ctx, p)
	if err != nil {
		b.release(ctx, p.ProviderID)
		return nil, err
	}

	b.lifecycle.RLock()
	if b.closing {
		b.lifecycle.RUnlock()
		b.release(ctx, p.ProviderID)
		return nil, fmt.Errorf("start session %s: %w", p.RoomID, util.ErrShuttingDown)
	}
	inserted := b.registry.Insert(s)
	b.lifecycle.RUnlock()
	if !inserted {
		return nil, fmt.Errorf("start session %s: %w", p.RoomID, util.ErrSessionActive)
	}
	metrics.ActiveSessions.Set(float64(b.registry.Len()))

	s.mu.Lock()
	if s.ended {
		// Ended (by a party or Shutdown) before the first charge.
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return &snap, nil
	}
	err = b.charge(ctx, s)
	if err == nil {
		s.state = domain.SessionRunning
		s.cancel = b.scheduler.SchedulePeriodic(b.cfg.Interval, func() { b.tick(s) })
		snap := s.snapshotLocked()
		b.notifyTimer(ctx, s)
		s.mu.Unlock()

		b.logger.Info("session started", "room_id", s.roomID, "client_id", s.clientID, "provider_id", s.providerID, "channel", s.channel, "price", s.price.String())
		b.publish(ctx, events.SessionStarted, snap)
		return &snap, nil
	}
	s.mu.Unlock()

	if util.IsError(err, util.ErrInsufficientFunds) {
		b.stop(ctx, s, domain.ReasonInsufficientFunds)
		snap := s.snapshot()
		return &snap, nil
	}
	b.fail(ctx, s, err)
	return nil, fmt.Errorf("start session %s: %w", p.RoomID, err)
}

func (b *Biller) newSession(ctx context.Context, p StartParams) (*Session, error) {
	if p.RoomID == "" || p.ClientID == "" || p.ProviderID == "" {
		return nil, util.ErrInvalidInput
	}
	provider, err := b.profiles.GetProvider(ctx, p.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("start session %s: %w", p.RoomID, err)
	}
	price, ok := provider.PriceFor(p.Channel)
	if !ok {
		return nil, fmt.Errorf("start session %s: no %q price: %w", p.RoomID, p.Channel, util.ErrInvalidChannel)
	}
	split, err := domain.ComputeSplit(price, []domain.Share{
		{AccountID: p.ProviderID, Category: p.Channel.Category(), Ratio: b.cfg.ProviderShare},
		{AccountID: b.cfg.OperatorAccountID, Category: domain.CategoryCommission, Ratio: decimal.NewFromInt(1).Sub(b.cfg.ProviderShare)},
	}, b.cfg.OperatorAccountID, b.cfg.MoneyPlaces)
	if err != nil {
		return nil, fmt.Errorf("start session %s: %w", p.RoomID, err)
	}
	return &Session{
		roomID:     p.RoomID,
		requestID:  p.RequestID,
		clientID:   p.ClientID,
		providerID: p.ProviderID,
		channel:    p.Channel,
		price:      price,
		split:      split,
		startedAt:  time.Now().UTC(),
		state:      domain.SessionStarting,
	}, nil
}

// tick is one scheduled charge. The scheduler never overlaps ticks of the same
// session, and s.mu serialises a tick against termination.
func (b *Biller) tick(s *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.Interval)
	defer cancel()

	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	err := b.charge(ctx, s)
	if err == nil {
		b.notifyTimer(ctx, s)
		snap := s.snapshotLocked()
		s.mu.Unlock()
		b.publish(ctx, events.SessionCharged, snap)
		return
	}
	s.mu.Unlock()

	if util.IsError(err, util.ErrInsufficientFunds) {
		b.stop(ctx, s, domain.ReasonInsufficientFunds)
		return
	}
	b.fail(ctx, s, err)
}

// charge bills one interval. Callers hold s.mu.
func (b *Biller) charge(ctx context.Context, s *Session) error {
	interval := s.elapsed + 1
	_, err := b.ledger.SplitTransfer(ctx, domain.SplitTransferRequest{
		PayerID:       s.clientID,
		Amount:        s.price,
		DebitCategory: s.channel.Category(),
		Description:   fmt.Sprintf("%s consultation interval %d", s.channel, interval),
		Reference:     s.roomID,
		Allocations:   s.split,
	})
	switch {
	case err == nil:
		s.elapsed = interval
		metrics.RecordBillingTick(metrics.TickCharged)
		for _, a := range s.split {
			role := string(domain.RoleProvider)
			if a.AccountID == b.cfg.OperatorAccountID {
				role = string(domain.RoleOperator)
			}
			metrics.RecordRevenue(role, a.Amount)
		}
		return nil
	case errors.Is(err, util.ErrInsufficientFunds):
		metrics.RecordBillingTick(metrics.TickInsufficientFunds)
		b.logger.Info("insufficient funds", "room_id", s.roomID, "client_id", s.clientID, "interval", interval)
		return err
	default:
		metrics.RecordBillingTick(metrics.TickError)
		b.logger.Error("billing charge failed", "room_id", s.roomID, "interval", interval, "error", err)
		return err
	}
}

// notifyTimer reports progress to both parties. Callers hold s.mu, so a timer
// event can never follow the session's chat-end.
func (b *Biller) notifyTimer(ctx context.Context, s *Session) {
	b.notifier.NotifyAll(ctx, events.ChatTimer, events.TimerPayload{
		RoomID:           s.roomID,
		Cost:             s.price,
		ElapsedIntervals: s.elapsed,
	}, s.clientID, s.providerID)
}

// fail reports an infrastructure failure to both parties and ends the session.
func (b *Biller) fail(ctx context.Context, s *Session, cause error) {
	if b.registry.Get(s.roomID) != s {
		return
	}
	b.notifier.NotifyAll(ctx, events.ChatError, events.ErrorPayload{
		RoomID:  s.roomID,
		Message: "billing failed, the session has been stopped",
	}, s.clientID, s.providerID)
	if b.stop(ctx, s, domain.ReasonBillingError) {
		b.logger.Error("session stopped after billing failure", "room_id", s.roomID, "error", cause)
	}
}

// stop terminates s exactly once. The caller that wins the registry removal
// marks the session ended under its lock (waiting out any in-flight charge),
// cancels the timer, releases the provider and tells both parties.
func (b *Biller) stop(ctx context.Context, s *Session, reason string) bool {
	if !b.registry.Remove(s.roomID, s) {
		return false
	}
	metrics.ActiveSessions.Set(float64(b.registry.Len()))

	s.mu.Lock()
	s.ended = true
	s.state = domain.SessionEnded
	if s.cancel != nil {
		s.cancel()
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	b.release(ctx, s.providerID)
	b.notifier.NotifyAll(ctx, events.ChatEnd, events.EndPayload{RoomID: s.roomID, Reason: reason}, s.clientID, s.providerID)
	b.logger.Info("session ended", "room_id", s.roomID, "reason", reason, "elapsed_intervals", snap.ElapsedIntervals)
	b.publish(ctx, events.SessionEnded, struct {
		domain.SessionSnapshot
		Reason string `json:"reason"`
	}{snap, reason})
	return true
}

func (b *Biller) release(ctx context.Context, providerID string) {
	if _, err := b.guard.MarkAvailable(ctx, providerID); err != nil {
		b.logger.Error("failed to release provider", "provider_id", providerID, "error", err)
	}
}

func (b *Biller) publish(ctx context.Context, name string, payload any) {
	if err := b.publisher.Publish(ctx, name, payload); err != nil {
		b.logger.Warn("domain event not published", "event", name, "error", err)
	}
}

// End stops a session on behalf of one of its parties. Ending a session that
// has already ended returns util.ErrSessionNotFound and has no effect.
func (b *Biller) End(ctx context.Context, roomID string, initiator domain.Initiator) error {
	if !initiator.Valid() {
		return fmt.Errorf("%w: unknown initiator %q", util.ErrInvalidInput, initiator)
	}
	s := b.registry.Get(roomID)
	if s == nil || !b.stop(context.WithoutCancel(ctx), s, initiator.EndReason()) {
		return util.ErrSessionNotFound
	}
	return nil
}

// EndByParty ends a session for the given account, which must be its client or provider.
func (b *Biller) EndByParty(ctx context.Context, roomID, accountID string) error {
	s := b.registry.Get(roomID)
	if s == nil {
		return util.ErrSessionNotFound
	}
	switch accountID {
	case s.clientID:
		return b.End(ctx, roomID, domain.InitiatorClient)
	case s.providerID:
		return b.End(ctx, roomID, domain.InitiatorProvider)
	default:
		return util.ErrSessionNotFound
	}
}

// Shutdown ends every active session. It is called on graceful stop; Start
// fails with util.ErrShuttingDown afterwards.
func (b *Biller) Shutdown(ctx context.Context) {
	b.lifecycle.Lock()
	b.closing = true
	b.lifecycle.Unlock()

	for _, s := range b.registry.List() {
		b.stop(ctx, s, domain.ReasonShutdown)
	}
}

// Snapshot returns the live view of a room's session.
func (b *Biller) Snapshot(roomID string) (domain.SessionSnapshot, error) {
	s := b.registry.Get(roomID)
	if s == nil {
		return domain.SessionSnapshot{}, util.ErrSessionNotFound
	}
	return s.snapshot(), nil
}

// Active returns snapshots of every running session.
func (b *Biller) Active() []domain.SessionSnapshot {
	sessions := b.registry.List()
	out := make([]domain.SessionSnapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.snapshot())
	}
	return out
}
