// internal/session/fixture_test.go
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"astrolive/internal/domain"
	"astrolive/internal/events"
	"astrolive/internal/presence"
	"astrolive/internal/repository/memory"
	"astrolive/internal/service"
)

const (
	testClient   = "client-1"
	testProvider = "provider-1"
	testOperator = "operator"
	testInterval = time.Minute
)

type sent struct {
	Address string
	Event   string
	Payload any
}

// recordingSender captures every delivered event.
type recordingSender struct {
	mu   sync.Mutex
	sent []sent
}

func (r *recordingSender) Send(address, event string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{Address: address, Event: event, Payload: payload})
	return nil
}

// eventsFor returns the events delivered to an account's address, in order.
func (r *recordingSender) eventsFor(accountID string) []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sent
	for _, s := range r.sent {
		if s.Address == addressOf(accountID) {
			out = append(out, s)
		}
	}
	return out
}

func (r *recordingSender) count(accountID, event string) int {
	n := 0
	for _, s := range r.eventsFor(accountID) {
		if s.Event == event {
			n++
		}
	}
	return n
}

func addressOf(accountID string) string { return "conn-" + accountID }

// toggleLedger fails split transfers with an infrastructure error while broken is set.
type toggleLedger struct {
	*service.MemoryLedger
	mu     sync.Mutex
	broken bool
}

var errLedgerDown = errors.New("connection refused")

func (l *toggleLedger) setBroken(b bool) {
	l.mu.Lock()
	l.broken = b
	l.mu.Unlock()
}

func (l *toggleLedger) SplitTransfer(ctx context.Context, req domain.SplitTransferRequest) (*domain.SplitTransferResult, error) {
	l.mu.Lock()
	broken := l.broken
	l.mu.Unlock()
	if broken {
		return nil, errLedgerDown
	}
	return l.MemoryLedger.SplitTransfer(ctx, req)
}

type fixture struct {
	t          *testing.T
	ctx        context.Context
	profiles   *memory.ProfileStore
	requests   *memory.ConsultationStore
	ledger     *toggleLedger
	presence   *presence.MemoryRegistry
	sender     *recordingSender
	scheduler  *ManualScheduler
	guard      *AvailabilityGuard
	registry   *Registry
	biller     *Biller
	negotiator *Negotiator
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// newFixture wires a session engine over in-memory stores. The client holds
// clientBalance and the provider charges 100 per text interval.
func newFixture(t *testing.T, clientBalance string, requestTimeout time.Duration) *fixture {
	t.Helper()
	f := &fixture{
		t:         t,
		ctx:       context.Background(),
		profiles:  memory.NewProfileStore(),
		requests:  memory.NewConsultationStore(),
		ledger:    &toggleLedger{MemoryLedger: service.NewMemoryLedger()},
		presence:  presence.NewMemoryRegistry(),
		sender:    &recordingSender{},
		scheduler: NewManualScheduler(),
		registry:  NewRegistry(),
	}
	logger := discardLogger()
	f.guard = NewAvailabilityGuard(f.profiles)
	notifier := events.NewNotifier(f.presence, f.sender, logger)
	f.biller = NewBiller(f.ledger, f.profiles, f.guard, f.registry, f.scheduler, notifier, events.NoopPublisher{}, BillingConfig{
		Interval:          testInterval,
		ProviderShare:     dec("0.60"),
		OperatorAccountID: testOperator,
		MoneyPlaces:       2,
	}, logger)
	f.negotiator = NewNegotiator(f.profiles, f.requests, f.guard, f.presence, notifier, events.NoopPublisher{},
		f.biller, f.scheduler, requestTimeout, logger)

	accounts := service.NewAccountService(f.profiles, f.ledger)
	require.NoError(t, accounts.EnsureOperator(f.ctx, testOperator))
	_, _, err := accounts.OpenAccount(f.ctx, testClient, domain.RoleClient, "Client One")
	require.NoError(t, err)
	_, _, err = accounts.RegisterProvider(f.ctx, testProvider, "Provider One", domain.ChannelPrices{
		Text:  dec("100"),
		Audio: dec("150"),
	})
	require.NoError(t, err)
	if b := dec(clientBalance); b.IsPositive() {
		_, err = f.ledger.Credit(f.ctx, testClient, b, domain.CategoryRecharge, "seed", "")
		require.NoError(t, err)
	}

	f.connect(testClient)
	f.connect(testProvider)
	ok, err := f.guard.MarkOnline(f.ctx, testProvider)
	require.NoError(t, err)
	require.True(t, ok)
	return f
}

func (f *fixture) connect(accountID string) {
	require.NoError(f.t, f.presence.SetAddress(f.ctx, accountID, addressOf(accountID)))
}

func (f *fixture) balance(accountID string) decimal.Decimal {
	w, err := f.ledger.GetWallet(f.ctx, accountID)
	require.NoError(f.t, err)
	return w.Balance
}

func (f *fixture) availability() domain.Availability {
	a, err := f.guard.Current(f.ctx, testProvider)
	require.NoError(f.t, err)
	return a
}

// markBusy claims the provider the way an accepted request does.
func (f *fixture) markBusy() {
	ok, err := f.guard.MarkBusy(f.ctx, testProvider)
	require.NoError(f.t, err)
	require.True(f.t, ok)
}

func (f *fixture) startParams() StartParams {
	return StartParams{
		RoomID:     domain.RoomIDFor(testClient, testProvider),
		RequestID:  "req-1",
		ClientID:   testClient,
		ProviderID: testProvider,
		Channel:    domain.ChannelText,
	}
}
