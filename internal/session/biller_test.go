// internal/session/biller_test.go
package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"astrolive/internal/domain"
	"astrolive/internal/events"
	"astrolive/internal/util"
)

func TestBiller_ChargesUntilFundsRunOut(t *testing.T) {
	f := newFixture(t, "150", 0)
	f.markBusy()

	snap, err := f.biller.Start(f.ctx, f.startParams())
	require.NoError(t, err)
	assert.Equal(t, domain.SessionRunning, snap.State)
	assert.Equal(t, 1, snap.ElapsedIntervals)
	assert.True(t, dec("100").Equal(snap.Price))

	assert.True(t, dec("50").Equal(f.balance(testClient)))
	assert.True(t, dec("60").Equal(f.balance(testProvider)))
	assert.True(t, dec("40").Equal(f.balance(testOperator)))
	assert.Equal(t, 1, f.sender.count(testClient, events.ChatTimer))
	assert.Equal(t, 1, f.sender.count(testProvider, events.ChatTimer))

	f.scheduler.Advance(testInterval)

	assert.True(t, dec("50").Equal(f.balance(testClient)), "refused charge must not move money")
	assert.True(t, dec("60").Equal(f.balance(testProvider)))
	assert.Equal(t, domain.AvailabilityAvailable, f.availability())
	assert.Equal(t, 0, f.registry.Len())
	assert.Equal(t, 0, f.scheduler.Pending())

	for _, id := range []string{testClient, testProvider} {
		got := f.sender.eventsFor(id)
		require.NotEmpty(t, got)
		last := got[len(got)-1]
		assert.Equal(t, events.ChatEnd, last.Event)
		assert.Equal(t, domain.ReasonInsufficientFunds, last.Payload.(events.EndPayload).Reason)
	}

	f.scheduler.Advance(3 * testInterval)
	assert.Equal(t, 1, f.sender.count(testClient, events.ChatEnd))
	assert.Equal(t, 1, f.sender.count(testClient, events.ChatTimer))
}

func TestBiller_TicksOnEveryInterval(t *testing.T) {
	f := newFixture(t, "1000", 0)
	f.markBusy()

	_, err := f.biller.Start(f.ctx, f.startParams())
	require.NoError(t, err)

	f.scheduler.Advance(3 * testInterval)

	snap, err := f.biller.Snapshot(f.startParams().RoomID)
	require.NoError(t, err)
	assert.Equal(t, 4, snap.ElapsedIntervals)
	assert.True(t, dec("600").Equal(f.balance(testClient)))
	assert.True(t, dec("240").Equal(f.balance(testProvider)))
	assert.True(t, dec("160").Equal(f.balance(testOperator)))
	assert.Equal(t, domain.AvailabilityBusy, f.availability())

	timers := 0
	for _, s := range f.sender.eventsFor(testClient) {
		if s.Event == events.ChatTimer {
			timers++
			assert.Equal(t, timers, s.Payload.(events.TimerPayload).ElapsedIntervals)
		}
	}
	assert.Equal(t, 4, timers)
}

func TestBiller_InsufficientFundsOnFirstCharge(t *testing.T) {
	f := newFixture(t, "99.99", 0)
	f.markBusy()

	snap, err := f.biller.Start(f.ctx, f.startParams())
	require.NoError(t, err)
	assert.Equal(t, domain.SessionEnded, snap.State)
	assert.Equal(t, 0, snap.ElapsedIntervals)

	assert.True(t, dec("99.99").Equal(f.balance(testClient)))
	assert.Equal(t, domain.AvailabilityAvailable, f.availability())
	assert.Equal(t, 0, f.registry.Len())
	assert.Equal(t, 0, f.sender.count(testClient, events.ChatTimer))
	assert.Equal(t, 1, f.sender.count(testClient, events.ChatEnd))
	assert.Equal(t, 1, f.sender.count(testProvider, events.ChatEnd))
}

func TestBiller_EndIsIdempotent(t *testing.T) {
	f := newFixture(t, "1000", 0)
	f.markBusy()
	room := f.startParams().RoomID

	_, err := f.biller.Start(f.ctx, f.startParams())
	require.NoError(t, err)

	require.NoError(t, f.biller.End(f.ctx, room, domain.InitiatorClient))
	err = f.biller.End(f.ctx, room, domain.InitiatorProvider)
	assert.ErrorIs(t, err, util.ErrSessionNotFound)

	assert.Equal(t, 1, f.sender.count(testClient, events.ChatEnd))
	assert.Equal(t, 1, f.sender.count(testProvider, events.ChatEnd))
	got := f.sender.eventsFor(testProvider)
	assert.Equal(t, "ended by client", got[len(got)-1].Payload.(events.EndPayload).Reason)
	assert.Equal(t, domain.AvailabilityAvailable, f.availability())

	f.scheduler.Advance(5 * testInterval)
	assert.True(t, dec("900").Equal(f.balance(testClient)), "no charge after end")
}

func TestBiller_EndRejectsUnknownInitiator(t *testing.T) {
	f := newFixture(t, "1000", 0)
	err := f.biller.End(f.ctx, "room_x", domain.Initiator("operator"))
	assert.ErrorIs(t, err, util.ErrInvalidInput)
}

func TestBiller_EndByParty(t *testing.T) {
	f := newFixture(t, "1000", 0)
	f.markBusy()
	room := f.startParams().RoomID
	_, err := f.biller.Start(f.ctx, f.startParams())
	require.NoError(t, err)

	assert.ErrorIs(t, f.biller.EndByParty(f.ctx, room, "stranger"), util.ErrSessionNotFound)
	require.NoError(t, f.biller.EndByParty(f.ctx, room, testProvider))

	got := f.sender.eventsFor(testClient)
	assert.Equal(t, "ended by provider", got[len(got)-1].Payload.(events.EndPayload).Reason)
}

func TestBiller_SecondStartForRoomFails(t *testing.T) {
	f := newFixture(t, "1000", 0)
	f.markBusy()

	_, err := f.biller.Start(f.ctx, f.startParams())
	require.NoError(t, err)

	_, err = f.biller.Start(f.ctx, f.startParams())
	assert.ErrorIs(t, err, util.ErrSessionActive)
	assert.Equal(t, 1, f.registry.Len())
	assert.Equal(t, domain.AvailabilityBusy, f.availability(), "the running session still owns the provider")
	assert.True(t, dec("900").Equal(f.balance(testClient)))
}

func TestBiller_UnofferedChannelReleasesProvider(t *testing.T) {
	f := newFixture(t, "1000", 0)
	f.markBusy()
	p := f.startParams()
	p.Channel = domain.ChannelVideo

	_, err := f.biller.Start(f.ctx, p)
	assert.ErrorIs(t, err, util.ErrInvalidChannel)
	assert.Equal(t, domain.AvailabilityAvailable, f.availability())
	assert.Equal(t, 0, f.registry.Len())
}

func TestBiller_LedgerFailureStopsSession(t *testing.T) {
	f := newFixture(t, "1000", 0)
	f.markBusy()

	_, err := f.biller.Start(f.ctx, f.startParams())
	require.NoError(t, err)

	f.ledger.setBroken(true)
	f.scheduler.Advance(testInterval)

	for _, id := range []string{testClient, testProvider} {
		assert.Equal(t, 1, f.sender.count(id, events.ChatError))
		got := f.sender.eventsFor(id)
		last := got[len(got)-1]
		assert.Equal(t, events.ChatEnd, last.Event)
		assert.Equal(t, domain.ReasonBillingError, last.Payload.(events.EndPayload).Reason)
	}
	assert.Equal(t, 0, f.registry.Len())
	assert.Equal(t, 0, f.scheduler.Pending())
	assert.Equal(t, domain.AvailabilityAvailable, f.availability())

	f.ledger.setBroken(false)
	f.scheduler.Advance(3 * testInterval)
	assert.True(t, dec("900").Equal(f.balance(testClient)), "no ticks after a billing failure")
}

func TestBiller_LedgerFailureOnFirstCharge(t *testing.T) {
	f := newFixture(t, "1000", 0)
	f.markBusy()
	f.ledger.setBroken(true)

	snap, err := f.biller.Start(f.ctx, f.startParams())
	assert.ErrorIs(t, err, errLedgerDown)
	assert.Nil(t, snap)
	assert.Equal(t, 1, f.sender.count(testClient, events.ChatError))
	assert.Equal(t, domain.AvailabilityAvailable, f.availability())
	assert.Equal(t, 0, f.registry.Len())
}

func TestBiller_ShutdownEndsEverySession(t *testing.T) {
	f := newFixture(t, "1000", 0)
	f.markBusy()
	_, err := f.biller.Start(f.ctx, f.startParams())
	require.NoError(t, err)

	f.biller.Shutdown(f.ctx)

	assert.Empty(t, f.biller.Active())
	got := f.sender.eventsFor(testClient)
	assert.Equal(t, domain.ReasonShutdown, got[len(got)-1].Payload.(events.EndPayload).Reason)
	assert.Equal(t, domain.AvailabilityAvailable, f.availability())
}

func TestBiller_StartAfterShutdown(t *testing.T) {
	f := newFixture(t, "1000", 0)
	f.biller.Shutdown(f.ctx)

	f.markBusy()
	snap, err := f.biller.Start(f.ctx, f.startParams())
	assert.ErrorIs(t, err, util.ErrShuttingDown)
	assert.Nil(t, snap)

	assert.Equal(t, 0, f.registry.Len())
	assert.Equal(t, 0, f.scheduler.Pending())
	assert.Equal(t, domain.AvailabilityAvailable, f.availability())
	assert.True(t, dec("1000").Equal(f.balance(testClient)))
}

func TestBiller_ConcurrentEndAndTick(t *testing.T) {
	for i := 0; i < 50; i++ {
		f := newFixture(t, "100000", 0)
		f.markBusy()
		room := f.startParams().RoomID
		_, err := f.biller.Start(f.ctx, f.startParams())
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(3)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				f.scheduler.Advance(testInterval)
			}
		}()
		go func() {
			defer wg.Done()
			_ = f.biller.End(f.ctx, room, domain.InitiatorClient)
		}()
		go func() {
			defer wg.Done()
			_ = f.biller.End(f.ctx, room, domain.InitiatorProvider)
		}()
		wg.Wait()

		for _, id := range []string{testClient, testProvider} {
			got := f.sender.eventsFor(id)
			require.Equal(t, 1, f.sender.count(id, events.ChatEnd))
			assert.Equal(t, events.ChatEnd, got[len(got)-1].Event, "nothing may follow chat-end")
		}
		total := f.balance(testClient).Add(f.balance(testProvider)).Add(f.balance(testOperator))
		assert.True(t, dec("100000").Equal(total), "money is conserved")
		assert.Equal(t, domain.AvailabilityAvailable, f.availability())
	}
}
