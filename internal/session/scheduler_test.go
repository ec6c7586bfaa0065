// internal/session/scheduler_test.go
package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualScheduler_PeriodicAndOnce(t *testing.T) {
	s := NewManualScheduler()
	var periodic, once int

	s.SchedulePeriodic(10*time.Second, func() { periodic++ })
	s.ScheduleOnce(25*time.Second, func() { once++ })
	assert.Equal(t, 2, s.Pending())

	s.Advance(9 * time.Second)
	assert.Equal(t, 0, periodic)

	s.Advance(21 * time.Second)
	assert.Equal(t, 3, periodic)
	assert.Equal(t, 1, once)
	assert.Equal(t, 1, s.Pending())
	assert.Equal(t, time.Unix(30, 0).UTC(), s.Now())
}

func TestManualScheduler_CancelFromInsideTask(t *testing.T) {
	s := NewManualScheduler()
	runs := 0
	var cancel Cancel
	cancel = s.SchedulePeriodic(time.Second, func() {
		runs++
		if runs == 2 {
			cancel()
		}
	})

	s.Advance(10 * time.Second)
	assert.Equal(t, 2, runs)
	assert.Equal(t, 0, s.Pending())
	cancel()
}

func TestTickerScheduler_RunsUntilCancelled(t *testing.T) {
	var runs atomic.Int32
	cancel := TickerScheduler{}.SchedulePeriodic(5*time.Millisecond, func() { runs.Add(1) })

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	cancel()

	settled := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.LessOrEqual(t, runs.Load(), settled+1)
}

func TestTickerScheduler_OnceCanBeCancelled(t *testing.T) {
	var fired atomic.Bool
	cancel := TickerScheduler{}.ScheduleOnce(20*time.Millisecond, func() { fired.Store(true) })
	cancel()
	time.Sleep(40 * time.Millisecond)
	assert.False(t, fired.Load())

	done := make(chan struct{})
	TickerScheduler{}.ScheduleOnce(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("one-shot task did not run")
	}
}
