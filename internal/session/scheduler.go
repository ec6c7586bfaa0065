// internal/session/scheduler.go
package session

import (
	"sort"
	"sync"
	"time"
)

// Cancel stops a scheduled task. It is idempotent, never blocks and may be
// called from inside the task itself.
type Cancel func()

// Scheduler runs billing ticks and request expiries.
type Scheduler interface {
	// SchedulePeriodic runs fn every interval on fixed boundaries. Runs of one
	// task never overlap; a run that overshoots its slot skips the missed
	// boundaries instead of bursting.
	SchedulePeriodic(interval time.Duration, fn func()) Cancel
	// ScheduleOnce runs fn once after delay.
	ScheduleOnce(delay time.Duration, fn func()) Cancel
}

// TickerScheduler is the wall-clock Scheduler backed by time.Ticker.
type TickerScheduler struct{}

var _ Scheduler = TickerScheduler{}

func (TickerScheduler) SchedulePeriodic(interval time.Duration, fn func()) Cancel {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	var once sync.Once

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				// Cancel may race with a ready tick; cancellation wins.
				select {
				case <-done:
					return
				default:
				}
				fn()
			}
		}
	}()

	return func() { once.Do(func() { close(done) }) }
}

func (TickerScheduler) ScheduleOnce(delay time.Duration, fn func()) Cancel {
	t := time.AfterFunc(delay, fn)
	return func() { t.Stop() }
}

// ManualScheduler is a virtual clock. Nothing runs until Advance is called,
// and due tasks run synchronously on the caller's goroutine in time order.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Time
	seq   int
	tasks map[int]*manualTask
}

type manualTask struct {
	id       int
	next     time.Time
	interval time.Duration // zero for one-shot tasks
	fn       func()
}

var _ Scheduler = (*ManualScheduler)(nil)

// NewManualScheduler creates a virtual clock starting at the Unix epoch.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{now: time.Unix(0, 0).UTC(), tasks: make(map[int]*manualTask)}
}

func (m *ManualScheduler) SchedulePeriodic(interval time.Duration, fn func()) Cancel {
	return m.add(interval, interval, fn)
}

func (m *ManualScheduler) ScheduleOnce(delay time.Duration, fn func()) Cancel {
	return m.add(delay, 0, fn)
}

func (m *ManualScheduler) add(delay, interval time.Duration, fn func()) Cancel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	id := m.seq
	m.tasks[id] = &manualTask{id: id, next: m.now.Add(delay), interval: interval, fn: fn}
	return func() {
		m.mu.Lock()
		delete(m.tasks, id)
		m.mu.Unlock()
	}
}

// Advance moves the clock forward by d, running every task that falls due.
func (m *ManualScheduler) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		task := m.nextDue(target)
		if task == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = task.next
		if task.interval > 0 {
			task.next = task.next.Add(task.interval)
		} else {
			delete(m.tasks, task.id)
		}
		fn := task.fn
		m.mu.Unlock()

		fn()
	}
}

// nextDue returns the earliest task due at or before target. Callers hold m.mu.
func (m *ManualScheduler) nextDue(target time.Time) *manualTask {
	due := make([]*manualTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		if !t.next.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].next.Equal(due[j].next) {
			return due[i].id < due[j].id
		}
		return due[i].next.Before(due[j].next)
	})
	return due[0]
}

// Pending returns the number of scheduled tasks.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Now returns the virtual time.
func (m *ManualScheduler) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}
