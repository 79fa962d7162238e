package frameloop

import (
	"sync"
	"time"
)

// Scheduler runs fn once after d.
type Scheduler interface {
	After(d time.Duration, fn func())
}

// TimerScheduler schedules on the runtime timer.
type TimerScheduler struct{}

func (TimerScheduler) After(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}

// ManualScheduler queues callbacks until RunPending. Delays are ignored.
type ManualScheduler struct {
	mu    sync.Mutex
	queue []func()
}

func (m *ManualScheduler) After(_ time.Duration, fn func()) {
	m.mu.Lock()
	m.queue = append(m.queue, fn)
	m.mu.Unlock()
}

// Pending is the number of queued callbacks.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// RunPending runs the callbacks queued so far and returns how many ran.
// Callbacks they schedule wait for the next call.
func (m *ManualScheduler) RunPending() int {
	m.mu.Lock()
	queue := m.queue
	m.queue = nil
	m.mu.Unlock()

	for _, fn := range queue {
		fn()
	}
	return len(queue)
}
