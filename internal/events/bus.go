package events

import (
	"sync"
	"sync/atomic"
)

type subscriber struct {
	id uint64
	fn func(Payload)
}

// Bus delivers payloads to subscribers of their type.
//
// Publish delivers synchronously on the caller's goroutine in subscription
// order. Enqueue is safe from any goroutine and defers delivery until the
// owner calls Drain, which the frame loop does at the start of each tick.
type Bus struct {
	mu     sync.Mutex
	subs   [numEventTypes][]subscriber
	nextID uint64
	queue  []Payload

	published [numEventTypes]atomic.Uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn for payloads of type T and returns a function
// that removes it. Calling the returned function more than once is safe.
func Subscribe[T Payload](b *Bus, fn func(T)) (unsubscribe func()) {
	var zero T
	t := zero.Type()

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[t] = append(b.subs[t], subscriber{
		id: id,
		fn: func(p Payload) { fn(p.(T)) },
	})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(t, id) })
	}
}

// Publish delivers p to every subscriber of its type before returning.
func Publish[T Payload](b *Bus, p T) {
	b.dispatch(p)
}

// Enqueue buffers p for the next Drain.
func (b *Bus) Enqueue(p Payload) {
	b.mu.Lock()
	b.queue = append(b.queue, p)
	b.mu.Unlock()
}

// Drain delivers every buffered payload in arrival order and returns how
// many were delivered. Payloads enqueued by handlers during Drain wait for
// the next call.
func (b *Bus) Drain() int {
	b.mu.Lock()
	pending := b.queue
	b.queue = nil
	b.mu.Unlock()

	for _, p := range pending {
		b.dispatch(p)
	}
	return len(pending)
}

// Published returns how many payloads of type t have been delivered.
func (b *Bus) Published(t EventType) uint64 {
	if t >= numEventTypes {
		return 0
	}
	return b.published[t].Load()
}

// Subscribers returns how many handlers are registered for t.
func (b *Bus) Subscribers(t EventType) int {
	if t >= numEventTypes {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[t])
}

func (b *Bus) dispatch(p Payload) {
	t := p.Type()
	if t >= numEventTypes {
		return
	}

	// Handlers may subscribe or publish; call them outside the lock.
	b.mu.Lock()
	subs := b.subs[t]
	b.mu.Unlock()

	b.published[t].Add(1)
	for _, s := range subs {
		s.fn(p)
	}
}

func (b *Bus) remove(t EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	old := b.subs[t]
	next := make([]subscriber, 0, len(old))
	for _, s := range old {
		if s.id != id {
			next = append(next, s)
		}
	}
	b.subs[t] = next
}
