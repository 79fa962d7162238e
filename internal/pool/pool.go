// Package pool provides a slab allocator with a free-index stack.
//
// Slots are stored in fixed-size chunks so a *T handed out by Acquire
// stays valid while the slab grows. A slot is either active or on the
// free stack, never both: Active()+Free() == Allocated() at all times.
package pool

// chunkSize is the number of slots allocated per slab chunk.
const chunkSize = 64

// Handle identifies a slot in a Pool. The zero Handle is valid (slot 0);
// use Invalid for "no slot".
type Handle int32

// Invalid is never returned by Acquire.
const Invalid Handle = -1

// Pool recycles values of T by slot index. It is not safe for concurrent
// use; the frame loop owns every pool.
type Pool[T any] struct {
	chunks [][]T
	used   []bool
	free   []Handle
	active int
}

// New creates a pool with room for capacity slots before the first growth.
func New[T any](capacity int) *Pool[T] {
	p := &Pool[T]{}
	if capacity > 0 {
		p.used = make([]bool, 0, capacity)
		p.free = make([]Handle, 0, capacity)
	}
	return p
}

// Acquire returns a zeroed slot, reusing a freed one when available.
func (p *Pool[T]) Acquire() (Handle, *T) {
	var h Handle
	if n := len(p.free); n > 0 {
		h = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		h = p.grow()
	}

	slot := p.at(h)
	var zero T
	*slot = zero
	p.used[h] = true
	p.active++
	return h, slot
}

// Release returns a slot to the free stack. Releasing a handle that is
// out of range or already free is a no-op and returns false.
func (p *Pool[T]) Release(h Handle) bool {
	if h < 0 || int(h) >= len(p.used) || !p.used[h] {
		return false
	}
	p.used[h] = false
	p.free = append(p.free, h)
	p.active--
	return true
}

// Get returns the slot for h, or nil when h is not active.
func (p *Pool[T]) Get(h Handle) *T {
	if h < 0 || int(h) >= len(p.used) || !p.used[h] {
		return nil
	}
	return p.at(h)
}

// Reset releases every active slot without discarding the slab.
func (p *Pool[T]) Reset() {
	for i, inUse := range p.used {
		if inUse {
			p.Release(Handle(i))
		}
	}
}

// Allocated is the total number of slots ever created.
func (p *Pool[T]) Allocated() int { return len(p.used) }

// Active is the number of slots currently handed out.
func (p *Pool[T]) Active() int { return p.active }

// Free is the number of slots waiting on the free stack.
func (p *Pool[T]) Free() int { return len(p.free) }

func (p *Pool[T]) grow() Handle {
	h := Handle(len(p.used))
	c := int(h) / chunkSize
	if c == len(p.chunks) {
		p.chunks = append(p.chunks, make([]T, chunkSize))
	}
	p.used = append(p.used, false)
	return h
}

func (p *Pool[T]) at(h Handle) *T {
	return &p.chunks[int(h)/chunkSize][int(h)%chunkSize]
}
