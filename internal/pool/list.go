package pool

// List is a capped active list backed by a Pool. Removal is swap-with-last,
// so iteration order is not insertion order after the first removal.
type List[T any] struct {
	pool    *Pool[T]
	items   []Handle
	limit   int
	dropped int
}

// NewList creates a list that refuses spawns once limit entries are active.
func NewList[T any](limit int) *List[T] {
	return &List[T]{
		pool:  New[T](limit),
		items: make([]Handle, 0, limit),
		limit: limit,
	}
}

// Spawn acquires a slot and appends it, or returns false at the cap.
func (l *List[T]) Spawn() (*T, bool) {
	if len(l.items) >= l.limit {
		l.dropped++
		return nil, false
	}
	h, v := l.pool.Acquire()
	l.items = append(l.items, h)
	return v, true
}

// Sweep visits every entry; entries for which keep returns false are
// swap-removed and released.
func (l *List[T]) Sweep(keep func(*T) bool) {
	for i := len(l.items) - 1; i >= 0; i-- {
		h := l.items[i]
		if keep(l.pool.at(h)) {
			continue
		}
		last := len(l.items) - 1
		l.items[i] = l.items[last]
		l.items = l.items[:last]
		l.pool.Release(h)
	}
}

// Range visits every active entry.
func (l *List[T]) Range(fn func(*T)) {
	for _, h := range l.items {
		fn(l.pool.at(h))
	}
}

// Reset releases every entry.
func (l *List[T]) Reset() {
	for _, h := range l.items {
		l.pool.Release(h)
	}
	l.items = l.items[:0]
}

// Len is the number of active entries.
func (l *List[T]) Len() int { return len(l.items) }

// Limit is the current cap.
func (l *List[T]) Limit() int { return l.limit }

// Dropped counts spawns refused at the cap.
func (l *List[T]) Dropped() int { return l.dropped }

// Pool exposes the backing pool for accounting.
func (l *List[T]) Pool() *Pool[T] { return l.pool }
