package world

import (
	"sync/atomic"
)

// Source provides the latest authoritative frame.
type Source interface {
	Latest() *Frame
}

// Store publishes frames from the network goroutine to the frame loop.
// Writers replace whole frames; readers never see a partially applied update.
type Store struct {
	latest atomic.Pointer[Frame]
	seq    atomic.Uint64
}

// NewStore creates a store holding an empty frame.
func NewStore() *Store {
	s := &Store{}
	s.latest.Store(EmptyFrame())
	return s
}

// Latest returns the most recent frame (lock-free).
func (s *Store) Latest() *Frame {
	return s.latest.Load()
}

// Publish stores f as the latest frame and stamps its sequence number.
func (s *Store) Publish(f *Frame) {
	f.Seq = s.seq.Add(1)
	s.latest.Store(f)
}

// Update copies the latest frame, applies fn to the copy and publishes it.
// Only one goroutine (the network reader) may call Update.
func (s *Store) Update(fn func(*Frame)) {
	next := s.Latest().Clone()
	fn(next)
	s.Publish(next)
}

// Seq is the sequence number of the latest frame.
func (s *Store) Seq() uint64 {
	return s.seq.Load()
}

// Clone returns a deep copy of the tables.
func (f *Frame) Clone() *Frame {
	c := &Frame{
		Seq:        f.Seq,
		ServerTime: f.ServerTime,
		ReceivedAt: f.ReceivedAt,
		Entities:   make(map[string]Entity, len(f.Entities)),
		Bullets:    make(map[string]Bullet, len(f.Bullets)),
		Orbs:       make(map[string]Orb, len(f.Orbs)),
		Obstacles:  append([]Obstacle(nil), f.Obstacles...),
	}
	for k, v := range f.Entities {
		c.Entities[k] = v
	}
	for k, v := range f.Bullets {
		c.Bullets[k] = v
	}
	for k, v := range f.Orbs {
		c.Orbs[k] = v
	}
	return c
}
