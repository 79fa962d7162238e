package audio

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrLocked is returned by backends whose output has not been resumed.
	ErrLocked = errors.New("audio: output locked")
	// ErrUnknownClip is returned for a clip that was never loaded.
	ErrUnknownClip = errors.New("audio: unknown clip")
)

// Voice identifies a running loop.
type Voice uint64

// Backend produces sound. Resume, Play and StartLoop may block and are
// only called from worker goroutines. SetVolume and StopLoop must return
// promptly; the dispatcher calls them under its lock.
type Backend interface {
	Resume(ctx context.Context) error
	Play(ctx context.Context, clip Clip, w Window, volume float64) error
	StartLoop(ctx context.Context, clip Clip, w Window, volume float64) (Voice, error)
	SetVolume(v Voice, volume float64)
	StopLoop(v Voice, fade time.Duration)
}

// NopBackend accepts every request and plays nothing. It is used when
// audio is disabled.
type NopBackend struct {
	next  atomic.Uint64
	plays atomic.Uint64

	mu    sync.Mutex
	loops map[Voice]float64
}

// NewNopBackend creates a silent backend.
func NewNopBackend() *NopBackend {
	return &NopBackend{loops: make(map[Voice]float64)}
}

func (b *NopBackend) Resume(context.Context) error { return nil }

func (b *NopBackend) Play(context.Context, Clip, Window, float64) error {
	b.plays.Add(1)
	return nil
}

func (b *NopBackend) StartLoop(_ context.Context, _ Clip, _ Window, volume float64) (Voice, error) {
	v := Voice(b.next.Add(1))
	b.mu.Lock()
	b.loops[v] = volume
	b.mu.Unlock()
	return v, nil
}

func (b *NopBackend) SetVolume(v Voice, volume float64) {
	b.mu.Lock()
	if _, ok := b.loops[v]; ok {
		b.loops[v] = volume
	}
	b.mu.Unlock()
}

func (b *NopBackend) StopLoop(v Voice, _ time.Duration) {
	b.mu.Lock()
	delete(b.loops, v)
	b.mu.Unlock()
}

// Plays is the number of one-shots accepted.
func (b *NopBackend) Plays() uint64 { return b.plays.Load() }

// Loops is the number of running loops.
func (b *NopBackend) Loops() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.loops)
}
