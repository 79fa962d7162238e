// Package frameloop drives the engine at a fixed cadence.
//
// A Loop is identified by a token that changes on every Start and Stop.
// Each tick checks its token before running and again before scheduling
// the next tick, so a stopped loop never reschedules and a restart never
// leaves two loops running.
package frameloop

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	// MaxFrame caps Dt so a stall does not turn into one huge step.
	MaxFrame = 33 * time.Millisecond
	// DefaultFPS is used when Options.FPS is not set.
	DefaultFPS = 60
)

// TickContext is passed to every stage of one tick.
type TickContext struct {
	Now   time.Time
	Dt    time.Duration
	Frame uint64
	Token uint64
}

// DtSeconds is Dt in seconds.
func (tc *TickContext) DtSeconds() float64 { return tc.Dt.Seconds() }

// NowMs is Now in milliseconds since the Unix epoch.
func (tc *TickContext) NowMs() float64 {
	return float64(tc.Now.UnixNano()) / float64(time.Millisecond)
}

// Ticker runs one tick.
type Ticker interface {
	Tick(tc *TickContext)
}

// TickerFunc adapts a function to Ticker.
type TickerFunc func(tc *TickContext)

func (f TickerFunc) Tick(tc *TickContext) { f(tc) }

// Options configures a Loop.
type Options struct {
	FPS       int
	Scheduler Scheduler
	Clock     func() time.Time
	Logger    zerolog.Logger

	// OnPanic observes a recovered tick panic.
	OnPanic func(v any)
}

// Loop runs a Ticker until stopped.
type Loop struct {
	mu       sync.Mutex
	ticker   Ticker
	opts     Options
	interval time.Duration
	token    uint64
	running  bool
	last     time.Time
	frame    uint64
	release  func() bool

	ticks  atomic.Uint64
	panics atomic.Uint64

	log zerolog.Logger
}

// New creates a stopped loop.
func New(t Ticker, opts Options) *Loop {
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	if opts.Scheduler == nil {
		opts.Scheduler = TimerScheduler{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Loop{
		ticker:   t,
		opts:     opts,
		interval: time.Second / time.Duration(opts.FPS),
		log:      opts.Logger,
	}
}

// Start begins a new loop generation and returns its token. A running
// loop is replaced. Cancelling ctx stops this generation.
func (l *Loop) Start(ctx context.Context) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.invalidateLocked()
	l.running = true
	l.last = l.opts.Clock()
	l.frame = 0
	token := l.token

	if ctx != nil && ctx.Done() != nil {
		l.release = context.AfterFunc(ctx, func() { l.stopToken(token) })
	}
	l.opts.Scheduler.After(0, func() { l.run(token) })
	return token
}

// Stop invalidates the running generation. An in-flight tick finishes but
// does not reschedule.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.invalidateLocked()
}

// Running reports whether a generation is active.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Token is the current generation.
func (l *Loop) Token() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.token
}

// Ticks is the number of ticks run.
func (l *Loop) Ticks() uint64 { return l.ticks.Load() }

// Panics is the number of recovered tick panics.
func (l *Loop) Panics() uint64 { return l.panics.Load() }

func (l *Loop) invalidateLocked() {
	l.token++
	l.running = false
	if l.release != nil {
		l.release()
		l.release = nil
	}
}

func (l *Loop) stopToken(token uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.token == token {
		l.invalidateLocked()
	}
}

func (l *Loop) run(token uint64) {
	l.mu.Lock()
	if token != l.token || !l.running {
		l.mu.Unlock()
		return
	}
	now := l.opts.Clock()
	dt := now.Sub(l.last)
	if dt < 0 {
		dt = 0
	}
	if dt > MaxFrame {
		dt = MaxFrame
	}
	l.last = now
	l.frame++
	tc := &TickContext{Now: now, Dt: dt, Frame: l.frame, Token: token}
	l.mu.Unlock()

	l.safeTick(tc)
	l.ticks.Add(1)

	l.mu.Lock()
	defer l.mu.Unlock()
	if token != l.token || !l.running {
		return
	}
	wait := l.interval - l.opts.Clock().Sub(now)
	if wait < 0 {
		wait = 0
	}
	l.opts.Scheduler.After(wait, func() { l.run(token) })
}

func (l *Loop) safeTick(tc *TickContext) {
	defer func() {
		if r := recover(); r != nil {
			l.panics.Add(1)
			l.log.Error().
				Str("panic", fmt.Sprint(r)).
				Uint64("frame", tc.Frame).
				Msg("❌ tick panicked")
			if l.opts.OnPanic != nil {
				l.opts.OnPanic(r)
			}
		}
	}()
	l.ticker.Tick(tc)
}
