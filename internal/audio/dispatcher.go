package audio

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"flappy-client/internal/config"
	"flappy-client/internal/world"
)

const (
	// FireBusGain scales every sustained-fire voice, local and remote.
	FireBusGain = 0.2
	// LandscapeShotVolume is the flat shot volume on mobile landscape.
	LandscapeShotVolume = 0.22
	// MaxPending bounds the failed plays kept for retry.
	MaxPending = 16
	// RetryMaxAge drops failed plays too old to be worth replaying.
	RetryMaxAge = 1500 * time.Millisecond
)

// Trigger is one positional sound request.
type Trigger struct {
	Kind     Kind
	X, Y     float64
	SourceID string // shooter for shots, attacker for hits
	PlayerID string // victim for deaths, collector for pickups
	Tick     int64  // death tick; zero means unknown
}

// Options configures a Dispatcher.
type Options struct {
	Profile config.Profile
	Backend Backend
	Workers int
	Queue   int
	Logger  zerolog.Logger

	// OnResult observes every trigger outcome. It runs under the
	// dispatcher lock and must not call back into the dispatcher.
	OnResult func(Kind, Result)
}

// Stats are dispatcher counters.
type Stats struct {
	Played      uint64 `json:"played"`
	OutOfRange  uint64 `json:"out_of_range"`
	RateLimited uint64 `json:"rate_limited"`
	Duplicate   uint64 `json:"duplicate"`
	Suppressed  uint64 `json:"suppressed"`
	Failed      uint64 `json:"failed"`
	Retried     uint64 `json:"retried"`
	Pending     int    `json:"pending"`
	RemoteLoops int    `json:"remote_loops"`
	Firing      bool   `json:"firing"`
	Unlocked    bool   `json:"unlocked"`
}

type listener struct {
	selfID string
	x, y   float64
	ok     bool
}

type pendingPlay struct {
	clip   Clip
	volume float64
	at     time.Time
}

// Dispatcher decides which gameplay sounds are heard and hands them to
// the backend. All methods are safe for concurrent use; playback itself
// runs on worker goroutines.
type Dispatcher struct {
	mu        sync.Mutex
	opts      Options
	backend   Backend
	runner    *runner
	limiter   *Limiter
	deaths    *Dedup
	listener  listener
	unlocked  bool
	pending   []pendingPlay
	fire      fireLoop
	remote    map[string]*remoteLoop
	remoteGen uint64
	lastSync  time.Time
	stats     Stats
	closed    bool

	log zerolog.Logger
}

// NewDispatcher creates a dispatcher. A nil Backend plays nothing.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.Backend == nil {
		opts.Backend = NewNopBackend()
	}
	return &Dispatcher{
		opts:    opts,
		backend: opts.Backend,
		runner:  newRunner(opts.Workers, opts.Queue),
		limiter: NewLimiter(opts.Profile),
		deaths:  NewDedup(DedupTTL),
		remote:  make(map[string]*remoteLoop),
		log:     opts.Logger,
	}
}

// SetListener places the listener. ok=false means there is no local
// player; shots and hits are then not heard, deaths and pickups play at
// full proximity.
func (d *Dispatcher) SetListener(selfID string, x, y float64, ok bool) {
	d.mu.Lock()
	d.listener = listener{selfID: selfID, x: x, y: y, ok: ok && world.Finite(x, y)}
	d.mu.Unlock()
}

// Trigger runs one request through the hearing, dedup and rate gates and
// starts playback when it passes.
func (d *Dispatcher) Trigger(now time.Time, t Trigger) Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	r := d.triggerLocked(now, t)
	d.count(r)
	if d.opts.OnResult != nil {
		d.opts.OnResult(t.Kind, r)
	}
	return r
}

func (d *Dispatcher) triggerLocked(now time.Time, t Trigger) Result {
	if d.closed || !world.Finite(t.X, t.Y) {
		return ResultInvalid
	}

	if t.Kind == KindDeath {
		tick := t.Tick
		if tick == 0 {
			tick = now.UnixMilli()
		}
		if d.deaths.Seen(DeathKey(t.PlayerID, t.X, t.Y, tick), now) {
			return ResultDuplicate
		}
		if t.PlayerID != "" {
			if t.PlayerID == d.listener.selfID {
				d.stopFireLocked()
			}
			if loop, ok := d.remote[t.PlayerID]; ok {
				d.stopRemoteLocked(t.PlayerID, loop)
			}
			d.limiter.Forget(t.PlayerID)
		}
	}

	lx, ly := t.X, t.Y
	if d.listener.ok {
		lx, ly = d.listener.x, d.listener.y
	} else if t.Kind == KindShot || t.Kind == KindHit {
		return ResultNoListener
	}

	radius := t.Kind.Radius()
	dist := world.Distance(lx, ly, t.X, t.Y)
	if dist > radius {
		return ResultOutOfRange
	}

	if t.Kind == KindShot {
		self := t.SourceID != "" && t.SourceID == d.listener.selfID
		if self && d.fire.active {
			return ResultLooping
		}
		if _, ok := d.remote[t.SourceID]; ok && !self {
			return ResultLooping
		}
	}

	if !d.limiter.GlobalAvailable(now) {
		return ResultRateLimited
	}
	switch t.Kind {
	case KindShot:
		key := t.SourceID
		if key == "" {
			key = "unknown"
		}
		if !d.limiter.AllowShooter(key, now) {
			return ResultRateLimited
		}
	case KindPickup:
		if !d.limiter.AllowPickup(now) {
			return ResultRateLimited
		}
	}

	volume := t.Kind.Volume(Falloff(dist, radius))
	if t.Kind == KindShot && d.opts.Profile == config.ProfileMobileLandscape {
		volume = LandscapeShotVolume
	}

	task := d.play(pendingPlay{clip: t.Kind.Clip(), volume: volume, at: now})
	if errors.Is(task.Err(), ErrQueueFull) {
		return ResultFailed
	}
	d.limiter.TakeGlobal(now)
	return ResultPlayed
}

// play submits a one-shot. A failed play is kept for the next Unlock.
func (d *Dispatcher) play(p pendingPlay) *Task {
	return d.runner.submit(0, func(ctx context.Context) error {
		return d.backend.Play(ctx, p.clip, Window{}, p.volume)
	}, func(err error) {
		if err == nil || errors.Is(err, ErrQueueFull) || errors.Is(err, context.Canceled) {
			return
		}
		d.mu.Lock()
		defer d.mu.Unlock()
		d.stats.Failed++
		if errors.Is(err, ErrUnknownClip) {
			return
		}
		d.pending = append(d.pending, p)
		if len(d.pending) > MaxPending {
			d.pending = d.pending[len(d.pending)-MaxPending:]
		}
	})
}

// Unlock resumes the backend and replays recent failed plays. It is meant
// for user gestures; callers do not wait on the returned task.
func (d *Dispatcher) Unlock(now time.Time) *Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}

	return d.runner.submit(0, func(ctx context.Context) error {
		return d.backend.Resume(ctx)
	}, func(err error) {
		d.mu.Lock()
		defer d.mu.Unlock()
		if err != nil {
			d.log.Warn().Err(err).Msg("⚠️ audio unlock failed")
			return
		}
		d.unlocked = true
		retry := d.pending
		d.pending = nil
		for _, p := range retry {
			if now.Sub(p.at) > RetryMaxAge {
				continue
			}
			d.stats.Retried++
			d.play(p)
		}
	})
}

// Flush waits for queued playback to finish. It must not be called while
// a completion could be waiting on the caller.
func (d *Dispatcher) Flush() {
	d.runner.flush()
}

// Stats returns counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := d.stats
	st.Pending = len(d.pending)
	st.RemoteLoops = len(d.remote)
	st.Firing = d.fire.active
	st.Unlocked = d.unlocked
	return st
}

// Reset stops every loop and clears limiter and dedup state.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopFireLocked()
	for id, loop := range d.remote {
		d.stopRemoteLocked(id, loop)
	}
	d.limiter.Reset()
	d.deaths.Reset()
	d.pending = nil
	d.lastSync = time.Time{}
}

// Close stops every loop and the workers.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.stopFireLocked()
	for id, loop := range d.remote {
		d.stopRemoteLocked(id, loop)
	}
	d.mu.Unlock()

	d.runner.close()
}

func (d *Dispatcher) count(r Result) {
	switch r {
	case ResultPlayed:
		d.stats.Played++
	case ResultOutOfRange, ResultNoListener:
		d.stats.OutOfRange++
	case ResultRateLimited:
		d.stats.RateLimited++
	case ResultDuplicate:
		d.stats.Duplicate++
	case ResultLooping, ResultInvalid:
		d.stats.Suppressed++
	case ResultFailed:
		d.stats.Failed++
	}
}
