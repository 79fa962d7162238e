// Package client composes the presentation engine: one Engine owns the
// world store, the interpolator, the camera, the bullet simulator, every
// effect system and the audio dispatcher, and drives them from a single
// frame loop.
//
// Everything except the Store, the bus queue and a few mutex-guarded input
// fields is touched only from the tick goroutine. The network reader talks
// to the engine through the Handler methods, which only enqueue.
package client

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"

	"flappy-client/internal/audio"
	"flappy-client/internal/bullets"
	"flappy-client/internal/camera"
	"flappy-client/internal/config"
	"flappy-client/internal/effects"
	"flappy-client/internal/events"
	"flappy-client/internal/frameloop"
	"flappy-client/internal/interp"
	"flappy-client/internal/metrics"
	"flappy-client/internal/netclient"
	"flappy-client/internal/render"
	"flappy-client/internal/world"
)

var (
	// ErrInitialized is returned by a second Init.
	ErrInitialized = errors.New("client: already initialized")
	// ErrDisposed is returned by Init after Dispose.
	ErrDisposed = errors.New("client: disposed")
)

// Intents receives the local player's control changes, normally the
// network client.
type Intents interface {
	SendInput(in netclient.Input) error
}

// IntentsFunc adapts a function to Intents.
type IntentsFunc func(in netclient.Input) error

func (f IntentsFunc) SendInput(in netclient.Input) error { return f(in) }

// Rand is the randomness source shared by effects and bullet spread.
type Rand interface {
	Float64() float64
}

// Options configures an Engine. Only Config is required.
type Options struct {
	Config config.AppConfig

	Store   *world.Store
	Bus     *events.Bus
	Backend audio.Backend

	// Surface receives the render stage; nil skips rendering.
	Surface render.Surface
	Sprites *render.Sprites

	Scheduler frameloop.Scheduler
	Clock     func() time.Time
	Rand      Rand
	Intents   Intents

	// AudioWorkers and AudioQueue size the playback worker pool.
	AudioWorkers int
	AudioQueue   int

	Logger zerolog.Logger
}

// Engine is the client composition root.
type Engine struct {
	cfg        config.AppConfig
	profile    config.Profile
	quietShots bool
	clock      func() time.Time
	log        zerolog.Logger

	store  *world.Store
	bus    *events.Bus
	interp *interp.Interpolator
	camera *camera.Controller
	sim    *bullets.Simulator

	muzzle     *effects.Muzzle
	feathers   *effects.Feathers
	tracers    *effects.Tracers
	explosions *effects.Explosions
	boost      *effects.Boost
	systems    []namedSystem

	audio   *audio.Dispatcher
	loop    *frameloop.Loop
	surface render.Surface
	sprites *render.Sprites
	intents Intents

	// Guarded by mu: written from other goroutines.
	mu            sync.Mutex
	selfID        string
	override      *camera.Override
	removals      []string
	serverCfg     *netclient.ServerConfig
	snapshotPath  string
	initialized   bool
	disposed      bool
	unsubscribers []func()

	// Tick goroutine only; tickMu lets Dispose wait out an in-flight tick.
	tickMu    sync.Mutex
	game      config.GameConfig
	now       time.Time
	nowMs     float64
	self      string
	fireHeld  bool
	camMode   camera.Mode
	stepAcc   float64
	tracked   map[string]struct{}
	dropped   map[string]int
	frame     uint64
	rendered  uint64
	skipped   uint64
	lastTick  time.Duration
	snapshots uint64

	stats atomic.Pointer[Stats]
}

type namedSystem struct {
	name string
	sys  interface {
		effects.System
		Stats() effects.Stats
	}
}

// New builds every component. Nothing runs until Init.
func New(opts Options) *Engine {
	cfg := opts.Config
	p := cfg.View.Profile
	if opts.Store == nil {
		opts.Store = world.NewStore()
	}
	if opts.Bus == nil {
		opts.Bus = events.NewBus()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	e := &Engine{
		cfg:     cfg,
		profile: p,
		clock:   opts.Clock,
		log:     opts.Logger,
		store:   opts.Store,
		bus:     opts.Bus,
		interp:  interp.New(interp.DefaultDelayMs),
		camera:  camera.New(camera.OptionsFromConfig(cfg.Game, cfg.View)),
		surface: opts.Surface,
		sprites: opts.Sprites,
		intents: opts.Intents,
		game:    cfg.Game,
		tracked: make(map[string]struct{}),
		dropped: make(map[string]int),
	}

	simOpts := bullets.OptionsFromConfig(cfg.Game, p)
	simOpts.Rand = opts.Rand
	simOpts.Bus = opts.Bus
	e.sim = bullets.New(simOpts)
	e.quietShots = simOpts.QuietLocalShots

	e.muzzle = effects.NewMuzzle(p, opts.Rand)
	e.feathers = effects.NewFeathers(p, opts.Rand, opts.Sprites)
	e.tracers = effects.NewTracers(p)
	e.explosions = effects.NewExplosions(p)
	e.boost = effects.NewBoost(p, opts.Rand, cfg.Game.PlayerSize)
	e.systems = []namedSystem{
		{"boost", e.boost},
		{"tracer", e.tracers},
		{"muzzle", e.muzzle},
		{"feather", e.feathers},
		{"explosion", e.explosions},
	}

	e.audio = audio.NewDispatcher(audio.Options{
		Profile: p,
		Backend: opts.Backend,
		Workers: opts.AudioWorkers,
		Queue:   opts.AudioQueue,
		Logger:  opts.Logger.With().Str("component", "audio").Logger(),
		OnResult: func(k audio.Kind, r audio.Result) {
			metrics.RecordAudio(k.String(), r.String())
		},
	})

	e.loop = frameloop.New(e, frameloop.Options{
		FPS:       cfg.View.FPS,
		Scheduler: opts.Scheduler,
		Clock:     opts.Clock,
		Logger:    opts.Logger.With().Str("component", "frameloop").Logger(),
		OnPanic:   func(any) { metrics.RecordPanic() },
	})
	return e
}

// Init subscribes the effect and audio handlers and starts the frame loop.
// Cancelling ctx stops the loop; Dispose releases everything.
func (e *Engine) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.disposed:
		return ErrDisposed
	case e.initialized:
		return ErrInitialized
	}
	e.initialized = true

	if e.surface != nil {
		w, h := e.surface.Size()
		e.camera.SetViewport(w, h)
	}
	e.unsubscribers = []func(){
		events.Subscribe(e.bus, e.onShot),
		events.Subscribe(e.bus, e.onHit),
		events.Subscribe(e.bus, e.onDeath),
		events.Subscribe(e.bus, e.onPickup),
		events.Subscribe(e.bus, e.onFireStart),
		events.Subscribe(e.bus, e.onFireStop),
	}
	e.loop.Start(ctx)
	e.log.Info().
		Str("profile", string(e.profile)).
		Int("fps", e.cfg.View.FPS).
		Bool("render", e.surface != nil).
		Msg("✅ Engine started")
	return nil
}

// Dispose stops the loop, unsubscribes every handler, stops audio and
// empties every pool. It is safe to call more than once.
func (e *Engine) Dispose() {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return
	}
	e.disposed = true
	unsubs := e.unsubscribers
	e.unsubscribers = nil
	e.mu.Unlock()

	e.loop.Stop()
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	e.audio.Close()
	for _, s := range e.systems {
		s.sys.Reset()
	}
	e.sim.Reset()
	e.interp.Reset()
	e.log.Info().Uint64("frames", e.loop.Ticks()).Msg("🛑 Engine disposed")
}

// Running reports whether the frame loop is live.
func (e *Engine) Running() bool { return e.loop.Running() }

// Store is the world store the network client writes into.
func (e *Engine) Store() *world.Store { return e.store }

// Bus is the engine's event bus.
func (e *Engine) Bus() *events.Bus { return e.bus }

// Audio is the proximity audio dispatcher.
func (e *Engine) Audio() *audio.Dispatcher { return e.audio }

// SelfID is the local player id, empty before the server welcomed us.
func (e *Engine) SelfID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selfID
}

// SetFiring records the fire button state. It takes effect on the next tick.
func (e *Engine) SetFiring(held bool) {
	self := e.SelfID()
	if held {
		e.bus.Enqueue(events.FireStart{PlayerID: self})
		return
	}
	e.bus.Enqueue(events.FireStop{PlayerID: self, Reason: "release"})
}

// SetOverride moves the camera to an external target; nil returns control
// to the automatic mode.
func (e *Engine) SetOverride(o *camera.Override) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if o == nil {
		e.override = nil
		return
	}
	cp := *o
	e.override = &cp
}

// Unlock resumes audio output after a user gesture and replays recent
// failed plays.
func (e *Engine) Unlock() {
	e.audio.Unlock(e.clock())
}

// RequestSnapshot asks the render stage to write the next frame as PNG and
// returns the path it will be written to.
func (e *Engine) RequestSnapshot() (string, error) {
	dir := e.cfg.Debug.SnapshotDir
	if _, ok := e.surface.(*render.GGSurface); !ok || dir == "" {
		return "", metrics.ErrSnapshotsDisabled
	}
	path := filepath.Join(dir, "frame-"+ksuid.New().String()+".png")
	e.mu.Lock()
	e.snapshotPath = path
	e.mu.Unlock()
	return path, nil
}

// =============================================================================
// NETWORK HANDLER
// =============================================================================

// HandleWelcome records the local player id and the server's runtime
// options; the options take effect on the next tick.
func (e *Engine) HandleWelcome(selfID string, sc *netclient.ServerConfig) {
	e.mu.Lock()
	e.selfID = selfID
	if sc != nil {
		cp := *sc
		e.serverCfg = &cp
	}
	e.mu.Unlock()
	e.log.Info().Str("player_id", selfID).Bool("config", sc != nil).Msg("🎮 Welcome received")
}

// applyServerConfig overrides the configured game options with the
// server's. Tick goroutine only.
func (e *Engine) applyServerConfig(sc *netclient.ServerConfig) {
	e.game = MergeServerConfig(e.game, sc)
	e.sim.SetRuntime(bullets.Runtime{
		Speed:      e.game.BulletSpeed,
		Range:      e.game.BulletRange,
		CooldownMs: float64(e.game.ShootCooldownMs),
		BirdSize:   e.game.BirdSize(),
	})
	e.camera.SetWorld(e.game.WorldWidth, e.game.WorldHeight, e.game.PlayerSize)
	e.boost.SetPlayerSize(e.game.PlayerSize)
	e.log.Info().
		Float64("world_width", e.game.WorldWidth).
		Float64("world_height", e.game.WorldHeight).
		Float64("bullet_speed", e.game.BulletSpeed).
		Float64("bullet_range", e.game.BulletRange).
		Int("shoot_cooldown_ms", e.game.ShootCooldownMs).
		Msg("⚙️ Server config applied")
}

// MergeServerConfig returns g with every positive, finite server field
// applied. Missing fields keep the configured value.
func MergeServerConfig(g config.GameConfig, sc *netclient.ServerConfig) config.GameConfig {
	if sc == nil {
		return g
	}
	set := func(dst *float64, v float64) {
		if v > 0 && world.Finite(v) {
			*dst = v
		}
	}
	set(&g.WorldWidth, sc.WorldWidth)
	set(&g.WorldHeight, sc.WorldHeight)
	set(&g.PlayerSize, sc.PlayerSize)
	set(&g.BulletSpeed, sc.BulletSpeed)
	set(&g.BulletRange, sc.BulletRange)
	set(&g.BoostMax, sc.BoostMax)
	if sc.ShootCooldown > 0 && world.Finite(sc.ShootCooldown) {
		g.ShootCooldownMs = int(math.Round(sc.ShootCooldown))
	}
	return g
}

// HandleEvent queues a server notification for the next tick.
func (e *Engine) HandleEvent(p events.Payload) {
	e.bus.Enqueue(p)
}

// HandleBulletsRemove queues explicit server bullet removals.
func (e *Engine) HandleBulletsRemove(ids []string) {
	e.mu.Lock()
	e.removals = append(e.removals, ids...)
	e.mu.Unlock()
}

// HandleDisconnect releases the fire button; the server forgets it too.
func (e *Engine) HandleDisconnect(err error) {
	e.bus.Enqueue(events.FireStop{PlayerID: e.SelfID(), Reason: "disconnect"})
	e.log.Warn().Err(err).Msg("⚠️ Disconnected from game server")
}
