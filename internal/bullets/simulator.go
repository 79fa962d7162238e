// Package bullets merges locally fired and server-replicated projectiles
// into one renderable set.
//
// Local bullets are simulated from the moment of firing and collide with
// obstacles on the client. Remote bullets exist only while the server
// lists them; between snapshots their position is integrated locally.
// Every bullet expires once it has traveled its range from its origin.
package bullets

import (
	"math"
	"sort"

	"github.com/segmentio/ksuid"

	"flappy-client/internal/config"
	"flappy-client/internal/events"
	"flappy-client/internal/interp"
	"flappy-client/internal/pool"
	"flappy-client/internal/render"
	"flappy-client/internal/world"
)

const (
	// Spread is the full width of the random angular spread in radians.
	Spread = 0.08
	// Radius is the collision radius of a bullet.
	Radius = 4.5
)

// Bullet is one simulated projectile. Velocity is per 60Hz tick.
type Bullet struct {
	ID        string
	OwnerID   string
	X, Y      float64
	VX, VY    float64
	StartX    float64
	StartY    float64
	CreatedAt float64 // ms
	Local     bool

	seq uint64
}

// Traveled is the straight-line distance from the origin.
func (b *Bullet) Traveled() float64 {
	return world.Distance(b.StartX, b.StartY, b.X, b.Y)
}

// Rand is the spread randomness source; *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// Options configures a Simulator.
type Options struct {
	Speed      float64 // per 60Hz tick
	Range      float64
	CooldownMs float64
	BirdSize   float64 // rendered bird size, for muzzle placement
	Capacity   int

	// QuietLocalShots keeps local shots off the event bus; callers give
	// local feedback directly instead.
	QuietLocalShots bool

	Rand  Rand
	Bus   *events.Bus
	NewID func() string
}

// CapacityFor returns the bullet cap for a profile.
func CapacityFor(p config.Profile) int {
	switch p {
	case config.ProfileMobileLandscape:
		return 40
	case config.ProfileMobile:
		return 64
	default:
		return 120
	}
}

// OptionsFromConfig derives simulator options from the app config.
func OptionsFromConfig(g config.GameConfig, p config.Profile) Options {
	return Options{
		Speed:           g.BulletSpeed,
		Range:           g.BulletRange,
		CooldownMs:      float64(g.ShootCooldownMs),
		BirdSize:        g.BirdSize(),
		Capacity:        CapacityFor(p),
		QuietLocalShots: p == config.ProfileMobileLandscape,
	}
}

// Stats are running counters for metrics.
type Stats struct {
	Active     int    `json:"active"`
	Fired      uint64 `json:"fired"`
	Collided   uint64 `json:"collided"`
	Expired    uint64 `json:"expired"`
	Evicted    uint64 `json:"evicted"`
	Reconciled uint64 `json:"reconciled"`
}

// Simulator owns the merged bullet set. Owned by the frame loop.
type Simulator struct {
	opts Options

	slab     *pool.Pool[Bullet]
	byID     map[string]pool.Handle
	retired  map[string]struct{} // remote ids dropped locally, still listed by the server
	order    []*Bullet
	seq      uint64
	lastFire float64
	fired    bool

	stats Stats
}

// New creates a simulator.
func New(opts Options) *Simulator {
	if opts.Capacity <= 0 {
		opts.Capacity = 120
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return "local_" + ksuid.New().String() }
	}
	return &Simulator{
		opts: opts,
		slab: pool.New[Bullet](opts.Capacity),
		byID: make(map[string]pool.Handle, opts.Capacity),

		retired: make(map[string]struct{}),
	}
}

// TryFire fires from the shooter's interpolated pose if the cooldown has
// elapsed. The bullet leaves the bird's mouth with a small random spread.
func (s *Simulator) TryFire(nowMs float64, ownerID string, pose interp.Pose) (Bullet, bool) {
	if s.fired && nowMs-s.lastFire < s.opts.CooldownMs {
		return Bullet{}, false
	}
	if !world.Finite(pose.X, pose.Y, pose.Angle) {
		return Bullet{}, false
	}
	s.fired = true
	s.lastFire = nowMs

	spread := 0.0
	if s.opts.Rand != nil {
		spread = (s.opts.Rand.Float64() - 0.5) * Spread
	}
	angle := pose.Angle + spread
	mouth := s.opts.BirdSize * 0.48
	mx := pose.X + math.Cos(pose.Angle)*mouth
	my := pose.Y + math.Sin(pose.Angle)*mouth + s.opts.BirdSize*0.21

	b := s.insert(Bullet{
		ID:        s.opts.NewID(),
		OwnerID:   ownerID,
		X:         mx,
		Y:         my,
		VX:        math.Cos(angle) * s.opts.Speed,
		VY:        math.Sin(angle) * s.opts.Speed,
		StartX:    mx,
		StartY:    my,
		CreatedAt: nowMs,
		Local:     true,
	})
	s.stats.Fired++

	if s.opts.Bus != nil && !s.opts.QuietLocalShots {
		events.Publish(s.opts.Bus, events.Shot{
			X:        mx,
			Y:        my,
			Angle:    pose.Angle,
			OwnerID:  ownerID,
			BulletID: b.ID,
			Local:    true,
		})
	}
	return *b, true
}

// AddRemote registers a server bullet if it is not already tracked.
func (s *Simulator) AddRemote(r world.Bullet) bool {
	if _, ok := s.byID[r.ID]; ok || r.ID == "" {
		return false
	}
	if !world.Finite(r.X, r.Y, r.VX, r.VY) {
		return false
	}
	s.insert(Bullet{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		X:         r.X,
		Y:         r.Y,
		VX:        r.VX,
		VY:        r.VY,
		StartX:    r.X,
		StartY:    r.Y,
		CreatedAt: r.CreatedAt,
	})
	return true
}

// Reconcile adds newly listed remote bullets and drops remote bullets the
// server no longer lists. Bullets owned by selfID are simulated locally.
// A remote bullet that already expired or was evicted here is not re-added
// while the server still lists it.
func (s *Simulator) Reconcile(selfID string, remote map[string]world.Bullet) {
	for id := range s.retired {
		if _, ok := remote[id]; !ok {
			delete(s.retired, id)
		}
	}
	for id, r := range remote {
		if r.OwnerID == selfID && selfID != "" {
			continue
		}
		if _, ok := s.retired[id]; ok {
			continue
		}
		if r.ID == "" {
			r.ID = id
		}
		if s.AddRemote(r) {
			s.stats.Reconciled++
		}
	}

	for id, h := range s.byID {
		if s.slab.Get(h).Local {
			continue
		}
		if _, ok := remote[id]; !ok {
			s.release(id, h)
		}
	}
}

// Remove drops bullets by id, local or remote. Removed remote ids stay
// retired so a snapshot that still lists them does not bring them back.
func (s *Simulator) Remove(ids ...string) int {
	n := 0
	for _, id := range ids {
		h, ok := s.byID[id]
		if !ok {
			s.retired[id] = struct{}{}
			continue
		}
		s.retire(id, h)
		n++
	}
	return n
}

// Step advances every bullet one 60Hz tick. Local bullets stop at the
// first obstacle they touch; every bullet stops at its range.
func (s *Simulator) Step(obstacles []world.Obstacle) {
	for id, h := range s.byID {
		b := s.slab.Get(h)
		b.X += b.VX
		b.Y += b.VY

		if b.Local && hitsAny(b.X, b.Y, obstacles) {
			s.stats.Collided++
			s.release(id, h)
			continue
		}
		if b.Traveled() >= s.opts.Range {
			s.stats.Expired++
			s.retire(id, h)
		}
	}
}

// Runtime holds the server-tunable options. Zero fields keep the current value.
type Runtime struct {
	Speed      float64
	Range      float64
	CooldownMs float64
	BirdSize   float64
}

// SetRuntime applies server-provided tuning. Bullets in flight keep their
// velocity; a new range applies from the next Step.
func (s *Simulator) SetRuntime(r Runtime) {
	if r.Speed > 0 && world.Finite(r.Speed) {
		s.opts.Speed = r.Speed
	}
	if r.Range > 0 && world.Finite(r.Range) {
		s.opts.Range = r.Range
	}
	if r.CooldownMs > 0 && world.Finite(r.CooldownMs) {
		s.opts.CooldownMs = r.CooldownMs
	}
	if r.BirdSize > 0 && world.Finite(r.BirdSize) {
		s.opts.BirdSize = r.BirdSize
	}
}

// Get returns a copy of the bullet with id.
func (s *Simulator) Get(id string) (Bullet, bool) {
	h, ok := s.byID[id]
	if !ok {
		return Bullet{}, false
	}
	return *s.slab.Get(h), true
}

// Range visits every bullet, oldest first.
func (s *Simulator) Range(fn func(*Bullet)) {
	for _, b := range s.ordered() {
		fn(b)
	}
}

// Render draws a short streak per bullet, oldest first.
func (s *Simulator) Render(surface render.Surface) {
	for _, b := range s.ordered() {
		render.DrawBulletLine(surface, b.X, b.Y, b.VX, b.VY)
	}
}

// ordered returns the live bullets in firing order.
func (s *Simulator) ordered() []*Bullet {
	s.order = s.order[:0]
	for _, h := range s.byID {
		s.order = append(s.order, s.slab.Get(h))
	}
	sort.Slice(s.order, func(i, j int) bool { return s.order[i].seq < s.order[j].seq })
	return s.order
}

// Len is the number of tracked bullets.
func (s *Simulator) Len() int { return len(s.byID) }

// Capacity is the active cap.
func (s *Simulator) Capacity() int { return s.opts.Capacity }

// Allocated is the number of bullet slots ever created.
func (s *Simulator) Allocated() int { return s.slab.Allocated() }

// Stats returns running counters.
func (s *Simulator) Stats() Stats {
	st := s.stats
	st.Active = len(s.byID)
	return st
}

// Reset drops every bullet and clears the cooldown.
func (s *Simulator) Reset() {
	for id, h := range s.byID {
		s.release(id, h)
	}
	clear(s.retired)
	s.fired = false
}

func (s *Simulator) insert(b Bullet) *Bullet {
	if len(s.byID) >= s.opts.Capacity {
		s.evictOldest()
	}
	s.seq++
	b.seq = s.seq
	h, slot := s.slab.Acquire()
	*slot = b
	s.byID[b.ID] = h
	return slot
}

func (s *Simulator) evictOldest() {
	oldestID, oldestH := "", pool.Invalid
	oldest := uint64(math.MaxUint64)
	for id, h := range s.byID {
		if seq := s.slab.Get(h).seq; seq < oldest {
			oldest, oldestID, oldestH = seq, id, h
		}
	}
	if oldestH != pool.Invalid {
		s.stats.Evicted++
		s.retire(oldestID, oldestH)
	}
}

// retire releases a bullet and, for remote ones, remembers the id until
// the server stops listing it.
func (s *Simulator) retire(id string, h pool.Handle) {
	if !s.slab.Get(h).Local {
		s.retired[id] = struct{}{}
	}
	s.release(id, h)
}

func (s *Simulator) release(id string, h pool.Handle) {
	delete(s.byID, id)
	s.slab.Release(h)
}

func hitsAny(x, y float64, obstacles []world.Obstacle) bool {
	for _, o := range obstacles {
		if world.CircleRect(x, y, Radius, o) {
			return true
		}
	}
	return false
}
