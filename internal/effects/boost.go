package effects

import (
	"math"
	"sort"

	"flappy-client/internal/config"
	"flappy-client/internal/pool"
	"flappy-client/internal/render"
	"flappy-client/internal/world"
)

const (
	// TrailMinStep is the distance an entity must move before a new trail node is recorded.
	TrailMinStep = 16
	// TrailDecay is the life lost by each trail node per 60Hz tick.
	TrailDecay = 0.055

	boostParticleDecay  = 0.05
	boostParticleShrink = 0.95
	particlesPerTick    = 2
)

var (
	boostParticleColor = render.ParseHex("#00c8ff")
	boostTrailColor    = render.ParseHex("#43c6ff")
)

type boostParticle struct {
	x, y   float64
	vx, vy float64
	life   float64
	size   float64
}

type trailNode struct {
	x, y float64
	life float64
}

type trail struct {
	nodes    []pool.Handle
	boosting bool
}

// Boost draws the exhaust particles behind the local bird and the fading
// poly-line trail behind every boosting bird.
type Boost struct {
	particles *pool.List[boostParticle]
	nodes     *pool.Pool[trailNode]
	trails    map[string]*trail
	order     []string
	trailCap  int
	touch     bool
	rng       Rand
	selfID    string

	playerSize float64
}

// NewBoost creates the boost system for a profile.
func NewBoost(p config.Profile, rng Rand, playerSize float64) *Boost {
	limits := LimitsFor(p)
	return &Boost{
		particles:  pool.NewList[boostParticle](limits.BoostParticles),
		nodes:      pool.New[trailNode](limits.TrailNodes * 4),
		trails:     make(map[string]*trail),
		trailCap:   limits.TrailNodes,
		touch:      p.IsTouch(),
		rng:        rng,
		playerSize: playerSize,
	}
}

// SetSelf marks which trail belongs to the local player.
func (b *Boost) SetSelf(id string) { b.selfID = id }

// Track records the entity position for this tick. A node is appended only
// after the entity has moved TrailMinStep since the last node; at the
// per-entity cap the oldest node is recycled.
func (b *Boost) Track(id string, x, y float64, boosting bool) {
	tr := b.trails[id]
	if tr == nil {
		if !boosting {
			return
		}
		tr = &trail{nodes: make([]pool.Handle, 0, b.trailCap)}
		b.trails[id] = tr
	}
	tr.boosting = boosting
	if !boosting {
		return
	}

	if n := len(tr.nodes); n > 0 {
		last := b.nodes.Get(tr.nodes[n-1])
		if world.Distance(last.x, last.y, x, y) < TrailMinStep {
			return
		}
	}
	if len(tr.nodes) >= b.trailCap {
		b.nodes.Release(tr.nodes[0])
		tr.nodes = append(tr.nodes[:0], tr.nodes[1:]...)
	}
	h, node := b.nodes.Acquire()
	node.x, node.y, node.life = x, y, 1
	tr.nodes = append(tr.nodes, h)
}

// SetPlayerSize changes the exhaust offset behind the bird.
func (b *Boost) SetPlayerSize(size float64) {
	if size > 0 {
		b.playerSize = size
	}
}

// Emit sprays exhaust particles behind a bird facing angle.
func (b *Boost) Emit(x, y, angle float64) int {
	facing := world.NormalizeAngle(angle)
	spawned := 0
	for i := 0; i < particlesPerTick; i++ {
		p, ok := b.particles.Spawn()
		if !ok {
			break
		}
		spawnAngle := facing + math.Pi + (b.rng.Float64()-0.5)*0.5
		speed := 2 + b.rng.Float64()*2
		p.x = x - math.Cos(facing)*b.playerSize*0.8
		p.y = y - math.Sin(facing)*b.playerSize*0.8
		p.vx = math.Cos(spawnAngle) * speed
		p.vy = math.Sin(spawnAngle) * speed
		p.life = 1
		p.size = 3 + b.rng.Float64()*4
		spawned++
	}
	return spawned
}

// Forget drops the trail of an entity that left the world.
func (b *Boost) Forget(id string) {
	if tr := b.trails[id]; tr != nil {
		for _, h := range tr.nodes {
			b.nodes.Release(h)
		}
		delete(b.trails, id)
	}
}

// Update ages particles and trail nodes. Decay rates are per 60Hz tick and
// scaled by dt (seconds).
func (b *Boost) Update(dt float64) {
	ticks := dt * 60
	shrink := math.Pow(boostParticleShrink, ticks)

	b.particles.Sweep(func(p *boostParticle) bool {
		p.x += p.vx * ticks
		p.y += p.vy * ticks
		p.life -= boostParticleDecay * ticks
		p.size *= shrink
		return p.life > 0
	})

	for id, tr := range b.trails {
		kept := tr.nodes[:0]
		for _, h := range tr.nodes {
			n := b.nodes.Get(h)
			n.life -= TrailDecay * ticks
			if n.life <= 0 {
				b.nodes.Release(h)
				continue
			}
			kept = append(kept, h)
		}
		tr.nodes = kept
		if len(tr.nodes) == 0 && !tr.boosting {
			delete(b.trails, id)
		}
	}
}

// Render draws trails first, then particles on top.
func (b *Boost) Render(s render.Surface) {
	base := 2.4
	if b.touch {
		base = 1.6
	}
	b.order = b.order[:0]
	for id := range b.trails {
		b.order = append(b.order, id)
	}
	sort.Strings(b.order)
	for _, id := range b.order {
		tr := b.trails[id]
		if len(tr.nodes) < 2 {
			continue
		}
		mul := 0.2
		if id == b.selfID {
			mul = 0.3
		}
		prev := b.nodes.Get(tr.nodes[0])
		for _, h := range tr.nodes[1:] {
			n := b.nodes.Get(h)
			s.SetColor(render.WithAlpha(boostTrailColor, math.Max(0.04, n.life*mul)))
			s.SetLineWidth(base + n.life*1.2)
			s.StrokeLine(prev.x, prev.y, n.x, n.y)
			prev = n
		}
	}

	b.particles.Range(func(p *boostParticle) {
		s.SetColor(render.WithAlpha(boostParticleColor, p.life*0.6))
		s.FillCircle(p.x, p.y, p.size)
	})
}

// Len is the number of live particles plus trail nodes.
func (b *Boost) Len() int { return b.particles.Len() + b.nodes.Active() }

// Dropped counts refused particle spawns.
func (b *Boost) Dropped() int { return b.particles.Dropped() }

// TrailNodes returns the node count for one entity.
func (b *Boost) TrailNodes(id string) int {
	if tr := b.trails[id]; tr != nil {
		return len(tr.nodes)
	}
	return 0
}

// Trails is the number of entities with a live trail.
func (b *Boost) Trails() int { return len(b.trails) }

// Reset drops every particle and trail.
func (b *Boost) Reset() {
	b.particles.Reset()
	for id := range b.trails {
		b.Forget(id)
	}
}

// Stats reports pool accounting.
func (b *Boost) Stats() Stats {
	s := listStats(b.particles)
	s.Active += b.nodes.Active()
	s.Allocated += b.nodes.Allocated()
	return s
}
