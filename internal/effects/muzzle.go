package effects

import (
	"image/color"
	"math"

	"flappy-client/internal/config"
	"flappy-client/internal/pool"
	"flappy-client/internal/render"
)

const (
	muzzleGravity = 380
	muzzleDrag    = 4.2
)

var muzzleColors = []color.NRGBA{
	render.ParseHex("#ffffff"),
	render.ParseHex("#e8e8e8"),
	render.ParseHex("#d6d6d6"),
}

type muzzleParticle struct {
	x, y    float64
	vx, vy  float64
	life    float64
	maxLife float64
	size    float64
	color   color.NRGBA
}

// Muzzle is the short spray of square sparks at a gun mouth.
type Muzzle struct {
	list  *pool.List[muzzleParticle]
	touch bool
	rng   Rand
}

// NewMuzzle creates the muzzle system for a profile.
func NewMuzzle(p config.Profile, rng Rand) *Muzzle {
	return &Muzzle{
		list:  pool.NewList[muzzleParticle](LimitsFor(p).Muzzle),
		touch: p.IsTouch(),
		rng:   rng,
	}
}

// Spawn emits one burst at (x, y). dir is +1 when the shooter faces right
// and -1 when it faces left. Returns the number of particles created.
func (m *Muzzle) Spawn(x, y, dir float64) int {
	count := 2
	if !m.touch {
		count = int(6 + m.rng.Float64()*4)
	}
	if dir == 0 {
		dir = 1
	}

	spawned := 0
	for i := 0; i < count; i++ {
		p, ok := m.list.Spawn()
		if !ok {
			break
		}
		angle := m.rng.Float64()*1.2 - 0.6
		var speed float64
		if m.touch {
			speed = 380 + m.rng.Float64()*200
			p.size = 5 + m.rng.Float64()*2
			p.maxLife = 0.14 + m.rng.Float64()*0.08
		} else {
			speed = 520 + m.rng.Float64()*320
			p.size = 9 + m.rng.Float64()*4
			p.maxLife = 0.22 + m.rng.Float64()*0.12
		}
		p.x, p.y = x, y
		p.vx = math.Cos(angle) * speed * dir
		p.vy = math.Sin(angle)*speed - 40
		p.life = 0
		p.color = muzzleColors[int(m.rng.Float64()*float64(len(muzzleColors)))%len(muzzleColors)]
		spawned++
	}
	return spawned
}

// Update integrates with gravity and drag; dt is in seconds.
func (m *Muzzle) Update(dt float64) {
	m.list.Sweep(func(p *muzzleParticle) bool {
		p.life += dt
		if p.life >= p.maxLife {
			return false
		}
		p.x += p.vx * dt
		p.y += p.vy * dt
		p.vy += muzzleGravity * dt
		p.vx -= p.vx * muzzleDrag * dt
		p.vy -= p.vy * muzzleDrag * dt
		return true
	})
}

// Render draws each spark as a fading square.
func (m *Muzzle) Render(s render.Surface) {
	m.list.Range(func(p *muzzleParticle) {
		s.SetColor(render.WithAlpha(p.color, 1-p.life/p.maxLife))
		s.FillRect(p.x-p.size/2, p.y-p.size/2, p.size, p.size)
	})
}

func (m *Muzzle) Len() int     { return m.list.Len() }
func (m *Muzzle) Dropped() int { return m.list.Dropped() }
func (m *Muzzle) Reset()       { m.list.Reset() }

// Stats reports pool accounting.
func (m *Muzzle) Stats() Stats { return listStats(m.list) }

func listStats[T any](l *pool.List[T]) Stats {
	return Stats{Active: l.Len(), Dropped: l.Dropped(), Allocated: l.Pool().Allocated(), Cap: l.Limit()}
}
