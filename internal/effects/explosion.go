package effects

import (
	"math"

	"flappy-client/internal/config"
	"flappy-client/internal/pool"
	"flappy-client/internal/render"
)

// ExplosionLife is how long a death puff stays on screen, in seconds.
const ExplosionLife = 0.9

type explosion struct {
	x, y float64
	life float64
}

// Explosions are the white square puffs drawn where a bird died.
type Explosions struct {
	list *pool.List[explosion]
}

// NewExplosions creates the explosion system for a profile.
func NewExplosions(p config.Profile) *Explosions {
	return &Explosions{list: pool.NewList[explosion](LimitsFor(p).Explosions)}
}

// Spawn starts a puff at (x, y).
func (e *Explosions) Spawn(x, y float64) bool {
	p, ok := e.list.Spawn()
	if !ok {
		return false
	}
	p.x, p.y = x, y
	p.life = 0
	return true
}

// Update ages puffs; dt is in seconds.
func (e *Explosions) Update(dt float64) {
	e.list.Sweep(func(p *explosion) bool {
		p.life += dt
		return p.life < ExplosionLife
	})
}

// Render draws a ring of 12 squares expanding outward plus a center flash.
func (e *Explosions) Render(s render.Surface) {
	white := render.ParseHex("#ffffff")
	const count = 12
	e.list.Range(func(p *explosion) {
		t := math.Min(1, p.life/ExplosionLife)
		r := (14 + t*42) * 4
		s.SetColor(render.WithAlpha(white, 1-t))
		size := (4 + (1-t)*6) * 4
		for i := 0; i < count; i++ {
			ang := float64(i) / count * math.Pi * 2
			px := p.x + math.Cos(ang)*r*(0.7+float64(i%3)*0.12)
			py := p.y + math.Sin(ang)*r*(0.7+float64((i+1)%3)*0.12)
			s.FillRect(px-size/2, py-size/2, size, size)
		}
		flash := 12 * (1 - t) * 4
		s.FillRect(p.x-flash/2, p.y-flash/2, flash, flash)
	})
}

func (e *Explosions) Len() int     { return e.list.Len() }
func (e *Explosions) Dropped() int { return e.list.Dropped() }
func (e *Explosions) Reset()       { e.list.Reset() }

// Stats reports pool accounting.
func (e *Explosions) Stats() Stats { return listStats(e.list) }
