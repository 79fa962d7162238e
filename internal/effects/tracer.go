package effects

import (
	"math"

	"flappy-client/internal/config"
	"flappy-client/internal/pool"
	"flappy-client/internal/render"
)

const (
	// TracerLength is the drawn streak length.
	TracerLength = 390
	// TracerOffset pushes the streak ahead of the muzzle.
	TracerOffset = 150
	// TracerLife is the streak lifetime in seconds.
	TracerLife = 0.18
)

type tracer struct {
	x1, y1  float64
	x2, y2  float64
	life    float64
	maxLife float64
}

// Tracers are the brief bright streaks drawn along a fresh shot.
type Tracers struct {
	list  *pool.List[tracer]
	width float64
}

// NewTracers creates the tracer system for a profile.
func NewTracers(p config.Profile) *Tracers {
	return &Tracers{
		list:  pool.NewList[tracer](LimitsFor(p).Tracers),
		width: 4.62,
	}
}

// Spawn adds a streak starting ahead of (x, y) along angle.
func (t *Tracers) Spawn(x, y, angle float64) bool {
	p, ok := t.list.Spawn()
	if !ok {
		return false
	}
	cos, sin := math.Cos(angle), math.Sin(angle)
	p.x1 = x + cos*TracerOffset
	p.y1 = y + sin*TracerOffset
	p.x2 = x + cos*(TracerOffset+TracerLength)
	p.y2 = y + sin*(TracerOffset+TracerLength)
	p.life = 0
	p.maxLife = TracerLife
	return true
}

// Update ages streaks; dt is in seconds.
func (t *Tracers) Update(dt float64) {
	t.list.Sweep(func(p *tracer) bool {
		p.life += dt
		return p.life < p.maxLife
	})
}

// Render draws each streak, fading with age.
func (t *Tracers) Render(s render.Surface) {
	white := render.ParseHex("#ffffff")
	s.SetLineWidth(t.width)
	t.list.Range(func(p *tracer) {
		remaining := clamp01(1 - p.life/p.maxLife)
		s.SetColor(render.WithAlpha(white, 0.15+remaining*0.7))
		s.StrokeLine(p.x1, p.y1, p.x2, p.y2)
	})
}

func (t *Tracers) Len() int     { return t.list.Len() }
func (t *Tracers) Dropped() int { return t.list.Dropped() }
func (t *Tracers) Reset()       { t.list.Reset() }

// Stats reports pool accounting.
func (t *Tracers) Stats() Stats { return listStats(t.list) }

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
