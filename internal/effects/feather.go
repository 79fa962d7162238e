package effects

import (
	"math"

	"flappy-client/internal/config"
	"flappy-client/internal/pool"
	"flappy-client/internal/render"
)

const (
	featherGravity = 360
	featherDrag    = 1.7
)

type feather struct {
	x, y     float64
	vx, vy   float64
	life     float64
	maxLife  float64
	size     float64
	rot      float64
	rotVel   float64
	birdType string
}

// Feathers is the burst of spinning feathers left by a dead bird.
// Deduplication of deaths happens before Spawn is called.
type Feathers struct {
	list     *pool.List[feather]
	touch    bool
	rng      Rand
	sprites  *render.Sprites
	perDeath int
}

// NewFeathers creates the feather system for a profile. sprites may be nil.
func NewFeathers(p config.Profile, rng Rand, sprites *render.Sprites) *Feathers {
	perDeath := 14
	if p.IsTouch() {
		perDeath = 7
	}
	return &Feathers{
		list:     pool.NewList[feather](LimitsFor(p).Feather),
		touch:    p.IsTouch(),
		rng:      rng,
		sprites:  sprites,
		perDeath: perDeath,
	}
}

// Spawn emits one death burst. Returns the number of feathers created.
func (f *Feathers) Spawn(x, y float64, birdType string) int {
	if birdType == "" {
		birdType = "yellow"
	}

	spawned := 0
	for i := 0; i < f.perDeath; i++ {
		p, ok := f.list.Spawn()
		if !ok {
			break
		}
		ang := f.rng.Float64() * math.Pi * 2
		var speed float64
		if f.touch {
			speed = 110 + f.rng.Float64()*90
			p.maxLife = 0.52 + f.rng.Float64()*0.2
			p.size = 7 + f.rng.Float64()*4
		} else {
			speed = 170 + f.rng.Float64()*150
			p.maxLife = 0.72 + f.rng.Float64()*0.2
			p.size = 9 + f.rng.Float64()*4
		}
		p.x, p.y = x, y
		p.vx = math.Cos(ang) * speed
		p.vy = math.Sin(ang)*speed - 30
		p.life = 0
		p.rot = f.rng.Float64() * math.Pi * 2
		p.rotVel = (f.rng.Float64() - 0.5) * 8
		p.birdType = birdType
		spawned++
	}
	return spawned
}

// Update integrates with gravity and horizontal drag; dt is in seconds.
func (f *Feathers) Update(dt float64) {
	f.list.Sweep(func(p *feather) bool {
		p.life += dt
		if p.life >= p.maxLife {
			return false
		}
		p.x += p.vx * dt
		p.y += p.vy * dt
		p.vy += featherGravity * dt
		p.vx -= p.vx * featherDrag * dt
		p.rot += p.rotVel * dt
		return true
	})
}

// Render draws the feather sprite for each bird type, or a pale square.
func (f *Feathers) Render(s render.Surface) {
	white := render.ParseHex("#ffffff")
	f.list.Range(func(p *feather) {
		t := 1 - p.life/p.maxLife
		s.Save()
		s.Translate(p.x, p.y)
		s.Rotate(p.rot)
		if img := f.sprites.Feather(p.birdType); img != nil {
			s.DrawImage(img, 0, 0)
		} else {
			s.SetColor(render.WithAlpha(white, t*(0.35+t*0.35)))
			s.FillRect(-p.size/2, -p.size/2, p.size, p.size)
		}
		s.Restore()
	})
}

func (f *Feathers) Len() int     { return f.list.Len() }
func (f *Feathers) Dropped() int { return f.list.Dropped() }
func (f *Feathers) Reset()       { f.list.Reset() }

// Stats reports pool accounting.
func (f *Feathers) Stats() Stats { return listStats(f.list) }
