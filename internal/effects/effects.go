// Package effects holds the capacity-bounded visual effect systems.
//
// Every system has the same shape: Spawn refuses new entries at the
// profile cap, Update integrates and retires expired entries back to the
// pool, Render draws in world space. Systems are owned by the frame loop.
package effects

import (
	"flappy-client/internal/config"
	"flappy-client/internal/render"
)

// Rand is the randomness source; *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// Limits are the active-entry caps per system.
type Limits struct {
	Muzzle         int
	Feather        int
	BoostParticles int
	TrailNodes     int // per entity
	Tracers        int
	Explosions     int
}

// LimitsFor returns the caps for a platform profile.
func LimitsFor(p config.Profile) Limits {
	if p.IsTouch() {
		return Limits{
			Muzzle:         12,
			Feather:        48,
			BoostParticles: 48,
			TrailNodes:     28,
			Tracers:        64,
			Explosions:     64,
		}
	}
	return Limits{
		Muzzle:         80,
		Feather:        140,
		BoostParticles: 120,
		TrailNodes:     72,
		Tracers:        64,
		Explosions:     64,
	}
}

// System is implemented by every effect system.
type System interface {
	Update(dt float64)
	Render(s render.Surface)
	Len() int
	Dropped() int
	Reset()
}

// Stats summarizes one system for metrics and the debug endpoint.
type Stats struct {
	Active    int `json:"active"`
	Dropped   int `json:"dropped"`
	Allocated int `json:"allocated"`
	Cap       int `json:"cap"`
}
