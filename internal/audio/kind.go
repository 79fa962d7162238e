// Package audio turns gameplay events into positional sound.
//
// The Dispatcher decides whether an event is heard (distance, rate limits,
// duplicate deaths) and at what volume, then hands playback to a Backend
// on worker goroutines so the frame loop never waits on decoding or output.
// Failed plays are kept and retried on the next Unlock.
package audio

import (
	"math"
	"time"
)

// Kind is a one-shot sound category.
type Kind int

const (
	KindShot Kind = iota
	KindHit
	KindPickup
	KindDeath
)

func (k Kind) String() string {
	switch k {
	case KindShot:
		return "shot"
	case KindHit:
		return "hit"
	case KindPickup:
		return "pickup"
	case KindDeath:
		return "death"
	default:
		return "unknown"
	}
}

// Hearing radii in world units.
const (
	ShotRadius   = 2400.0
	HitRadius    = 2400.0
	DeathRadius  = 2400.0
	PickupRadius = 4800.0
)

// Radius is the hearing cutoff for a kind.
func (k Kind) Radius() float64 {
	switch k {
	case KindPickup:
		return PickupRadius
	case KindDeath:
		return DeathRadius
	case KindHit:
		return HitRadius
	default:
		return ShotRadius
	}
}

// Clip is the sound asset played for a kind.
func (k Kind) Clip() Clip {
	switch k {
	case KindHit:
		return ClipHit
	case KindPickup:
		return ClipPickup
	case KindDeath:
		return ClipDeath
	default:
		return ClipShot
	}
}

// Falloff is the linear 1 - d/radius attenuation, clamped to [0, 1].
func Falloff(d, radius float64) float64 {
	if radius <= 0 {
		return 0
	}
	return math.Max(0, math.Min(1, 1-d/radius))
}

// Volume blends the falloff v with the kind's floor so near sounds are
// full and far sounds stay faintly audible up to the cutoff.
func (k Kind) Volume(v float64) float64 {
	switch k {
	case KindHit:
		return 0.2 + v*0.8
	case KindPickup:
		return 0.25 + v*0.75
	case KindDeath:
		return math.Min(1, math.Max(0.55, 0.35+v*0.75))
	default:
		return 0.15 + v*0.85
	}
}

// Result is the outcome of a trigger.
type Result int

const (
	// ResultPlayed means playback was handed to the backend.
	ResultPlayed Result = iota
	ResultOutOfRange
	ResultRateLimited
	ResultDuplicate
	// ResultLooping means a sustained-fire loop already covers the shooter.
	ResultLooping
	ResultNoListener
	ResultInvalid
	// ResultFailed means the worker queue was full.
	ResultFailed
	numResults
)

func (r Result) String() string {
	switch r {
	case ResultPlayed:
		return "played"
	case ResultOutOfRange:
		return "out_of_range"
	case ResultRateLimited:
		return "rate_limited"
	case ResultDuplicate:
		return "duplicate"
	case ResultLooping:
		return "looping"
	case ResultNoListener:
		return "no_listener"
	case ResultInvalid:
		return "invalid"
	case ResultFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Clip names a loaded sound asset.
type Clip string

const (
	ClipShot   Clip = "shot"
	ClipHit    Clip = "hit"
	ClipPickup Clip = "pickup"
	ClipDeath  Clip = "death"
)

// Clips lists every clip the dispatcher can ask for.
var Clips = []Clip{ClipShot, ClipHit, ClipPickup, ClipDeath}

// Window selects a slice of a clip in seconds. A zero Duration means
// "to the end".
type Window struct {
	Start    float64
	Duration float64
}

// Sustained-fire windows into the shot clip.
var (
	FireStartWindow = Window{Start: 0, Duration: 0.07}
	FireLoopWindow  = Window{Start: 0.06, Duration: 0.16}
	FireEndWindow   = Window{Start: 0.22, Duration: 0.09}
)

// Fades applied when loops stop.
const (
	LocalLoopFade  = 90 * time.Millisecond
	RemoteLoopFade = 120 * time.Millisecond
)

// RemoteLoopVolume is the loop level for a remote shooter at distance d.
func RemoteLoopVolume(d float64) float64 {
	return math.Max(0.04, math.Min(0.65, 1-d/ShotRadius))
}
