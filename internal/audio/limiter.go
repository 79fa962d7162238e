package audio

import (
	"time"

	"golang.org/x/time/rate"

	"flappy-client/internal/config"
)

const (
	// GlobalWindow is the fixed window the global cap counts over.
	GlobalWindow = time.Second
	// DesktopCap and TouchCap are plays allowed per window.
	DesktopCap = 44
	TouchCap   = 24
	// ShooterRate is the most shots per second heard from one shooter.
	ShooterRate rate.Limit = 14
	// PickupInterval is the minimum gap between pickup sounds.
	PickupInterval = 30 * time.Millisecond

	maxShooters = 256
)

// Limiter holds the rate-limit state: a global fixed window, one token
// bucket per shooter and a pickup gate. It is not safe for concurrent use.
type Limiter struct {
	cap         int
	windowStart time.Time
	count       int

	shooters   map[string]*rate.Limiter
	lastPickup time.Time
}

// NewLimiter creates a limiter with the cap for the profile.
func NewLimiter(p config.Profile) *Limiter {
	limit := DesktopCap
	if p.IsTouch() {
		limit = TouchCap
	}
	return &Limiter{
		cap:      limit,
		shooters: make(map[string]*rate.Limiter),
	}
}

// Cap is the global plays-per-window limit.
func (l *Limiter) Cap() int { return l.cap }

func (l *Limiter) roll(now time.Time) {
	if now.Sub(l.windowStart) >= GlobalWindow || now.Before(l.windowStart) {
		l.windowStart = now
		l.count = 0
	}
}

// GlobalAvailable reports whether the window has room without using it.
func (l *Limiter) GlobalAvailable(now time.Time) bool {
	l.roll(now)
	return l.count < l.cap
}

// TakeGlobal consumes one slot of the current window.
func (l *Limiter) TakeGlobal(now time.Time) {
	l.roll(now)
	l.count++
}

// AllowShooter applies the per-shooter minimum interval.
func (l *Limiter) AllowShooter(id string, now time.Time) bool {
	lim, ok := l.shooters[id]
	if !ok {
		if len(l.shooters) >= maxShooters {
			l.prune(now)
		}
		lim = rate.NewLimiter(ShooterRate, 1)
		l.shooters[id] = lim
	}
	return lim.AllowN(now, 1)
}

// AllowPickup applies the pickup gate.
func (l *Limiter) AllowPickup(now time.Time) bool {
	if !l.lastPickup.IsZero() && now.Sub(l.lastPickup) < PickupInterval {
		return false
	}
	l.lastPickup = now
	return true
}

// Forget drops a shooter's bucket.
func (l *Limiter) Forget(id string) {
	delete(l.shooters, id)
}

// Shooters is the number of tracked shooter buckets.
func (l *Limiter) Shooters() int { return len(l.shooters) }

// Reset clears every window and bucket.
func (l *Limiter) Reset() {
	l.windowStart = time.Time{}
	l.count = 0
	l.lastPickup = time.Time{}
	clear(l.shooters)
}

// prune drops buckets that have fully refilled; they carry no state.
func (l *Limiter) prune(now time.Time) {
	for id, lim := range l.shooters {
		if lim.TokensAt(now) >= 1 {
			delete(l.shooters, id)
		}
	}
}
