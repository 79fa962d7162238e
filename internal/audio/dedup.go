package audio

import (
	"math"
	"strconv"
	"time"
)

const (
	// DedupTTL is how long a death key suppresses repeats.
	DedupTTL = 8 * time.Second
	// DedupPruneAt is the size above which expired keys are swept.
	DedupPruneAt = 128
)

// DeathKey identifies one death: the player and tick when the player is
// known, else the rounded position and tick.
func DeathKey(playerID string, x, y float64, tick int64) string {
	t := strconv.FormatInt(tick, 10)
	if playerID != "" {
		return playerID + ":" + t
	}
	return strconv.FormatInt(int64(math.Round(x)), 10) + ":" +
		strconv.FormatInt(int64(math.Round(y)), 10) + ":" + t
}

// Dedup remembers recently seen keys.
type Dedup struct {
	ttl  time.Duration
	seen map[string]time.Time
}

// NewDedup creates a set whose keys expire after ttl.
func NewDedup(ttl time.Duration) *Dedup {
	if ttl <= 0 {
		ttl = DedupTTL
	}
	return &Dedup{ttl: ttl, seen: make(map[string]time.Time)}
}

// Seen reports whether key was recorded within the ttl, recording it if not.
func (d *Dedup) Seen(key string, now time.Time) bool {
	if at, ok := d.seen[key]; ok && now.Sub(at) <= d.ttl {
		return true
	}
	d.seen[key] = now
	if len(d.seen) > DedupPruneAt {
		for k, at := range d.seen {
			if now.Sub(at) > d.ttl {
				delete(d.seen, k)
			}
		}
	}
	return false
}

// Len is the number of remembered keys.
func (d *Dedup) Len() int { return len(d.seen) }

// Reset forgets every key.
func (d *Dedup) Reset() { clear(d.seen) }
