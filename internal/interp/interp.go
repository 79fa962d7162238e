// Package interp reconstructs smooth entity motion from sparse server samples.
//
// Poses are rendered a fixed delay behind real time so that, in steady
// state, two samples bracket the render timestamp. Outside the buffered
// range the pose clamps to the nearest sample; it never extrapolates.
package interp

import (
	"strconv"

	"flappy-client/internal/world"
)

const (
	// DefaultDelayMs is how far behind "now" poses are rendered.
	DefaultDelayMs = 100
	// RetentionMs bounds the age of the oldest sample relative to the newest.
	RetentionMs = 1500
	// MaxSamples caps each entity's buffer.
	MaxSamples = 12
)

// Sample is one authoritative pose at time T (ms).
type Sample struct {
	T     float64
	X     float64
	Y     float64
	Angle float64
}

// Pose is the derived render state of one entity.
type Pose struct {
	X     float64
	Y     float64
	Angle float64
}

type buffer struct {
	samples []Sample
	sig     string
}

// Interpolator keeps one sample buffer and one pose per tracked entity.
// Owned by the frame loop; not safe for concurrent use.
type Interpolator struct {
	delayMs float64
	buffers map[string]*buffer
	poses   map[string]Pose
}

// New creates an interpolator with the given render delay in milliseconds.
// A non-positive delay selects DefaultDelayMs.
func New(delayMs float64) *Interpolator {
	if delayMs <= 0 {
		delayMs = DefaultDelayMs
	}
	return &Interpolator{
		delayMs: delayMs,
		buffers: make(map[string]*buffer),
		poses:   make(map[string]Pose),
	}
}

// Delay returns the render delay in milliseconds.
func (in *Interpolator) Delay() float64 { return in.delayMs }

// Push appends s to id's buffer when its signature differs from the last
// stored one. Non-finite samples and samples older than the newest stored
// one are rejected.
func (in *Interpolator) Push(id string, s Sample) bool {
	if !world.Finite(s.T, s.X, s.Y, s.Angle) {
		return false
	}

	b := in.buffers[id]
	if b == nil {
		b = &buffer{samples: make([]Sample, 0, MaxSamples+1)}
		in.buffers[id] = b
	}

	sig := signature(s)
	if sig == b.sig {
		return false
	}
	if n := len(b.samples); n > 0 && s.T < b.samples[n-1].T {
		return false
	}

	b.samples = append(b.samples, s)
	drop := 0
	for len(b.samples)-drop > MaxSamples || s.T-b.samples[drop].T > RetentionMs {
		drop++
	}
	if drop > 0 {
		b.samples = append(b.samples[:0], b.samples[drop:]...)
	}
	b.sig = sig
	return true
}

// Update feeds every entity's current state as a sample, recomputes all
// poses for render time nowMs-delay, and forgets entities no longer present.
func (in *Interpolator) Update(nowMs float64, entities map[string]world.Entity) {
	renderT := nowMs - in.delayMs

	for id, e := range entities {
		in.Push(id, Sample{T: e.Stamp, X: e.X, Y: e.Y, Angle: e.Angle})

		b := in.buffers[id]
		if b == nil || len(b.samples) == 0 {
			if world.Finite(e.X, e.Y, e.Angle) {
				in.poses[id] = Pose{X: e.X, Y: e.Y, Angle: e.Angle}
			}
			continue
		}
		in.poses[id] = SampleAt(b.samples, renderT)
	}

	for id := range in.poses {
		if _, ok := entities[id]; !ok {
			delete(in.poses, id)
		}
	}
	for id := range in.buffers {
		if _, ok := entities[id]; !ok {
			delete(in.buffers, id)
		}
	}
}

// Pose returns the current pose for id.
func (in *Interpolator) Pose(id string) (Pose, bool) {
	p, ok := in.poses[id]
	return p, ok
}

// Poses returns the live pose table. Callers must not modify it.
func (in *Interpolator) Poses() map[string]Pose {
	return in.poses
}

// Samples returns a copy of id's buffer.
func (in *Interpolator) Samples(id string) []Sample {
	b := in.buffers[id]
	if b == nil {
		return nil
	}
	return append([]Sample(nil), b.samples...)
}

// Len is the number of entities with a pose.
func (in *Interpolator) Len() int { return len(in.poses) }

// Reset forgets every buffer and pose.
func (in *Interpolator) Reset() {
	clear(in.buffers)
	clear(in.poses)
}

// SampleAt computes the pose at renderT from a time-ordered, non-empty buffer.
func SampleAt(samples []Sample, renderT float64) Pose {
	first := samples[0]
	last := samples[len(samples)-1]
	if len(samples) == 1 || renderT <= first.T {
		return Pose{X: first.X, Y: first.Y, Angle: first.Angle}
	}
	if renderT >= last.T {
		return Pose{X: last.X, Y: last.Y, Angle: last.Angle}
	}

	prev, next := first, last
	for i := 1; i < len(samples); i++ {
		if samples[i].T >= renderT {
			prev = samples[i-1]
			next = samples[i]
			break
		}
	}

	span := max(1, next.T-prev.T)
	alpha := world.Clamp((renderT-prev.T)/span, 0, 1)
	return Pose{
		X:     world.Lerp(prev.X, next.X, alpha),
		Y:     world.Lerp(prev.Y, next.Y, alpha),
		Angle: world.LerpAngle(prev.Angle, next.Angle, alpha),
	}
}

func signature(s Sample) string {
	buf := make([]byte, 0, 48)
	buf = strconv.AppendFloat(buf, s.T, 'f', -1, 64)
	buf = append(buf, '|')
	buf = strconv.AppendFloat(buf, s.X, 'f', 3, 64)
	buf = append(buf, '|')
	buf = strconv.AppendFloat(buf, s.Y, 'f', 3, 64)
	buf = append(buf, '|')
	buf = strconv.AppendFloat(buf, s.Angle, 'f', 5, 64)
	return string(buf)
}
