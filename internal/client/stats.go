package client

import (
	"flappy-client/internal/audio"
	"flappy-client/internal/bullets"
	"flappy-client/internal/effects"
	"flappy-client/internal/events"
	"flappy-client/internal/metrics"
	"flappy-client/internal/world"
)

// CameraStats describes the viewport.
type CameraStats struct {
	Mode       string  `json:"mode"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Zoom       float64 `json:"zoom"`
	Spectating string  `json:"spectating,omitempty"`
}

// Stats is a point-in-time view of the engine, rebuilt at the end of every
// tick and served by the debug endpoint.
type Stats struct {
	Frame         uint64                   `json:"frame"`
	SnapshotSeq   uint64                   `json:"snapshot_seq"`
	SelfID        string                   `json:"self_id"`
	Entities      int                      `json:"entities"`
	Poses         int                      `json:"poses"`
	Orbs          int                      `json:"orbs"`
	Firing        bool                     `json:"firing"`
	Camera        CameraStats              `json:"camera"`
	Bullets       bullets.Stats            `json:"bullets"`
	Effects       map[string]effects.Stats `json:"effects"`
	Audio         audio.Stats              `json:"audio"`
	Events        map[string]uint64        `json:"events"`
	Rendered      uint64                   `json:"rendered"`
	RenderSkipped uint64                   `json:"render_skipped"`
	Snapshots     uint64                   `json:"snapshots"`
	Panics        uint64                   `json:"panics"`
	TickMs        float64                  `json:"tick_ms"`
}

// Stats returns the view published by the last tick.
func (e *Engine) Stats() Stats {
	if st := e.stats.Load(); st != nil {
		return *st
	}
	return Stats{}
}

func (e *Engine) publishStats(f *world.Frame) {
	st := &Stats{
		Frame:         e.frame,
		SnapshotSeq:   f.Seq,
		SelfID:        e.self,
		Entities:      len(f.Entities),
		Poses:         e.interp.Len(),
		Orbs:          len(f.Orbs),
		Firing:        e.fireHeld,
		Bullets:       e.sim.Stats(),
		Effects:       make(map[string]effects.Stats, len(e.systems)),
		Audio:         e.audio.Stats(),
		Events:        make(map[string]uint64, 6),
		Rendered:      e.rendered,
		RenderSkipped: e.skipped,
		Snapshots:     e.snapshots,
		Panics:        e.loop.Panics(),
		TickMs:        float64(e.lastTick.Microseconds()) / 1000,
	}
	x, y := e.camera.Position()
	st.Camera = CameraStats{
		Mode:       e.camMode.String(),
		X:          x,
		Y:          y,
		Zoom:       e.camera.Zoom(),
		Spectating: e.camera.SpectateTarget(),
	}
	for t := events.EventTypeShot; t <= events.EventTypeFireStop; t++ {
		st.Events[t.String()] = e.bus.Published(t)
	}

	metrics.UpdateWorld(st.Entities, st.Bullets.Active)
	metrics.UpdatePool("bullets", e.sim.Allocated())
	for _, s := range e.systems {
		es := s.sys.Stats()
		st.Effects[s.name] = es
		metrics.UpdateEffect(s.name, es.Active, es.Dropped-e.dropped[s.name])
		metrics.UpdatePool(s.name, es.Allocated)
		e.dropped[s.name] = es.Dropped
	}

	e.stats.Store(st)
}
