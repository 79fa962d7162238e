package client

import (
	"math"
	"sort"
	"time"

	"flappy-client/internal/audio"
	"flappy-client/internal/camera"
	"flappy-client/internal/events"
	"flappy-client/internal/frameloop"
	"flappy-client/internal/metrics"
	"flappy-client/internal/netclient"
	"flappy-client/internal/render"
	"flappy-client/internal/world"
)

const (
	// SimStep is the bullet integration step; bullet velocities are per 60Hz tick.
	SimStep = 1.0 / 60
	// MaxSimSteps bounds catch-up after a slow frame.
	MaxSimSteps = 4
	// OrbRadius is the drawn orb radius.
	OrbRadius = 12

	// Muzzle burst offsets from the drawn bird's center.
	muzzleAhead  = 50
	muzzleBehind = -100
	muzzleDrop   = 50 - 20
)

// Tick runs one frame: drain events, interpolate, simulate, move the
// camera, render, then sync audio. Stages always run in this order.
func (e *Engine) Tick(tc *frameloop.TickContext) {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	start := time.Now()
	e.now = tc.Now
	e.nowMs = tc.NowMs()
	e.frame = tc.Frame

	e.mu.Lock()
	e.self = e.selfID
	removals := e.removals
	e.removals = nil
	override := e.override
	serverCfg := e.serverCfg
	e.serverCfg = nil
	e.mu.Unlock()

	if serverCfg != nil {
		e.applyServerConfig(serverCfg)
	}

	e.boost.SetSelf(e.self)
	if len(removals) > 0 {
		e.sim.Remove(removals...)
	}
	e.bus.Drain()

	f := e.store.Latest()
	e.interp.Update(e.nowMs, f.Entities)
	e.simulate(tc.DtSeconds(), f)
	e.updateCamera(f, override)
	e.render(f)
	e.syncAudio(f)

	e.lastTick = time.Since(start)
	e.publishStats(f)
	metrics.RecordTick(e.lastTick)
}

func (e *Engine) simulate(dt float64, f *world.Frame) {
	e.sim.Reconcile(e.self, f.Bullets)

	if e.fireHeld {
		if self, ok := f.Entities[e.self]; ok && self.Alive {
			if pose, ok := e.interp.Pose(e.self); ok {
				b, fired := e.sim.TryFire(e.nowMs, e.self, pose)
				if fired && e.quietShots {
					// Quiet shots skip the bus; give the muzzle feedback here.
					e.spawnMuzzle(e.self, b.X, b.Y)
					e.tracers.Spawn(b.X, b.Y, pose.Angle)
				}
			}
		}
	}

	e.stepAcc += dt
	steps := 0
	for e.stepAcc >= SimStep && steps < MaxSimSteps {
		e.sim.Step(f.Obstacles)
		e.stepAcc -= SimStep
		steps++
	}
	if steps == MaxSimSteps {
		e.stepAcc = math.Min(e.stepAcc, SimStep)
	}

	for id, ent := range f.Entities {
		pose, ok := e.interp.Pose(id)
		if !ok {
			continue
		}
		boosting := ent.Alive && ent.Boosting && !ent.BoostDepleted
		e.boost.Track(id, pose.X, pose.Y, boosting)
		if boosting && id == e.self {
			e.boost.Emit(pose.X, pose.Y, pose.Angle)
		}
		e.tracked[id] = struct{}{}
	}
	for id := range e.tracked {
		if _, ok := f.Entities[id]; !ok {
			e.boost.Forget(id)
			delete(e.tracked, id)
		}
	}

	for _, s := range e.systems {
		s.sys.Update(dt)
	}
}

func (e *Engine) updateCamera(f *world.Frame, override *camera.Override) {
	in := camera.Input{
		Mode:     cameraMode(f, e.self, override != nil),
		SelfID:   e.self,
		Entities: f.Entities,
		Poses:    e.interp.Poses(),
	}
	if override != nil {
		in.Override = *override
	}
	e.camMode = in.Mode
	e.camera.Update(in)
}

// cameraMode follows the local player while alive, spectates while dead
// and centers the world before joining.
func cameraMode(f *world.Frame, self string, overridden bool) camera.Mode {
	if overridden {
		return camera.ModeOverride
	}
	ent, ok := f.Entities[self]
	switch {
	case self == "" || !ok:
		return camera.ModeCenter
	case ent.Alive:
		return camera.ModeFollowPlayer
	default:
		return camera.ModeSpectate
	}
}

func (e *Engine) render(f *world.Frame) {
	s := e.surface
	if s == nil || !e.camera.Renderable() {
		e.skipped++
		metrics.RecordRenderSkipped()
		return
	}

	x, y := e.camera.Position()
	render.BeginWorld(s, x, y, e.camera.Zoom())
	render.DrawBackground(s, e.game.WorldWidth, e.game.WorldHeight)
	render.DrawObstacles(s, f.Obstacles)
	render.DrawOrbs(s, f.Orbs, OrbRadius)
	e.boost.Render(s)
	e.sim.Render(s)
	e.tracers.Render(s)

	ids := make([]string, 0, len(f.Entities))
	for id, ent := range f.Entities {
		if ent.Alive {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		pose, ok := e.interp.Pose(id)
		if !ok {
			continue
		}
		render.DrawBird(s, e.sprites, pose.X, pose.Y, pose.Angle, e.game.PlayerSize, f.Entities[id].BirdType)
	}

	e.muzzle.Render(s)
	e.feathers.Render(s)
	e.explosions.Render(s)
	s.Restore()
	e.rendered++

	e.mu.Lock()
	path := e.snapshotPath
	e.snapshotPath = ""
	e.mu.Unlock()
	if path == "" {
		return
	}
	gs, ok := s.(*render.GGSurface)
	if !ok {
		return
	}
	if err := gs.SavePNG(path); err != nil {
		e.log.Error().Err(err).Str("path", path).Msg("❌ Failed to save snapshot")
		return
	}
	e.snapshots++
	e.log.Info().Str("path", path).Msg("📸 Snapshot saved")
}

func (e *Engine) syncAudio(f *world.Frame) {
	pose, ok := e.interp.Pose(e.self)
	_, known := f.Entities[e.self]
	e.audio.SetListener(e.self, pose.X, pose.Y, ok && known)

	shooters := audio.ShootersFrom(f.Entities)
	for i := range shooters {
		if p, ok := e.interp.Pose(shooters[i].ID); ok {
			shooters[i].X, shooters[i].Y = p.X, p.Y
		}
	}
	e.audio.SyncRemote(e.now, shooters)
}

// =============================================================================
// BUS HANDLERS (tick goroutine)
// =============================================================================

func (e *Engine) onShot(s events.Shot) {
	if !s.Local && s.BulletID != "" && s.OwnerID == e.self && e.self != "" {
		// Server echo of a bullet already simulated locally.
		return
	}
	if !world.Finite(s.X, s.Y) {
		return
	}
	e.spawnMuzzle(s.OwnerID, s.X, s.Y)
	e.tracers.Spawn(s.X, s.Y, s.Angle)
	e.audio.Trigger(e.now, audio.Trigger{Kind: audio.KindShot, X: s.X, Y: s.Y, SourceID: s.OwnerID})
}

func (e *Engine) onHit(h events.Hit) {
	e.audio.Trigger(e.now, audio.Trigger{
		Kind:     audio.KindHit,
		X:        h.X,
		Y:        h.Y,
		SourceID: h.AttackerID,
		PlayerID: h.PlayerID,
	})
}

func (e *Engine) onDeath(d events.Death) {
	r := e.audio.Trigger(e.now, audio.Trigger{
		Kind:     audio.KindDeath,
		X:        d.X,
		Y:        d.Y,
		PlayerID: d.PlayerID,
		Tick:     d.Tick,
	})
	if r == audio.ResultDuplicate || r == audio.ResultInvalid {
		return
	}
	e.feathers.Spawn(d.X, d.Y, d.BirdType)
	e.explosions.Spawn(d.X, d.Y)
	if d.PlayerID != "" && d.PlayerID == e.self {
		e.releaseFire("death")
	}
}

func (e *Engine) onPickup(p events.Pickup) {
	x, y := p.X, p.Y
	if !world.Finite(x, y) {
		pose, ok := e.interp.Pose(p.PlayerID)
		if !ok {
			return
		}
		x, y = pose.X, pose.Y
	}
	e.audio.Trigger(e.now, audio.Trigger{Kind: audio.KindPickup, X: x, Y: y, PlayerID: p.PlayerID})
}

func (e *Engine) onFireStart(events.FireStart) {
	if e.fireHeld {
		return
	}
	e.fireHeld = true
	e.sendShooting(true)
	if e.profile.IsTouch() {
		e.audio.StartFire()
	}
}

func (e *Engine) onFireStop(s events.FireStop) {
	e.releaseFire(s.Reason)
}

func (e *Engine) releaseFire(reason string) {
	if !e.fireHeld {
		return
	}
	e.fireHeld = false
	e.sendShooting(false)
	e.audio.StopFire()
	e.log.Debug().Str("reason", reason).Msg("fire released")
}

func (e *Engine) sendShooting(on bool) {
	if e.intents == nil {
		return
	}
	if err := e.intents.SendInput(netclient.Input{Shooting: &on}); err != nil {
		e.log.Debug().Err(err).Bool("shooting", on).Msg("input not sent")
	}
}

func (e *Engine) spawnMuzzle(ownerID string, x, y float64) {
	mx, my, dir := e.muzzlePoint(ownerID, x, y)
	e.muzzle.Spawn(mx, my, dir)
}

// muzzlePoint anchors the burst to the shooter's interpolated bird, falling
// back to (x, y) facing right for shooters without a pose.
func (e *Engine) muzzlePoint(ownerID string, x, y float64) (mx, my, dir float64) {
	angle := 0.0
	if pose, ok := e.interp.Pose(ownerID); ok && ownerID != "" {
		x, y, angle = pose.X, pose.Y, pose.Angle
	}
	dir = facing(angle)
	half := e.game.BirdSize() * 0.5
	mx = x + half + muzzleAhead
	if dir < 0 {
		mx = x + half + muzzleBehind
	}
	return mx, y + half + muzzleDrop, dir
}

// facing is +1 for a bird pointing right, -1 for left.
func facing(angle float64) float64 {
	if math.Cos(angle) < 0 {
		return -1
	}
	return 1
}
