package audio

import (
	"context"
	"sort"
	"time"

	"flappy-client/internal/world"
)

// RemoteSyncInterval is the minimum gap between remote loop syncs.
const RemoteSyncInterval = 90 * time.Millisecond

// fireLoop is the local sustained-fire state: start segment, then a
// looping middle, then the tail once fire stops.
type fireLoop struct {
	gen      uint64
	active   bool
	voice    Voice
	hasVoice bool
}

// remoteLoop is one audible remote shooter's loop.
type remoteLoop struct {
	gen      uint64
	voice    Voice
	hasVoice bool
	volume   float64
}

// Shooter is a remote entity considered for loop sync.
type Shooter struct {
	ID       string
	X, Y     float64
	Alive    bool
	Shooting bool
}

// ShootersFrom lists entities that may be heard firing.
func ShootersFrom(entities map[string]world.Entity) []Shooter {
	out := make([]Shooter, 0, len(entities))
	for id, e := range entities {
		if !e.Shooting {
			continue
		}
		out = append(out, Shooter{ID: id, X: e.X, Y: e.Y, Alive: e.Alive, Shooting: true})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// StartFire begins the local sustained-fire loop. It returns nil when the
// loop is already running.
func (d *Dispatcher) StartFire() *Task {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed || d.fire.active {
		return nil
	}
	d.fire.gen++
	d.fire.active = true
	gen := d.fire.gen

	return d.runner.submit(gen, func(ctx context.Context) error {
		if err := d.backend.Play(ctx, ClipShot, FireStartWindow, FireBusGain); err != nil {
			return err
		}
		v, err := d.backend.StartLoop(ctx, ClipShot, FireLoopWindow, FireBusGain)
		if err != nil {
			return err
		}

		d.mu.Lock()
		defer d.mu.Unlock()
		if d.fire.gen != gen || !d.fire.active {
			d.backend.StopLoop(v, 0)
			return nil
		}
		d.fire.voice = v
		d.fire.hasVoice = true
		return nil
	}, func(err error) {
		if err == nil {
			return
		}
		d.mu.Lock()
		if d.fire.gen == gen {
			d.fire.active = false
		}
		d.stats.Failed++
		d.mu.Unlock()
		d.log.Debug().Err(err).Msg("fire loop did not start")
	})
}

// StopFire fades the local loop and plays the tail. It returns nil when
// no loop was running.
func (d *Dispatcher) StopFire() *Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopFireLocked()
}

func (d *Dispatcher) stopFireLocked() *Task {
	if !d.fire.active {
		return nil
	}
	d.fire.gen++
	d.fire.active = false
	if d.fire.hasVoice {
		d.backend.StopLoop(d.fire.voice, LocalLoopFade)
		d.fire.hasVoice = false
	}
	if d.closed {
		return nil
	}
	return d.runner.submit(d.fire.gen, func(ctx context.Context) error {
		return d.backend.Play(ctx, ClipShot, FireEndWindow, FireBusGain)
	}, nil)
}

// Firing reports whether the local loop is active.
func (d *Dispatcher) Firing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fire.active
}

// SyncRemote starts loops for newly audible remote shooters, retunes the
// volume of running ones and stops the rest. Calls closer together than
// RemoteSyncInterval are ignored and return false.
func (d *Dispatcher) SyncRemote(now time.Time, shooters []Shooter) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}
	if !d.lastSync.IsZero() && now.Sub(d.lastSync) < RemoteSyncInterval && !now.Before(d.lastSync) {
		return false
	}
	d.lastSync = now

	heard := make(map[string]float64, len(shooters))
	if d.listener.ok {
		for _, s := range shooters {
			if !s.Alive || !s.Shooting || s.ID == "" || s.ID == d.listener.selfID {
				continue
			}
			if !world.Finite(s.X, s.Y) {
				continue
			}
			dist := world.Distance(d.listener.x, d.listener.y, s.X, s.Y)
			if dist > ShotRadius {
				continue
			}
			heard[s.ID] = RemoteLoopVolume(dist)
		}
	}

	for id, loop := range d.remote {
		if _, ok := heard[id]; !ok {
			d.stopRemoteLocked(id, loop)
		}
	}
	for id, vol := range heard {
		if loop, ok := d.remote[id]; ok {
			loop.volume = vol
			if loop.hasVoice {
				d.backend.SetVolume(loop.voice, vol*FireBusGain)
			}
			continue
		}
		d.startRemoteLocked(id, vol)
	}
	return true
}

// StopRemote stops one remote shooter's loop.
func (d *Dispatcher) StopRemote(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	loop, ok := d.remote[id]
	if ok {
		d.stopRemoteLocked(id, loop)
	}
	return ok
}

// RemoteLoops lists shooters with a running or starting loop.
func (d *Dispatcher) RemoteLoops() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, 0, len(d.remote))
	for id := range d.remote {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (d *Dispatcher) startRemoteLocked(id string, vol float64) {
	d.remoteGen++
	gen := d.remoteGen
	loop := &remoteLoop{gen: gen, volume: vol}
	d.remote[id] = loop

	d.runner.submit(gen, func(ctx context.Context) error {
		v, err := d.backend.StartLoop(ctx, ClipShot, FireLoopWindow, vol*FireBusGain)
		if err != nil {
			return err
		}

		d.mu.Lock()
		defer d.mu.Unlock()
		current, ok := d.remote[id]
		if !ok || current.gen != gen {
			d.backend.StopLoop(v, 0)
			return nil
		}
		current.voice = v
		current.hasVoice = true
		if current.volume != vol {
			d.backend.SetVolume(v, current.volume*FireBusGain)
		}
		return nil
	}, func(err error) {
		if err == nil {
			return
		}
		d.mu.Lock()
		if current, ok := d.remote[id]; ok && current.gen == gen {
			delete(d.remote, id)
		}
		d.stats.Failed++
		d.mu.Unlock()
	})
}

func (d *Dispatcher) stopRemoteLocked(id string, loop *remoteLoop) {
	if loop.hasVoice {
		d.backend.StopLoop(loop.voice, RemoteLoopFade)
	}
	delete(d.remote, id)
}
