package audio

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"flappy-client/internal/config"
	"flappy-client/internal/world"
)

var base = time.Unix(1_700_000_000, 0)

func at(ms int) time.Time { return base.Add(time.Duration(ms) * time.Millisecond) }

type call struct {
	op     string
	clip   Clip
	w      Window
	volume float64
	voice  Voice
	fade   time.Duration
}

// fakeBackend records every request. When locked, plays fail with
// ErrLocked until Resume. When block is set, StartLoop waits on it.
type fakeBackend struct {
	mu     sync.Mutex
	calls  []call
	locked bool
	block  chan struct{}
	next   Voice
	loops  map[Voice]float64
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{loops: make(map[Voice]float64)}
}

func (f *fakeBackend) Resume(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locked = false
	f.calls = append(f.calls, call{op: "resume"})
	return nil
}

func (f *fakeBackend) Play(_ context.Context, clip Clip, w Window, volume float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locked {
		return ErrLocked
	}
	f.calls = append(f.calls, call{op: "play", clip: clip, w: w, volume: volume})
	return nil
}

func (f *fakeBackend) StartLoop(_ context.Context, clip Clip, w Window, volume float64) (Voice, error) {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locked {
		return 0, ErrLocked
	}
	f.next++
	f.loops[f.next] = volume
	f.calls = append(f.calls, call{op: "loop", clip: clip, w: w, volume: volume, voice: f.next})
	return f.next, nil
}

func (f *fakeBackend) SetVolume(v Voice, volume float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.loops[v]; ok {
		f.loops[v] = volume
	}
	f.calls = append(f.calls, call{op: "volume", voice: v, volume: volume})
}

func (f *fakeBackend) StopLoop(v Voice, fade time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.loops, v)
	f.calls = append(f.calls, call{op: "stop", voice: v, fade: fade})
}

func (f *fakeBackend) ops(op string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeBackend) activeLoops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.loops)
}

func newTestDispatcher(t *testing.T, p config.Profile) (*Dispatcher, *fakeBackend) {
	t.Helper()
	fb := newFakeBackend()
	d := NewDispatcher(Options{Profile: p, Backend: fb, Workers: 1, Queue: 256})
	d.SetListener("me", 0, 0, true)
	t.Cleanup(d.Close)
	return d, fb
}

// TestKindVolume tests the per-kind floors
func TestKindVolume(t *testing.T) {
	tests := []struct {
		kind Kind
		v    float64
		want float64
	}{
		{KindShot, 0, 0.15},
		{KindShot, 1, 1},
		{KindHit, 0.5, 0.6},
		{KindPickup, 0, 0.25},
		{KindDeath, 0, 0.55},
		{KindDeath, 0.5, 0.725},
		{KindDeath, 1, 1},
	}
	for _, tt := range tests {
		if got := tt.kind.Volume(tt.v); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s.Volume(%v): expected %v, got %v", tt.kind, tt.v, tt.want, got)
		}
	}
	if got := Falloff(1200, ShotRadius); got != 0.5 {
		t.Errorf("Expected falloff 0.5, got %v", got)
	}
	if got := Falloff(5000, ShotRadius); got != 0 {
		t.Errorf("Expected falloff clamped to 0, got %v", got)
	}
}

// TestRemoteLoopVolume tests the loop level clamp
func TestRemoteLoopVolume(t *testing.T) {
	if got := RemoteLoopVolume(0); got != 0.65 {
		t.Errorf("Expected 0.65 close up, got %v", got)
	}
	if got := RemoteLoopVolume(2390); got != 0.04 {
		t.Errorf("Expected 0.04 floor, got %v", got)
	}
	if got := RemoteLoopVolume(1200); got != 0.5 {
		t.Errorf("Expected 0.5 at half range, got %v", got)
	}
}

// TestShooterCadence tests 100 shots in one second from one shooter
func TestShooterCadence(t *testing.T) {
	d, fb := newTestDispatcher(t, config.ProfileDesktop)

	played := 0
	for i := 0; i < 100; i++ {
		r := d.Trigger(at(i*10), Trigger{Kind: KindShot, X: 100, SourceID: "bot"})
		if r == ResultPlayed {
			played++
		} else if r != ResultRateLimited {
			t.Fatalf("Unexpected result %s at trigger %d", r, i)
		}
	}
	d.Flush()

	expectedByCadence := int(time.Second/(time.Second/14)) + 1
	if played > expectedByCadence || played > DesktopCap {
		t.Errorf("Expected at most %d plays, got %d", min(DesktopCap, expectedByCadence), played)
	}
	if played != 13 {
		t.Errorf("Expected 13 plays at 10ms spacing, got %d", played)
	}
	if n := len(fb.ops("play")); n != played {
		t.Errorf("Expected %d backend plays, got %d", played, n)
	}
}

// TestGlobalCap tests the fixed one-second window across shooters
func TestGlobalCap(t *testing.T) {
	tests := []struct {
		profile config.Profile
		cap     int
	}{
		{config.ProfileDesktop, DesktopCap},
		{config.ProfileMobile, TouchCap},
		{config.ProfileMobileLandscape, TouchCap},
	}
	for _, tt := range tests {
		t.Run(string(tt.profile), func(t *testing.T) {
			d, _ := newTestDispatcher(t, tt.profile)
			played := 0
			for i := 0; i < 60; i++ {
				shooter := fmt.Sprintf("s%d", i)
				if d.Trigger(at(i*5), Trigger{Kind: KindShot, X: 10, SourceID: shooter}) == ResultPlayed {
					played++
				}
			}
			if played != tt.cap {
				t.Errorf("Expected %d plays, got %d", tt.cap, played)
			}
			if r := d.Trigger(at(1000), Trigger{Kind: KindShot, X: 10, SourceID: "late"}); r != ResultPlayed {
				t.Errorf("Expected new window to allow a play, got %s", r)
			}
		})
	}
}

// TestHearingGates tests distance cutoffs and the missing listener
func TestHearingGates(t *testing.T) {
	d, _ := newTestDispatcher(t, config.ProfileDesktop)

	if r := d.Trigger(at(0), Trigger{Kind: KindShot, X: 2500, SourceID: "a"}); r != ResultOutOfRange {
		t.Errorf("Expected shot beyond 2400 out of range, got %s", r)
	}
	if r := d.Trigger(at(0), Trigger{Kind: KindPickup, X: 4000}); r != ResultPlayed {
		t.Errorf("Expected pickup at 4000 to play, got %s", r)
	}
	if r := d.Trigger(at(0), Trigger{Kind: KindHit, X: math.NaN()}); r != ResultInvalid {
		t.Errorf("Expected non-finite hit invalid, got %s", r)
	}

	d.SetListener("", 0, 0, false)
	if r := d.Trigger(at(100), Trigger{Kind: KindHit, X: 10}); r != ResultNoListener {
		t.Errorf("Expected hit without listener dropped, got %s", r)
	}
	if r := d.Trigger(at(100), Trigger{Kind: KindDeath, X: 9000, Y: 9000, PlayerID: "p", Tick: 5}); r != ResultPlayed {
		t.Errorf("Expected death without listener to play, got %s", r)
	}
}

// TestPickupGate tests the 30ms pickup interval
func TestPickupGate(t *testing.T) {
	d, _ := newTestDispatcher(t, config.ProfileDesktop)
	want := []struct {
		ms   int
		want Result
	}{
		{0, ResultPlayed},
		{10, ResultRateLimited},
		{29, ResultRateLimited},
		{30, ResultPlayed},
	}
	for _, w := range want {
		if r := d.Trigger(at(w.ms), Trigger{Kind: KindPickup, X: 1}); r != w.want {
			t.Errorf("Pickup at %dms: expected %s, got %s", w.ms, w.want, r)
		}
	}
}

// TestDeathDedup tests suppression of relayed duplicate deaths
func TestDeathDedup(t *testing.T) {
	d, _ := newTestDispatcher(t, config.ProfileDesktop)
	death := Trigger{Kind: KindDeath, X: 10, Y: 20, PlayerID: "p1", Tick: 42}

	if r := d.Trigger(at(0), death); r != ResultPlayed {
		t.Fatalf("Expected first death to play, got %s", r)
	}
	if r := d.Trigger(at(50), death); r != ResultDuplicate {
		t.Errorf("Expected duplicate, got %s", r)
	}
	anon := Trigger{Kind: KindDeath, X: 10.4, Y: 19.6, Tick: 42}
	if r := d.Trigger(at(60), anon); r != ResultPlayed {
		t.Errorf("Expected position-keyed death to play, got %s", r)
	}
	anon.X, anon.Y = 9.8, 20.2
	if r := d.Trigger(at(70), anon); r != ResultDuplicate {
		t.Errorf("Expected rounded position duplicate, got %s", r)
	}
	if r := d.Trigger(at(9000), death); r != ResultPlayed {
		t.Errorf("Expected key to expire after the ttl, got %s", r)
	}
}

// TestDedupPrune tests that expired keys are swept past the size limit
func TestDedupPrune(t *testing.T) {
	dd := NewDedup(DedupTTL)
	for i := 0; i < DedupPruneAt; i++ {
		dd.Seen(DeathKey("", float64(i), 0, 1), at(0))
	}
	dd.Seen("fresh", at(10_000))
	if dd.Len() != 1 {
		t.Errorf("Expected only the fresh key after prune, got %d", dd.Len())
	}
	if got := DeathKey("", 1.5, -2.4, 9); got != "2:-2:9" {
		t.Errorf("Expected key 2:-2:9, got %s", got)
	}
}

// TestVolumeReachesBackend tests falloff volume and the landscape flat level
func TestVolumeReachesBackend(t *testing.T) {
	d, fb := newTestDispatcher(t, config.ProfileDesktop)
	d.Trigger(at(0), Trigger{Kind: KindHit, X: 1200})
	d.Flush()
	plays := fb.ops("play")
	if len(plays) != 1 || plays[0].clip != ClipHit || math.Abs(plays[0].volume-0.6) > 1e-9 {
		t.Errorf("Expected hit at 0.6, got %+v", plays)
	}

	ld, lfb := newTestDispatcher(t, config.ProfileMobileLandscape)
	ld.Trigger(at(0), Trigger{Kind: KindShot, X: 10, SourceID: "bot"})
	ld.Flush()
	if plays := lfb.ops("play"); len(plays) != 1 || plays[0].volume != LandscapeShotVolume {
		t.Errorf("Expected flat landscape shot volume, got %+v", plays)
	}
}

// TestRetryOnUnlock tests that failed plays resolve quietly and replay on unlock
func TestRetryOnUnlock(t *testing.T) {
	d, fb := newTestDispatcher(t, config.ProfileDesktop)
	fb.locked = true

	if r := d.Trigger(at(0), Trigger{Kind: KindHit, X: 5}); r != ResultPlayed {
		t.Fatalf("Expected dispatch, got %s", r)
	}
	d.Flush()
	st := d.Stats()
	if st.Failed != 1 || st.Pending != 1 {
		t.Fatalf("Expected 1 failed and pending play, got %+v", st)
	}

	task := d.Unlock(at(100))
	if !task.Wait() {
		t.Fatalf("Expected unlock to succeed, got %v", task.Err())
	}
	d.Flush()

	st = d.Stats()
	if st.Pending != 0 || st.Retried != 1 || !st.Unlocked {
		t.Errorf("Expected retried play, got %+v", st)
	}
	if n := len(fb.ops("play")); n != 1 {
		t.Errorf("Expected 1 backend play after unlock, got %d", n)
	}
}

// TestRetrySkipsStalePlays tests that old failures are not replayed
func TestRetrySkipsStalePlays(t *testing.T) {
	d, fb := newTestDispatcher(t, config.ProfileDesktop)
	fb.locked = true
	d.Trigger(at(0), Trigger{Kind: KindHit, X: 5})
	d.Flush()

	d.Unlock(at(5000)).Wait()
	d.Flush()
	if n := len(fb.ops("play")); n != 0 {
		t.Errorf("Expected stale play dropped, got %d plays", n)
	}
}

// TestFireLoopPhases tests start segment, loop and tail
func TestFireLoopPhases(t *testing.T) {
	d, fb := newTestDispatcher(t, config.ProfileMobile)

	if task := d.StartFire(); task == nil || !task.Wait() {
		t.Fatal("Expected fire loop to start")
	}
	if d.StartFire() != nil {
		t.Error("Expected second StartFire to be a no-op")
	}
	plays, loops := fb.ops("play"), fb.ops("loop")
	if len(plays) != 1 || plays[0].w != FireStartWindow {
		t.Errorf("Expected start segment, got %+v", plays)
	}
	if len(loops) != 1 || loops[0].w != FireLoopWindow {
		t.Errorf("Expected loop window, got %+v", loops)
	}

	if r := d.Trigger(at(0), Trigger{Kind: KindShot, X: 1, SourceID: "me"}); r != ResultLooping {
		t.Errorf("Expected own shot covered by the loop, got %s", r)
	}

	if task := d.StopFire(); task == nil || !task.Wait() {
		t.Fatal("Expected tail to play")
	}
	stops := fb.ops("stop")
	if len(stops) != 1 || stops[0].fade != LocalLoopFade {
		t.Errorf("Expected faded stop, got %+v", stops)
	}
	plays = fb.ops("play")
	if len(plays) != 2 || plays[1].w != FireEndWindow {
		t.Errorf("Expected tail segment, got %+v", plays)
	}
	if d.Firing() || fb.activeLoops() != 0 {
		t.Error("Expected no loop after stop")
	}
}

// TestStaleLoopCompletion tests that a loop started after StopFire is discarded
func TestStaleLoopCompletion(t *testing.T) {
	d, fb := newTestDispatcher(t, config.ProfileMobile)
	release := make(chan struct{})
	fb.block = release

	start := d.StartFire()
	d.StopFire()
	close(release)

	if !start.Wait() {
		t.Fatalf("Expected start task to complete, got %v", start.Err())
	}
	d.Flush()

	if fb.activeLoops() != 0 {
		t.Errorf("Expected stale loop to be stopped, %d running", fb.activeLoops())
	}
	stops := fb.ops("stop")
	if len(stops) != 1 || stops[0].fade != 0 {
		t.Errorf("Expected one immediate stop, got %+v", stops)
	}
	if d.Firing() {
		t.Error("Expected fire state to stay stopped")
	}
}

// TestSyncRemote tests loop set reconciliation against audible shooters
func TestSyncRemote(t *testing.T) {
	d, fb := newTestDispatcher(t, config.ProfileDesktop)

	shooters := []Shooter{
		{ID: "a", X: 1200, Alive: true, Shooting: true},
		{ID: "far", X: 3000, Alive: true, Shooting: true},
		{ID: "dead", X: 10, Alive: false, Shooting: true},
		{ID: "me", X: 0, Alive: true, Shooting: true},
	}
	if !d.SyncRemote(at(0), shooters) {
		t.Fatal("Expected first sync to run")
	}
	d.Flush()
	if ids := d.RemoteLoops(); len(ids) != 1 || ids[0] != "a" {
		t.Fatalf("Expected loop for a only, got %v", ids)
	}
	loops := fb.ops("loop")
	if len(loops) != 1 || math.Abs(loops[0].volume-0.5*FireBusGain) > 1e-9 {
		t.Errorf("Expected loop at half volume, got %+v", loops)
	}

	if d.SyncRemote(at(50), shooters) {
		t.Error("Expected sync inside 90ms to be skipped")
	}

	if r := d.Trigger(at(60), Trigger{Kind: KindShot, X: 1200, SourceID: "a"}); r != ResultLooping {
		t.Errorf("Expected shot event covered by remote loop, got %s", r)
	}

	shooters[0].X = 600
	d.SyncRemote(at(100), shooters)
	vols := fb.ops("volume")
	if len(vols) != 1 || math.Abs(vols[0].volume-0.65*FireBusGain) > 1e-9 {
		t.Errorf("Expected retune to the 0.65 ceiling, got %+v", vols)
	}

	shooters[0].Shooting = false
	d.SyncRemote(at(200), shooters)
	if ids := d.RemoteLoops(); len(ids) != 0 {
		t.Errorf("Expected loop stopped, got %v", ids)
	}
	if stops := fb.ops("stop"); len(stops) != 1 || stops[0].fade != RemoteLoopFade {
		t.Errorf("Expected faded remote stop, got %+v", stops)
	}
}

// TestDeathStopsLoops tests that a death ends the victim's loop
func TestDeathStopsLoops(t *testing.T) {
	d, fb := newTestDispatcher(t, config.ProfileDesktop)
	d.SyncRemote(at(0), []Shooter{{ID: "bot", X: 100, Alive: true, Shooting: true}})
	d.Flush()
	d.StartFire().Wait()

	d.Trigger(at(10), Trigger{Kind: KindDeath, X: 100, PlayerID: "bot", Tick: 1})
	if len(d.RemoteLoops()) != 0 {
		t.Error("Expected remote loop stopped on death")
	}
	d.Trigger(at(20), Trigger{Kind: KindDeath, X: 0, PlayerID: "me", Tick: 2})
	if d.Firing() {
		t.Error("Expected local loop stopped on own death")
	}
	d.Flush()
	if fb.activeLoops() != 0 {
		t.Errorf("Expected no running loops, got %d", fb.activeLoops())
	}
}

// TestShootersFrom tests extraction of firing entities
func TestShootersFrom(t *testing.T) {
	got := ShootersFrom(map[string]world.Entity{
		"b": {X: 1, Alive: true, Shooting: true},
		"a": {X: 2, Alive: true, Shooting: true},
		"c": {X: 3, Alive: true},
	})
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("Expected shooters a,b, got %+v", got)
	}
}

// TestQueueFull tests that a saturated worker queue does not block
func TestQueueFull(t *testing.T) {
	fb := newFakeBackend()
	release := make(chan struct{})
	fb.block = release
	d := NewDispatcher(Options{Backend: fb, Workers: 1, Queue: 1})
	d.SetListener("me", 0, 0, true)
	defer d.Close()
	defer close(release)

	d.StartFire()
	results := map[Result]int{}
	for i := 0; i < 5; i++ {
		results[d.Trigger(at(i*40), Trigger{Kind: KindHit, X: 1})]++
	}
	if results[ResultFailed] == 0 {
		t.Errorf("Expected some triggers to fail fast, got %v", results)
	}
}
