package bullets

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"flappy-client/internal/config"
	"flappy-client/internal/events"
	"flappy-client/internal/interp"
	"flappy-client/internal/render"
	"flappy-client/internal/world"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("local-%d", n)
	}
}

func testSim(opts Options) *Simulator {
	if opts.Speed == 0 {
		opts.Speed = 10
	}
	if opts.Range == 0 {
		opts.Range = 300
	}
	if opts.NewID == nil {
		opts.NewID = sequentialIDs()
	}
	return New(opts)
}

// TestRangeExpiryExactTick tests removal on the tick the range is reached
func TestRangeExpiryExactTick(t *testing.T) {
	s := testSim(Options{})
	if _, ok := s.TryFire(0, "me", interp.Pose{}); !ok {
		t.Fatal("Expected first shot to fire")
	}

	for tick := 1; tick <= 31; tick++ {
		s.Step(nil)
		alive := s.Len() == 1
		switch {
		case tick < 30 && !alive:
			t.Fatalf("Bullet removed early at tick %d", tick)
		case tick >= 30 && alive:
			t.Fatalf("Bullet still alive at tick %d", tick)
		}
	}
	if st := s.Stats(); st.Expired != 1 {
		t.Errorf("Expected 1 expiry, got %d", st.Expired)
	}
}

// TestCooldown tests the fire cooldown gate
func TestCooldown(t *testing.T) {
	s := testSim(Options{CooldownMs: 120})
	if _, ok := s.TryFire(1000, "me", interp.Pose{}); !ok {
		t.Fatal("Expected first shot")
	}
	if _, ok := s.TryFire(1119, "me", interp.Pose{}); ok {
		t.Error("Expected shot inside cooldown to be refused")
	}
	if _, ok := s.TryFire(1120, "me", interp.Pose{}); !ok {
		t.Error("Expected shot after cooldown")
	}
	if _, ok := s.TryFire(2000, "me", interp.Pose{X: math.NaN()}); ok {
		t.Error("Expected shot from non-finite pose to be refused")
	}
}

// TestMuzzlePlacementAndSpread tests mouth offset and angular spread bounds
func TestMuzzlePlacementAndSpread(t *testing.T) {
	s := testSim(Options{BirdSize: 262.5, Speed: 18, Rand: rand.New(rand.NewSource(3))})
	pose := interp.Pose{X: 100, Y: 200, Angle: 0}
	b, ok := s.TryFire(0, "me", pose)
	if !ok {
		t.Fatal("Expected shot")
	}
	wantX := 100 + 262.5*0.48
	wantY := 200 + 262.5*0.21
	if math.Abs(b.X-wantX) > 1e-9 || math.Abs(b.Y-wantY) > 1e-9 {
		t.Errorf("Expected muzzle at (%v,%v), got (%v,%v)", wantX, wantY, b.X, b.Y)
	}
	angle := math.Atan2(b.VY, b.VX)
	if math.Abs(angle) > Spread/2+1e-9 {
		t.Errorf("Expected spread within ±%v, got %v", Spread/2, angle)
	}
	if speed := math.Hypot(b.VX, b.VY); math.Abs(speed-18) > 1e-9 {
		t.Errorf("Expected speed 18, got %v", speed)
	}
	if !b.Local || b.StartX != b.X {
		t.Errorf("Expected local bullet with origin at muzzle, got %+v", b)
	}
}

// TestObstacleCollisionLocalOnly tests that only local bullets hit pipes
func TestObstacleCollisionLocalOnly(t *testing.T) {
	s := testSim(Options{})
	pipe := []world.Obstacle{{X: 22, Y: -50, Width: 20, Height: 100}}

	s.TryFire(0, "me", interp.Pose{})
	s.AddRemote(world.Bullet{ID: "r1", OwnerID: "bot", VX: 10})

	s.Step(pipe)
	s.Step(pipe)
	if _, ok := s.Get("local-1"); ok {
		t.Error("Expected local bullet to be stopped by the pipe")
	}
	if _, ok := s.Get("r1"); !ok {
		t.Error("Expected remote bullet to pass through the pipe")
	}
	if st := s.Stats(); st.Collided != 1 {
		t.Errorf("Expected 1 collision, got %d", st.Collided)
	}
}

// TestCapacityEvictsOldest tests oldest-first eviction at the cap
func TestCapacityEvictsOldest(t *testing.T) {
	s := testSim(Options{Capacity: 3})
	for i := 1; i <= 4; i++ {
		s.AddRemote(world.Bullet{ID: fmt.Sprintf("r%d", i), VX: 1})
	}
	if s.Len() != 3 {
		t.Fatalf("Expected 3 bullets, got %d", s.Len())
	}
	if _, ok := s.Get("r1"); ok {
		t.Error("Expected oldest bullet r1 to be evicted")
	}
	if _, ok := s.Get("r4"); !ok {
		t.Error("Expected newest bullet r4 to be present")
	}
	if s.Allocated() != 3 {
		t.Errorf("Expected slot reuse, got %d allocated", s.Allocated())
	}
}

// TestReconcile tests adding, skipping own and removing remote bullets
func TestReconcile(t *testing.T) {
	s := testSim(Options{})
	s.TryFire(0, "me", interp.Pose{})

	s.Reconcile("me", map[string]world.Bullet{
		"a":    {OwnerID: "bot", X: 1, VX: 1},
		"b":    {ID: "b", OwnerID: "bot", VX: 1},
		"mine": {ID: "mine", OwnerID: "me", VX: 1},
	})
	if s.Len() != 3 {
		t.Fatalf("Expected local + 2 remote, got %d", s.Len())
	}
	if _, ok := s.Get("mine"); ok {
		t.Error("Expected own server bullet to be skipped")
	}

	s.Reconcile("me", map[string]world.Bullet{"b": {ID: "b", OwnerID: "bot", VX: 1}})
	if _, ok := s.Get("a"); ok {
		t.Error("Expected bullet missing from the server to be removed")
	}
	if _, ok := s.Get("local-1"); !ok {
		t.Error("Expected local bullet to survive reconciliation")
	}
}

// TestReconcileKeepsExpiredRetired tests that a locally expired remote
// bullet is not resurrected while the server still lists it
func TestReconcileKeepsExpiredRetired(t *testing.T) {
	s := testSim(Options{Range: 20})
	listed := map[string]world.Bullet{"r": {ID: "r", OwnerID: "bot", VX: 10}}

	s.Reconcile("me", listed)
	s.Step(nil)
	s.Step(nil)
	if s.Len() != 0 {
		t.Fatalf("Expected remote bullet to expire, got %d", s.Len())
	}

	s.Reconcile("me", listed)
	if s.Len() != 0 {
		t.Error("Expected expired bullet to stay retired while listed")
	}

	s.Reconcile("me", map[string]world.Bullet{})
	s.Reconcile("me", listed)
	if s.Len() != 1 {
		t.Errorf("Expected id to be reusable after the server dropped it, got %d", s.Len())
	}
}

// TestRemove tests explicit server removals
func TestRemove(t *testing.T) {
	s := testSim(Options{})
	s.AddRemote(world.Bullet{ID: "x", VX: 1})
	s.AddRemote(world.Bullet{ID: "y", VX: 1})
	if n := s.Remove("x", "nope"); n != 1 {
		t.Errorf("Expected 1 removal, got %d", n)
	}
	if s.AddRemote(world.Bullet{ID: "y", VX: 1}) {
		t.Error("Expected duplicate id to be ignored")
	}
	if s.AddRemote(world.Bullet{ID: "z", VX: math.Inf(1)}) {
		t.Error("Expected non-finite bullet to be rejected")
	}
}

// TestRemoveKeepsListedRetired tests that a removed remote bullet is not
// re-added by a snapshot that still lists it
func TestRemoveKeepsListedRetired(t *testing.T) {
	s := testSim(Options{})
	s.TryFire(0, "me", interp.Pose{})
	listed := map[string]world.Bullet{
		"r": {ID: "r", OwnerID: "bot", VX: 1},
		"q": {ID: "q", OwnerID: "bot", VX: 1},
	}
	s.Reconcile("me", listed)

	if n := s.Remove("r", "late", "local-1"); n != 2 {
		t.Fatalf("Expected 2 removals, got %d", n)
	}
	s.Reconcile("me", listed)
	if _, ok := s.Get("r"); ok {
		t.Error("Expected removed bullet to stay gone while listed")
	}
	if s.Len() != 1 {
		t.Errorf("Expected only q left, got %d", s.Len())
	}

	s.Reconcile("me", map[string]world.Bullet{"late": {ID: "late", OwnerID: "bot", VX: 1}})
	if _, ok := s.Get("late"); ok {
		t.Error("Expected a bullet removed before it was listed to be ignored")
	}

	s.Reconcile("me", map[string]world.Bullet{})
	s.Reconcile("me", listed)
	if s.Len() != 2 {
		t.Errorf("Expected ids reusable once the server dropped them, got %d", s.Len())
	}
}

// TestSetRuntime tests server tuning of range, speed and cooldown
func TestSetRuntime(t *testing.T) {
	tests := []struct {
		name     string
		runtime  Runtime
		steps    int
		alive    bool
		cooldown float64
	}{
		{"defaults", Runtime{}, 3, true, 0},
		{"short range", Runtime{Range: 50}, 3, false, 0},
		{"faster", Runtime{Speed: 30, Range: 50}, 2, false, 0},
		{"cooldown", Runtime{CooldownMs: 500}, 1, true, 500},
		{"non-finite ignored", Runtime{Range: math.NaN(), Speed: -1}, 3, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSim(Options{Speed: 18, Range: 310})
			s.SetRuntime(tt.runtime)
			b, ok := s.TryFire(0, "me", interp.Pose{})
			if !ok {
				t.Fatal("Expected shot to fire")
			}
			for i := 0; i < tt.steps; i++ {
				s.Step(nil)
			}
			if _, alive := s.Get(b.ID); alive != tt.alive {
				t.Errorf("Expected alive=%v after %d steps, got %v (options %+v)", tt.alive, tt.steps, alive, s.opts)
			}
			if tt.cooldown > 0 {
				if _, ok := s.TryFire(tt.cooldown-1, "me", interp.Pose{}); ok {
					t.Error("Expected server cooldown to gate the second shot")
				}
				if _, ok := s.TryFire(tt.cooldown, "me", interp.Pose{}); !ok {
					t.Error("Expected a shot once the server cooldown elapsed")
				}
			}
		})
	}
}

// TestShotEvent tests the fire notification and its suppression
func TestShotEvent(t *testing.T) {
	bus := events.NewBus()
	var shots []events.Shot
	events.Subscribe(bus, func(e events.Shot) { shots = append(shots, e) })

	s := testSim(Options{Bus: bus})
	s.TryFire(0, "me", interp.Pose{X: 5, Y: 6, Angle: 0.2})
	if len(shots) != 1 || !shots[0].Local || shots[0].OwnerID != "me" || shots[0].BulletID != "local-1" {
		t.Errorf("Unexpected shot events: %+v", shots)
	}

	quiet := testSim(Options{Bus: bus, QuietLocalShots: true})
	quiet.TryFire(0, "me", interp.Pose{})
	if len(shots) != 1 {
		t.Errorf("Expected quiet simulator not to publish, got %d events", len(shots))
	}
	if quiet.Len() != 1 {
		t.Error("Expected quiet simulator to still register the bullet")
	}
}

// TestOptionsFromConfig tests profile caps and quiet mode
func TestOptionsFromConfig(t *testing.T) {
	g := config.DefaultGame()
	tests := []struct {
		p     config.Profile
		cap   int
		quiet bool
	}{
		{config.ProfileDesktop, 120, false},
		{config.ProfileMobile, 64, false},
		{config.ProfileMobileLandscape, 40, true},
	}
	for _, tt := range tests {
		o := OptionsFromConfig(g, tt.p)
		if o.Capacity != tt.cap || o.QuietLocalShots != tt.quiet {
			t.Errorf("%s: expected cap %d quiet %v, got %d %v", tt.p, tt.cap, tt.quiet, o.Capacity, o.QuietLocalShots)
		}
	}
}

// TestRenderDrawsEveryBullet tests one streak per bullet
func TestRenderDrawsEveryBullet(t *testing.T) {
	s := testSim(Options{})
	s.AddRemote(world.Bullet{ID: "a", VX: 1})
	s.AddRemote(world.Bullet{ID: "b", VY: 1})
	surface := render.NewCountingSurface(10, 10)
	s.Render(surface)
	if surface.Lines != 2 {
		t.Errorf("Expected 2 lines, got %d", surface.Lines)
	}
}

// TestRenderOrderStable tests that bullets draw oldest first
func TestRenderOrderStable(t *testing.T) {
	s := testSim(Options{})
	want := []string{"k", "c", "x", "a", "m"}
	for _, id := range want {
		s.AddRemote(world.Bullet{ID: id, VX: 1})
	}
	for round := 0; round < 5; round++ {
		var got []string
		s.Range(func(b *Bullet) { got = append(got, b.ID) })
		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Fatalf("Expected firing order %v, got %v", want, got)
		}
	}
}

// TestKsuidDefaultIDs tests generated ids for local bullets
func TestKsuidDefaultIDs(t *testing.T) {
	s := New(Options{Speed: 1, Range: 10})
	a, _ := s.TryFire(0, "me", interp.Pose{})
	b, _ := s.TryFire(1000, "me", interp.Pose{})
	if a.ID == b.ID || len(a.ID) <= len("local_") {
		t.Errorf("Expected distinct generated ids, got %q and %q", a.ID, b.ID)
	}
}
