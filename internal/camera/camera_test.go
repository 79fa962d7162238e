package camera

import (
	"math"
	"testing"

	"flappy-client/internal/config"
	"flappy-client/internal/interp"
	"flappy-client/internal/world"
)

func testOptions() Options {
	return Options{
		WorldWidth:  2000,
		WorldHeight: 2000,
		ViewWidth:   800,
		ViewHeight:  400,
		PlayerSize:  25,
		BaseZoom:    1,
	}
}

// TestNewStartsCentered tests the initial camera position
func TestNewStartsCentered(t *testing.T) {
	c := New(testOptions())
	x, y := c.Position()
	if x != 600 || y != 800 {
		t.Errorf("Expected (600,800), got (%v,%v)", x, y)
	}
}

// TestCenterMode tests snapping without smoothing
func TestCenterMode(t *testing.T) {
	c := New(testOptions())
	c.Update(Input{Mode: ModeOverride, Override: Override{X: 100, Y: 100, Lerp: 0.6}})
	c.Update(Input{Mode: ModeCenter})
	x, y := c.Position()
	if x != 600 || y != 800 {
		t.Errorf("Expected snap to (600,800), got (%v,%v)", x, y)
	}
}

// TestSetWorld tests that center and ground follow new world dimensions
func TestSetWorld(t *testing.T) {
	c := New(testOptions())
	c.SetWorld(1000, 0, math.NaN())
	c.Update(Input{Mode: ModeCenter})
	x, y := c.Position()
	if x != 100 || y != 800 {
		t.Errorf("Expected (100,800) after width change, got (%v,%v)", x, y)
	}

	c.SetWorld(0, 1000, 50)
	c.Update(Input{
		SelfID:   "me",
		Entities: map[string]world.Entity{"me": {OnGround: true}},
		Poses:    map[string]interp.Pose{"me": {X: 500, Y: 900}},
	})
	groundY := world.GroundY(1000, 50)
	if _, y := c.Position(); y != groundY-200 {
		t.Errorf("Expected ground snap at %v, got %v", groundY-200, y)
	}
}

// TestFollowLerp tests exponential smoothing toward the local player
func TestFollowLerp(t *testing.T) {
	c := New(testOptions())
	in := Input{
		SelfID:   "me",
		Entities: map[string]world.Entity{"me": {ID: "me", X: 1400, Y: 1000, Alive: true}},
		Poses:    map[string]interp.Pose{"me": {X: 1400, Y: 1000}},
	}
	c.Update(in)

	x, y := c.Position()
	wantX := 600 + (1000-600)*FollowLerp
	wantY := 800 + (800-800)*FollowLerp
	if math.Abs(x-wantX) > 1e-9 || math.Abs(y-wantY) > 1e-9 {
		t.Errorf("Expected (%v,%v), got (%v,%v)", wantX, wantY, x, y)
	}
}

// TestFollowGroundSnap tests the immediate vertical snap when grounded
func TestFollowGroundSnap(t *testing.T) {
	groundY := world.GroundY(2000, 25)
	tests := []struct {
		name string
		ent  world.Entity
	}{
		{"onGround flag", world.Entity{Y: 1500, OnGround: true}},
		{"position at ground", world.Entity{Y: groundY - 0.4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(testOptions())
			c.Update(Input{
				SelfID:   "me",
				Entities: map[string]world.Entity{"me": tt.ent},
				Poses:    map[string]interp.Pose{"me": {X: 1000, Y: tt.ent.Y}},
			})
			if _, y := c.Position(); y != groundY-200 {
				t.Errorf("Expected y snapped to %v, got %v", groundY-200, y)
			}
		})
	}
}

// TestFollowClampsBelowGround tests that the target never goes past the ground line
func TestFollowClampsBelowGround(t *testing.T) {
	c := New(testOptions())
	groundY := world.GroundY(2000, 25)
	for i := 0; i < 200; i++ {
		c.Update(Input{
			SelfID:   "me",
			Entities: map[string]world.Entity{},
			Poses:    map[string]interp.Pose{"me": {X: 1000, Y: 1900}},
		})
	}
	if _, y := c.Position(); y > groundY-200+1e-6 {
		t.Errorf("Expected camera y <= %v, got %v", groundY-200, y)
	}
}

// TestSpectatePicksAliveOther tests target selection and re-selection
func TestSpectatePicksAliveOther(t *testing.T) {
	c := New(testOptions())
	ents := map[string]world.Entity{
		"me": {ID: "me", Alive: true, X: 0, Y: 0},
		"b":  {ID: "b", Alive: true, X: 1000, Y: 1000},
		"c":  {ID: "c", Alive: false, X: 50, Y: 50},
	}
	c.Update(Input{Mode: ModeSpectate, SelfID: "me", Entities: ents})
	if c.SpectateTarget() != "b" {
		t.Fatalf("Expected spectate target b, got %q", c.SpectateTarget())
	}

	ents["b"] = world.Entity{ID: "b", Alive: false}
	ents["d"] = world.Entity{ID: "d", Alive: true, X: 10, Y: 10}
	c.Update(Input{Mode: ModeSpectate, SelfID: "me", Entities: ents})
	if c.SpectateTarget() != "d" {
		t.Errorf("Expected re-selection to d, got %q", c.SpectateTarget())
	}

	c.Update(Input{Mode: ModeFollowPlayer, SelfID: "me", Entities: ents})
	if c.SpectateTarget() != "" {
		t.Error("Expected spectate target cleared outside spectate mode")
	}
}

// TestSpectateNoCandidates tests falling back to center
func TestSpectateNoCandidates(t *testing.T) {
	c := New(testOptions())
	c.Update(Input{Mode: ModeSpectate, SelfID: "me", Entities: map[string]world.Entity{"me": {Alive: true}}})
	if x, y := c.Position(); x != 600 || y != 800 {
		t.Errorf("Expected center, got (%v,%v)", x, y)
	}
}

// TestOverrideClamps tests lerp and zoom clamping
func TestOverrideClamps(t *testing.T) {
	c := New(testOptions())
	c.Update(Input{Mode: ModeOverride, Override: Override{X: 1000, Y: 1000, Zoom: 5, Lerp: 10}})

	if c.Zoom() != MaxOverrideZoom {
		t.Errorf("Expected zoom clamped to %v, got %v", MaxOverrideZoom, c.Zoom())
	}
	viewW, viewH := c.ViewSize()
	targetX := 1000 - viewW/2
	x, _ := c.Position()
	wantX := 600 + (targetX-600)*MaxOverrideLerp
	if math.Abs(x-wantX) > 1e-9 {
		t.Errorf("Expected lerp clamped to %v (x=%v), got x=%v", MaxOverrideLerp, wantX, x)
	}
	_ = viewH

	c.Update(Input{Mode: ModeOverride, Override: Override{X: 1000, Y: 1000, Zoom: 0.1}})
	if c.Zoom() != MinOverrideZoom {
		t.Errorf("Expected zoom clamped to %v, got %v", MinOverrideZoom, c.Zoom())
	}
}

// TestNonFiniteResets tests the fail-safe reset to center
func TestNonFiniteResets(t *testing.T) {
	c := New(testOptions())
	c.Update(Input{
		SelfID: "me",
		Poses:  map[string]interp.Pose{"me": {X: math.Inf(1), Y: 100}},
	})
	if x, y := c.Position(); x != 600 || y != 800 {
		t.Errorf("Expected reset to center, got (%v,%v)", x, y)
	}
	if !c.Renderable() {
		t.Error("Expected camera to be renderable after reset")
	}
}

// TestRenderableZeroViewport tests the zero viewport guard
func TestRenderableZeroViewport(t *testing.T) {
	c := New(testOptions())
	c.SetViewport(0, 400)
	if c.Renderable() {
		t.Error("Expected zero-width viewport to be unrenderable")
	}
}

// TestBaseZoomFor tests profile zoom factors
func TestBaseZoomFor(t *testing.T) {
	if z := BaseZoomFor(config.ProfileDesktop, 1280, 720); z != DefaultBaseZoom {
		t.Errorf("Expected desktop zoom %v, got %v", DefaultBaseZoom, z)
	}
	if z := BaseZoomFor(config.ProfileMobileLandscape, 800, 400); math.Abs(z-0.44) > 1e-9 {
		t.Errorf("Expected landscape zoom 0.44, got %v", z)
	}
	if z := BaseZoomFor(config.ProfileMobile, 400, 800); math.Abs(z-0.41) > 1e-9 {
		t.Errorf("Expected portrait zoom 0.41, got %v", z)
	}
}
