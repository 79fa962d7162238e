package effects

import (
	"math"
	"math/rand"
	"testing"

	"flappy-client/internal/config"
	"flappy-client/internal/render"
)

func newRand() *rand.Rand { return rand.New(rand.NewSource(7)) }

// TestLimitsFor tests desktop and touch caps
func TestLimitsFor(t *testing.T) {
	d := LimitsFor(config.ProfileDesktop)
	m := LimitsFor(config.ProfileMobileLandscape)
	if d.Muzzle != 80 || d.Feather != 140 || d.BoostParticles != 120 || d.TrailNodes != 72 {
		t.Errorf("Unexpected desktop limits: %+v", d)
	}
	if m.Muzzle != 12 || m.Feather != 48 || m.BoostParticles != 48 || m.TrailNodes != 28 {
		t.Errorf("Unexpected touch limits: %+v", m)
	}
}

// TestMuzzleBurstSize tests per-profile burst counts
func TestMuzzleBurstSize(t *testing.T) {
	touch := NewMuzzle(config.ProfileMobile, newRand())
	if n := touch.Spawn(0, 0, 1); n != 2 {
		t.Errorf("Expected 2 touch particles, got %d", n)
	}

	desk := NewMuzzle(config.ProfileDesktop, newRand())
	for i := 0; i < 20; i++ {
		desk.Reset()
		if n := desk.Spawn(0, 0, 1); n < 6 || n > 9 {
			t.Fatalf("Expected 6-9 desktop particles, got %d", n)
		}
	}
}

// TestMuzzleCap tests refusal at the cap and the pool invariant
func TestMuzzleCap(t *testing.T) {
	m := NewMuzzle(config.ProfileDesktop, newRand())
	for i := 0; i < 50; i++ {
		m.Spawn(100, 100, 1)
	}
	if m.Len() != 80 {
		t.Errorf("Expected 80 active at cap, got %d", m.Len())
	}
	if m.Dropped() == 0 {
		t.Error("Expected refusals to be counted")
	}
	st := m.Stats()
	if st.Allocated != 80 {
		t.Errorf("Expected 80 allocated, got %d", st.Allocated)
	}
	if st.Cap != 80 {
		t.Errorf("Expected cap 80 reported, got %d", st.Cap)
	}
}

// TestMuzzleExpiry tests release of every particle after its lifetime
func TestMuzzleExpiry(t *testing.T) {
	m := NewMuzzle(config.ProfileDesktop, newRand())
	m.Spawn(0, 0, 1)
	m.Update(0.01)
	if m.Len() == 0 {
		t.Fatal("Expected particles alive after 10ms")
	}
	m.Update(0.5)
	if m.Len() != 0 {
		t.Errorf("Expected all particles expired, got %d", m.Len())
	}
	p := m.list.Pool()
	if p.Active() != 0 || p.Free() != p.Allocated() {
		t.Errorf("Expected all slots free, got active=%d free=%d allocated=%d", p.Active(), p.Free(), p.Allocated())
	}

	// reuse does not allocate
	before := p.Allocated()
	m.Spawn(0, 0, 1)
	if p.Allocated() > before+3 {
		t.Errorf("Expected recycled slots, allocated grew from %d to %d", before, p.Allocated())
	}
}

// TestMuzzleDirection tests that left-facing shooters spray left
func TestMuzzleDirection(t *testing.T) {
	m := NewMuzzle(config.ProfileMobile, newRand())
	m.Spawn(0, 0, -1)
	m.list.Range(func(p *muzzleParticle) {
		if p.vx >= 0 {
			t.Errorf("Expected negative vx, got %v", p.vx)
		}
	})
}

// TestFeatherBurst tests per-death counts, cap and expiry
func TestFeatherBurst(t *testing.T) {
	f := NewFeathers(config.ProfileDesktop, newRand(), nil)
	if n := f.Spawn(0, 0, ""); n != 14 {
		t.Errorf("Expected 14 feathers, got %d", n)
	}
	for i := 0; i < 20; i++ {
		f.Spawn(0, 0, "red")
	}
	if f.Len() != 140 {
		t.Errorf("Expected cap 140, got %d", f.Len())
	}
	f.Update(1.0)
	if f.Len() != 0 {
		t.Errorf("Expected all feathers expired after 1s, got %d", f.Len())
	}

	touch := NewFeathers(config.ProfileMobile, newRand(), nil)
	if n := touch.Spawn(0, 0, "blue"); n != 7 {
		t.Errorf("Expected 7 touch feathers, got %d", n)
	}
}

// TestFeatherFallback tests rendering without sprites
func TestFeatherFallback(t *testing.T) {
	f := NewFeathers(config.ProfileMobile, newRand(), nil)
	f.Spawn(0, 0, "teal")
	s := render.NewCountingSurface(100, 100)
	f.Render(s)
	if s.Rects != 7 || s.Images != 0 {
		t.Errorf("Expected 7 fallback squares, got rects=%d images=%d", s.Rects, s.Images)
	}
	if s.Depth() != 0 {
		t.Errorf("Expected balanced transforms, got depth %d", s.Depth())
	}
}

// TestTracerGeometry tests streak placement and lifetime
func TestTracerGeometry(t *testing.T) {
	tr := NewTracers(config.ProfileDesktop)
	tr.Spawn(10, 20, 0)

	var got tracer
	tr.list.Range(func(p *tracer) { got = *p })
	if got.x1 != 160 || got.x2 != 550 || got.y1 != 20 || got.y2 != 20 {
		t.Errorf("Unexpected tracer geometry: %+v", got)
	}

	tr.Update(0.1)
	if tr.Len() != 1 {
		t.Error("Expected tracer alive at 100ms")
	}
	tr.Update(0.1)
	if tr.Len() != 0 {
		t.Error("Expected tracer expired at 200ms")
	}
}

// TestTracerCap tests the tracer cap
func TestTracerCap(t *testing.T) {
	tr := NewTracers(config.ProfileDesktop)
	for i := 0; i < 100; i++ {
		tr.Spawn(0, 0, math.Pi/2)
	}
	if tr.Len() != 64 || tr.Dropped() != 36 {
		t.Errorf("Expected 64 active and 36 dropped, got %d/%d", tr.Len(), tr.Dropped())
	}
}

// TestExplosionLifetime tests the 900ms puff
func TestExplosionLifetime(t *testing.T) {
	e := NewExplosions(config.ProfileDesktop)
	e.Spawn(5, 5)
	e.Update(0.85)
	if e.Len() != 1 {
		t.Fatal("Expected explosion alive at 850ms")
	}

	s := render.NewCountingSurface(100, 100)
	e.Render(s)
	if s.Rects != 13 {
		t.Errorf("Expected 12 ring squares plus flash, got %d", s.Rects)
	}

	e.Update(0.1)
	if e.Len() != 0 {
		t.Error("Expected explosion expired at 900ms")
	}
}

// TestTrailDistanceGate tests distance-gated node sampling
func TestTrailDistanceGate(t *testing.T) {
	b := NewBoost(config.ProfileDesktop, newRand(), 25)

	b.Track("a", 0, 0, true)
	b.Track("a", 0, 0, true)
	b.Track("a", 10, 0, true)
	if n := b.TrailNodes("a"); n != 1 {
		t.Fatalf("Expected 1 node before moving 16, got %d", n)
	}
	b.Track("a", 16, 0, true)
	if n := b.TrailNodes("a"); n != 2 {
		t.Errorf("Expected 2 nodes after moving 16, got %d", n)
	}

	b.Track("idle", 0, 0, false)
	if b.Trails() != 1 {
		t.Errorf("Expected no trail for a non-boosting entity, got %d trails", b.Trails())
	}
}

// TestTrailCapRecyclesOldest tests the per-entity node cap
func TestTrailCapRecyclesOldest(t *testing.T) {
	b := NewBoost(config.ProfileMobile, newRand(), 25)
	for i := 0; i < 100; i++ {
		b.Track("a", float64(i*20), 0, true)
	}
	if n := b.TrailNodes("a"); n != 28 {
		t.Errorf("Expected 28 nodes at touch cap, got %d", n)
	}
	if b.nodes.Allocated() != 28 {
		t.Errorf("Expected node slots to be recycled, got %d allocated", b.nodes.Allocated())
	}
}

// TestTrailFadesAndDisappears tests node decay and trail removal
func TestTrailFadesAndDisappears(t *testing.T) {
	b := NewBoost(config.ProfileDesktop, newRand(), 25)
	b.Track("a", 0, 0, true)
	b.Track("a", 20, 0, true)
	b.Track("a", 20, 0, false)

	for i := 0; i < 19; i++ {
		b.Update(1.0 / 60)
	}
	if b.TrailNodes("a") != 0 || b.Trails() != 0 {
		t.Errorf("Expected faded trail to be removed, got %d nodes, %d trails", b.TrailNodes("a"), b.Trails())
	}
	if b.nodes.Active() != 0 {
		t.Errorf("Expected every node released, got %d active", b.nodes.Active())
	}
}

type lineRecorder struct {
	*render.CountingSurface
	starts []float64
}

func (r *lineRecorder) StrokeLine(x1, y1, x2, y2 float64) {
	r.starts = append(r.starts, x1)
	r.CountingSurface.StrokeLine(x1, y1, x2, y2)
}

// TestTrailRenderOrder tests that trails draw in id order every frame
func TestTrailRenderOrder(t *testing.T) {
	b := NewBoost(config.ProfileDesktop, newRand(), 25)
	for i, id := range []string{"zed", "bob", "amy", "kim"} {
		base := float64(i * 1000)
		b.Track(id, base, 0, true)
		b.Track(id, base+20, 0, true)
	}

	var first []float64
	for round := 0; round < 10; round++ {
		r := &lineRecorder{CountingSurface: render.NewCountingSurface(100, 100)}
		b.Render(r)
		if len(r.starts) != 4 {
			t.Fatalf("Expected one segment per trail, got %d", len(r.starts))
		}
		if round == 0 {
			first = r.starts
			// amy, bob, kim, zed
			want := []float64{2000, 1000, 3000, 0}
			for i := range want {
				if first[i] != want[i] {
					t.Fatalf("Expected trails sorted by id %v, got %v", want, first)
				}
			}
			continue
		}
		for i := range first {
			if r.starts[i] != first[i] {
				t.Fatalf("Round %d: expected order %v, got %v", round, first, r.starts)
			}
		}
	}
}

// TestBoostParticles tests emission, cap and decay
func TestBoostParticles(t *testing.T) {
	b := NewBoost(config.ProfileMobile, newRand(), 25)
	for i := 0; i < 40; i++ {
		b.Emit(100, 100, 0)
	}
	if b.particles.Len() != 48 {
		t.Errorf("Expected particle cap 48, got %d", b.particles.Len())
	}
	b.particles.Range(func(p *boostParticle) {
		if p.x >= 100 {
			t.Fatalf("Expected particle behind a right-facing bird, got x=%v", p.x)
		}
	})

	for i := 0; i < 21; i++ {
		b.Update(1.0 / 60)
	}
	if b.particles.Len() != 0 {
		t.Errorf("Expected particles to die after 20 ticks, got %d", b.particles.Len())
	}
}

// TestSystemsImplementInterface tests the shared system shape
func TestSystemsImplementInterface(t *testing.T) {
	r := newRand()
	systems := []System{
		NewMuzzle(config.ProfileDesktop, r),
		NewFeathers(config.ProfileDesktop, r, nil),
		NewTracers(config.ProfileDesktop),
		NewExplosions(config.ProfileDesktop),
		NewBoost(config.ProfileDesktop, r, 25),
	}
	s := render.NewCountingSurface(10, 10)
	for _, sys := range systems {
		sys.Update(0.016)
		sys.Render(s)
		sys.Reset()
		if sys.Len() != 0 {
			t.Errorf("Expected %T empty after reset", sys)
		}
	}
}
