// Package camera moves the viewport over the world once per tick.
package camera

import (
	"math"
	"sort"

	"flappy-client/internal/config"
	"flappy-client/internal/interp"
	"flappy-client/internal/world"
)

const (
	// FollowLerp smooths follow and spectate modes.
	FollowLerp = 0.15
	// DefaultOverrideLerp applies when an override gives no lerp.
	DefaultOverrideLerp = 0.14

	MinOverrideLerp = 0.04
	MaxOverrideLerp = 0.6
	MinOverrideZoom = 0.68
	MaxOverrideZoom = 1.24

	// DefaultBaseZoom is the desktop world-to-screen scale.
	DefaultBaseZoom = 0.5
)

// Mode selects how the camera picks its target.
type Mode uint8

const (
	ModeFollowPlayer Mode = iota
	ModeCenter
	ModeSpectate
	ModeOverride
)

// String returns the mode name
func (m Mode) String() string {
	switch m {
	case ModeFollowPlayer:
		return "followPlayer"
	case ModeCenter:
		return "center"
	case ModeSpectate:
		return "spectate"
	case ModeOverride:
		return "override"
	default:
		return "unknown"
	}
}

// Override is an externally supplied target, e.g. a cinematic pan.
// Zero Zoom and zero Lerp select the defaults.
type Override struct {
	X    float64
	Y    float64
	Zoom float64
	Lerp float64
}

// Input is everything the camera reads in one tick.
type Input struct {
	Mode     Mode
	SelfID   string
	Entities map[string]world.Entity
	Poses    map[string]interp.Pose
	Override Override
}

// Options sizes the world and the viewport.
type Options struct {
	WorldWidth  float64
	WorldHeight float64
	ViewWidth   float64 // screen pixels
	ViewHeight  float64
	PlayerSize  float64
	BaseZoom    float64
}

// OptionsFromConfig derives camera options from the app config.
func OptionsFromConfig(g config.GameConfig, v config.ViewConfig) Options {
	return Options{
		WorldWidth:  g.WorldWidth,
		WorldHeight: g.WorldHeight,
		ViewWidth:   float64(v.Width),
		ViewHeight:  float64(v.Height),
		PlayerSize:  g.PlayerSize,
		BaseZoom:    BaseZoomFor(v.Profile, v.Width, v.Height),
	}
}

// BaseZoomFor zooms touch devices out so they see more of the world.
func BaseZoomFor(p config.Profile, w, h int) float64 {
	switch {
	case p.IsTouch() && w > h:
		return DefaultBaseZoom * 0.88
	case p.IsTouch():
		return DefaultBaseZoom * 0.82
	default:
		return DefaultBaseZoom
	}
}

// Controller is the single writer of the camera state.
type Controller struct {
	opts Options

	x    float64
	y    float64
	zoom float64

	spectateID string
}

// New creates a controller positioned at the world center.
func New(opts Options) *Controller {
	if opts.BaseZoom <= 0 {
		opts.BaseZoom = DefaultBaseZoom
	}
	c := &Controller{opts: opts, zoom: opts.BaseZoom}
	c.x, c.y = c.center()
	return c
}

// Update advances the camera one tick.
func (c *Controller) Update(in Input) {
	overrideZoom := 1.0
	if in.Mode == ModeOverride && in.Override.Zoom != 0 && world.Finite(in.Override.Zoom) {
		overrideZoom = world.Clamp(in.Override.Zoom, MinOverrideZoom, MaxOverrideZoom)
	}
	c.zoom = c.opts.BaseZoom * overrideZoom
	viewW, viewH := c.ViewSize()

	if in.Mode != ModeSpectate {
		c.spectateID = ""
	}

	mode := in.Mode
	if mode == ModeOverride && !world.Finite(in.Override.X, in.Override.Y) {
		mode = ModeFollowPlayer
	}

	switch mode {
	case ModeOverride:
		lerp := DefaultOverrideLerp
		if in.Override.Lerp != 0 && world.Finite(in.Override.Lerp) {
			lerp = world.Clamp(in.Override.Lerp, MinOverrideLerp, MaxOverrideLerp)
		}
		c.x = world.Lerp(c.x, in.Override.X-viewW/2, lerp)
		c.y = world.Lerp(c.y, in.Override.Y-viewH/2, lerp)

	case ModeCenter:
		c.x, c.y = c.center()

	case ModeSpectate:
		c.spectate(in, viewW, viewH)

	default:
		c.follow(in, viewW, viewH)
	}

	if !world.Finite(c.x, c.y) {
		c.x, c.y = c.center()
	}
}

func (c *Controller) follow(in Input, viewW, viewH float64) {
	pose, ok := in.Poses[in.SelfID]
	if !ok {
		return
	}

	groundY := world.GroundY(c.opts.WorldHeight, c.opts.PlayerSize)
	c.x = world.Lerp(c.x, pose.X-viewW/2, FollowLerp)

	self, known := in.Entities[in.SelfID]
	rawY := pose.Y
	if known {
		rawY = self.Y
	}
	if self.OnGround || rawY >= groundY-0.5 {
		c.y = groundY - viewH/2
		return
	}
	c.y = world.Lerp(c.y, math.Min(pose.Y, groundY)-viewH/2, FollowLerp)
}

func (c *Controller) spectate(in Input, viewW, viewH float64) {
	target, ok := in.Entities[c.spectateID]
	if !ok || !target.Alive {
		c.spectateID = pickSpectateTarget(in.Entities, in.SelfID)
		target, ok = in.Entities[c.spectateID]
	}
	if !ok {
		c.x, c.y = c.center()
		return
	}

	px, py := target.X, target.Y
	if pose, has := in.Poses[c.spectateID]; has {
		px, py = pose.X, pose.Y
	}
	c.x = world.Lerp(c.x, px-viewW/2, FollowLerp)
	c.y = world.Lerp(c.y, py-viewH/2, FollowLerp)
}

// pickSpectateTarget returns the alive non-self entity with the lowest id.
func pickSpectateTarget(entities map[string]world.Entity, selfID string) string {
	ids := make([]string, 0, len(entities))
	for id, e := range entities {
		if id != selfID && e.Alive {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return ""
	}
	sort.Strings(ids)
	return ids[0]
}

// Position returns the world coordinate of the viewport's top-left corner.
func (c *Controller) Position() (x, y float64) { return c.x, c.y }

// Zoom returns the current world-to-screen scale.
func (c *Controller) Zoom() float64 { return c.zoom }

// ViewSize returns the visible world area at the current zoom.
func (c *Controller) ViewSize() (w, h float64) {
	return c.opts.ViewWidth / c.zoom, c.opts.ViewHeight / c.zoom
}

// SpectateTarget returns the id currently spectated, if any.
func (c *Controller) SpectateTarget() string { return c.spectateID }

// SetViewport resizes the screen viewport.
func (c *Controller) SetViewport(w, h float64) {
	c.opts.ViewWidth = w
	c.opts.ViewHeight = h
}

// SetWorld applies world dimensions announced by the server. Non-positive
// values keep the current setting.
func (c *Controller) SetWorld(w, h, playerSize float64) {
	if w > 0 && world.Finite(w) {
		c.opts.WorldWidth = w
	}
	if h > 0 && world.Finite(h) {
		c.opts.WorldHeight = h
	}
	if playerSize > 0 && world.Finite(playerSize) {
		c.opts.PlayerSize = playerSize
	}
}

// Renderable reports whether the render stage can use this camera.
func (c *Controller) Renderable() bool {
	return c.opts.ViewWidth > 0 && c.opts.ViewHeight > 0 &&
		world.Finite(c.x, c.y, c.zoom) && c.zoom > 0
}

// Reset snaps to the world center.
func (c *Controller) Reset() {
	c.spectateID = ""
	c.zoom = c.opts.BaseZoom
	c.x, c.y = c.center()
}

func (c *Controller) center() (float64, float64) {
	viewW, viewH := c.ViewSize()
	return (c.opts.WorldWidth - viewW) / 2, (c.opts.WorldHeight - viewH) / 2
}
