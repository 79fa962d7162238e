package render

import (
	"image"
	"image/color"
	"math"

	"flappy-client/internal/world"
)

// BirdTypes lists the skins the server may assign.
var BirdTypes = []string{"yellow", "blue", "cloudyblue", "orange", "pink", "purple", "red", "teal", "diddy"}

var birdColors = map[string]color.NRGBA{
	"yellow":     ParseHex("#f7d51d"),
	"blue":       ParseHex("#3d7bff"),
	"cloudyblue": ParseHex("#9cc9f0"),
	"orange":     ParseHex("#ff8c1a"),
	"pink":       ParseHex("#ff7eb6"),
	"purple":     ParseHex("#9b5de5"),
	"red":        ParseHex("#e63946"),
	"teal":       ParseHex("#2ec4b6"),
	"diddy":      ParseHex("#6b4226"),
}

// BirdColor is the flat color used when no sprite is loaded for birdType.
func BirdColor(birdType string) color.NRGBA {
	if c, ok := birdColors[birdType]; ok {
		return c
	}
	return birdColors["yellow"]
}

// Sprites holds optional images keyed by bird type. Missing entries fall
// back to flat shapes.
type Sprites struct {
	Birds    map[string]image.Image
	Feathers map[string]image.Image
}

// Feather returns the feather sprite for birdType, if loaded.
func (sp *Sprites) Feather(birdType string) image.Image {
	if sp == nil {
		return nil
	}
	return sp.Feathers[birdType]
}

// Bird returns the bird sprite for birdType, if loaded.
func (sp *Sprites) Bird(birdType string) image.Image {
	if sp == nil {
		return nil
	}
	return sp.Birds[birdType]
}

var (
	skyColor     = ParseHex("#70c5ce")
	groundColor  = ParseHex("#ded895")
	pipeBody     = ParseHex("#73bf2e")
	pipeDarkEdge = ParseHex("#558b2f")
	pipeLight    = ParseHex("#8bc34a")
	orbColor     = ParseHex("#ffd166")
	bulletColor  = ParseHex("#ffffff")
)

// BeginWorld pushes the camera transform: world (camX, camY) maps to the
// surface origin at the given zoom. Pair with s.Restore().
func BeginWorld(s Surface, camX, camY, zoom float64) {
	s.Save()
	s.Scale(zoom, zoom)
	s.Translate(-camX, -camY)
}

// DrawBackground clears to sky and draws the ground strip.
func DrawBackground(s Surface, worldW, worldH float64) {
	s.Clear(skyColor)
	groundTop := worldH - math.Floor(worldH*0.18)
	s.SetColor(groundColor)
	s.FillRect(0, groundTop, worldW, worldH-groundTop)
}

// DrawObstacles draws pipe rectangles with their edge shading.
func DrawObstacles(s Surface, obstacles []world.Obstacle) {
	for _, o := range obstacles {
		s.SetColor(pipeBody)
		s.FillRect(o.X, o.Y, o.Width, o.Height)
		if o.Width > 13 {
			s.SetColor(pipeDarkEdge)
			s.FillRect(o.X+o.Width-8, o.Y, 8, o.Height)
			s.SetColor(pipeLight)
			s.FillRect(o.X, o.Y, 5, o.Height)
		}
	}
}

// DrawOrbs draws collectibles as filled circles.
func DrawOrbs(s Surface, orbs map[string]world.Orb, radius float64) {
	s.SetColor(orbColor)
	for _, o := range orbs {
		s.FillCircle(o.X, o.Y, radius)
	}
}

// DrawBird draws one bird rotated to its facing angle.
func DrawBird(s Surface, sprites *Sprites, x, y, angle, size float64, birdType string) {
	s.Save()
	s.Translate(x, y)
	s.Rotate(angle)
	if img := sprites.Bird(birdType); img != nil {
		s.DrawImage(img, 0, 0)
	} else {
		s.SetColor(BirdColor(birdType))
		s.FillCircle(0, 0, size)
		s.SetColor(ParseHex("#f4a261"))
		s.SetLineWidth(size * 0.3)
		s.StrokeLine(size*0.6, 0, size*1.2, 0)
	}
	s.Restore()
}

// DrawBulletLine draws a short streak trailing the bullet along its velocity.
func DrawBulletLine(s Surface, x, y, vx, vy float64) {
	const lineLen = 10
	speed := math.Hypot(vx, vy)
	if speed == 0 {
		vx, speed = 1, 1
	}
	s.SetColor(bulletColor)
	s.SetLineWidth(1)
	s.StrokeLine(x-(vx/speed)*lineLen, y-(vy/speed)*lineLen, x, y)
}
