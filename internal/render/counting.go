package render

import (
	"image"
	"image/color"
)

// CountingSurface records draw calls without rasterizing. It backs the
// headless mode and lets tests assert what a pass drew.
type CountingSurface struct {
	W, H float64

	Rects   int
	Lines   int
	Circles int
	Images  int
	Clears  int

	depth    int
	MaxDepth int
}

// NewCountingSurface creates a headless surface of the given size.
func NewCountingSurface(w, h float64) *CountingSurface {
	return &CountingSurface{W: w, H: h}
}

func (s *CountingSurface) Size() (float64, float64) { return s.W, s.H }

func (s *CountingSurface) Save() {
	s.depth++
	if s.depth > s.MaxDepth {
		s.MaxDepth = s.depth
	}
}

func (s *CountingSurface) Restore()                        { s.depth-- }
func (s *CountingSurface) Translate(float64, float64)      {}
func (s *CountingSurface) Scale(float64, float64)          {}
func (s *CountingSurface) Rotate(float64)                  {}
func (s *CountingSurface) Clear(color.Color)               { s.Clears++ }
func (s *CountingSurface) SetColor(color.Color)            {}
func (s *CountingSurface) SetLineWidth(float64)            {}
func (s *CountingSurface) FillRect(_, _, _, _ float64)     { s.Rects++ }
func (s *CountingSurface) StrokeLine(_, _, _, _ float64)   { s.Lines++ }
func (s *CountingSurface) FillCircle(_, _, _ float64)      { s.Circles++ }
func (s *CountingSurface) StrokeCircle(_, _, _ float64)    { s.Circles++ }
func (s *CountingSurface) DrawImage(image.Image, float64, float64) { s.Images++ }

// Depth is the current Save/Restore nesting; zero when balanced.
func (s *CountingSurface) Depth() int { return s.depth }

// Draws is the total number of primitive draws.
func (s *CountingSurface) Draws() int {
	return s.Rects + s.Lines + s.Circles + s.Images
}

// Reset zeroes the counters.
func (s *CountingSurface) Reset() {
	*s = CountingSurface{W: s.W, H: s.H}
}
