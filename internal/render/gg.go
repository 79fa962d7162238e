package render

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
)

// GGSurface draws into an in-memory RGBA image.
type GGSurface struct {
	dc *gg.Context
}

// NewGGSurface creates a w×h surface.
func NewGGSurface(w, h int) *GGSurface {
	return &GGSurface{dc: gg.NewContext(w, h)}
}

// Context exposes the underlying gg context.
func (s *GGSurface) Context() *gg.Context { return s.dc }

// Image returns the rendered frame.
func (s *GGSurface) Image() image.Image { return s.dc.Image() }

// SavePNG writes the current frame to path.
func (s *GGSurface) SavePNG(path string) error { return s.dc.SavePNG(path) }

func (s *GGSurface) Size() (float64, float64) {
	return float64(s.dc.Width()), float64(s.dc.Height())
}

func (s *GGSurface) Save()                  { s.dc.Push() }
func (s *GGSurface) Restore()               { s.dc.Pop() }
func (s *GGSurface) Translate(x, y float64) { s.dc.Translate(x, y) }
func (s *GGSurface) Scale(sx, sy float64)   { s.dc.Scale(sx, sy) }
func (s *GGSurface) Rotate(angle float64)   { s.dc.Rotate(angle) }
func (s *GGSurface) SetColor(c color.Color) { s.dc.SetColor(c) }
func (s *GGSurface) SetLineWidth(w float64) { s.dc.SetLineWidth(w) }

func (s *GGSurface) Clear(c color.Color) {
	s.dc.SetColor(c)
	s.dc.Clear()
}

func (s *GGSurface) FillRect(x, y, w, h float64) {
	s.dc.DrawRectangle(x, y, w, h)
	s.dc.Fill()
}

func (s *GGSurface) StrokeLine(x1, y1, x2, y2 float64) {
	s.dc.DrawLine(x1, y1, x2, y2)
	s.dc.Stroke()
}

func (s *GGSurface) FillCircle(x, y, r float64) {
	s.dc.DrawCircle(x, y, r)
	s.dc.Fill()
}

func (s *GGSurface) StrokeCircle(x, y, r float64) {
	s.dc.DrawCircle(x, y, r)
	s.dc.Stroke()
}

func (s *GGSurface) DrawImage(img image.Image, x, y float64) {
	s.dc.DrawImageAnchored(img, int(x), int(y), 0.5, 0.5)
}
