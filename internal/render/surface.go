// Package render defines the drawing surface the presentation engine
// targets and the world-space drawing helpers shared by every layer.
package render

import (
	"image"
	"image/color"
)

// Surface is a 2D drawing target with an affine transform stack.
type Surface interface {
	Size() (w, h float64)

	Save()
	Restore()
	Translate(x, y float64)
	Scale(sx, sy float64)
	Rotate(angle float64)

	Clear(c color.Color)
	SetColor(c color.Color)
	SetLineWidth(w float64)

	FillRect(x, y, w, h float64)
	StrokeLine(x1, y1, x2, y2 float64)
	FillCircle(x, y, r float64)
	StrokeCircle(x, y, r float64)
	// DrawImage blits img centered on (x, y).
	DrawImage(img image.Image, x, y float64)
}

// ParseHex converts "#rrggbb" to a color, defaulting to white.
func ParseHex(hex string) color.NRGBA {
	if len(hex) != 7 || hex[0] != '#' {
		return color.NRGBA{255, 255, 255, 255}
	}
	return color.NRGBA{
		R: hexToByte(hex[1], hex[2]),
		G: hexToByte(hex[3], hex[4]),
		B: hexToByte(hex[5], hex[6]),
		A: 255,
	}
}

// WithAlpha scales c's opacity by a in [0, 1].
func WithAlpha(c color.NRGBA, a float64) color.NRGBA {
	if a < 0 {
		a = 0
	} else if a > 1 {
		a = 1
	}
	c.A = uint8(float64(c.A) * a)
	return c
}

// hexToByte converts two hex chars to a byte
func hexToByte(h1, h2 byte) uint8 {
	return hexCharToNibble(h1)<<4 | hexCharToNibble(h2)
}

func hexCharToNibble(c byte) uint8 {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}
