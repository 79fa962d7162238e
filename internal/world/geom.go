package world

import "math"

// Lerp interpolates linearly between a and b.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// NormalizeAngle wraps an angle into (-π, π].
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// LerpAngle interpolates along the shortest arc from a to b.
func LerpAngle(a, b, t float64) float64 {
	return a + NormalizeAngle(b-a)*t
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

// Distance is the Euclidean distance between two points.
func Distance(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x2-x1, y2-y1)
}

// Finite reports whether every value is neither NaN nor ±Inf.
func Finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// CircleRect reports whether a circle overlaps an obstacle, edges included.
func CircleRect(cx, cy, radius float64, r Obstacle) bool {
	closestX := Clamp(cx, r.X, r.X+r.Width)
	closestY := Clamp(cy, r.Y, r.Y+r.Height)
	dx := cx - closestX
	dy := cy - closestY
	return dx*dx+dy*dy <= radius*radius
}

// GroundY is the lowest y a bird center can reach: the ground strip takes
// the bottom 18% of the world and the bird stands on top of it.
func GroundY(worldHeight, playerSize float64) float64 {
	groundTop := worldHeight - math.Floor(worldHeight*0.18)
	return groundTop - playerSize
}
