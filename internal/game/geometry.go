package game

import "math"

// Rect is an axis-aligned box in world pixels. The y axis grows downward.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"width"`
	H float64 `json:"height"`
}

// Intersects is the strict open-overlap predicate: touching edges do not count.
func (a Rect) Intersects(b Rect) bool {
	return a.X < b.X+b.W && a.X+a.W > b.X && a.Y < b.Y+b.H && a.Y+a.H > b.Y
}

// Right returns the x coordinate of the right edge.
func (a Rect) Right() float64 { return a.X + a.W }

// Bottom returns the y coordinate of the bottom edge.
func (a Rect) Bottom() float64 { return a.Y + a.H }

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// isFinite reports whether v is a usable coordinate.
func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
