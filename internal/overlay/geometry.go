package overlay

import "fmt"

// Point is a position in viewport pixels.
type Point struct {
	X, Y int
}

// Size is a rendered extent in viewport pixels.
type Size struct {
	Width, Height int
}

// Empty reports whether either dimension is zero or negative.
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Rect is an axis-aligned footprint in viewport pixels.
type Rect struct {
	X, Y, Width, Height int
}

// RectAt returns the footprint of a message of the given size placed at p.
func RectAt(p Point, s Size) Rect {
	return Rect{X: p.X, Y: p.Y, Width: s.Width, Height: s.Height}
}

// Pad grows the rectangle by m pixels on every side.
func (r Rect) Pad(m int) Rect {
	return Rect{X: r.X - m, Y: r.Y - m, Width: r.Width + 2*m, Height: r.Height + 2*m}
}

// Intersects reports whether two rectangles share any point. Rectangles
// whose edges touch are considered overlapping.
func (r Rect) Intersects(o Rect) bool {
	if r.X+r.Width < o.X || o.X+o.Width < r.X {
		return false
	}
	if r.Y+r.Height < o.Y || o.Y+o.Height < r.Y {
		return false
	}
	return true
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() (float64, float64) {
	return float64(r.X) + float64(r.Width)/2, float64(r.Y) + float64(r.Height)/2
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// Bounds is the usable placement area [0, MaxX] x [0, MaxY] for the top-left
// corner of a message.
type Bounds struct {
	MaxX, MaxY int
}

// BoundsFor returns the placement area for a message of the given size
// inside the viewport. Messages larger than the viewport get a zero area.
func BoundsFor(viewport, size Size) Bounds {
	return Bounds{
		MaxX: max(0, viewport.Width-size.Width),
		MaxY: max(0, viewport.Height-size.Height),
	}
}

// Clamp moves p inside the bounds.
func (b Bounds) Clamp(p Point) Point {
	return Point{
		X: max(0, min(b.MaxX, p.X)),
		Y: max(0, min(b.MaxY, p.Y)),
	}
}

// Contains reports whether p lies inside the bounds.
func (b Bounds) Contains(p Point) bool {
	return p.X >= 0 && p.X <= b.MaxX && p.Y >= 0 && p.Y <= b.MaxY
}
