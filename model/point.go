package model

import "math"

// Point is a position on the map in game units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) Add(o Point) Point     { return Point{p.X + o.X, p.Y + o.Y} }
func (p Point) Sub(o Point) Point     { return Point{p.X - o.X, p.Y - o.Y} }
func (p Point) Scale(f float64) Point { return Point{p.X * f, p.Y * f} }
func (p Point) Dist(o Point) float64  { return math.Sqrt(p.DistSq(o)) }
func (p Point) Len() float64          { return math.Hypot(p.X, p.Y) }
func (p Point) IsZero() bool          { return p.X == 0 && p.Y == 0 }

func (p Point) DistSq(o Point) float64 {
	dx, dy := p.X-o.X, p.Y-o.Y
	return dx*dx + dy*dy
}

// Cell returns the grid cell containing p.
func (p Point) Cell() (col, row int) {
	return int(math.Floor(p.X)), int(math.Floor(p.Y))
}

// Towards returns the point d units from p in the direction of target.
// A negative d moves away from target. If p and target coincide, p is
// returned unchanged.
func (p Point) Towards(target Point, d float64) Point {
	dist := p.Dist(target)
	if dist == 0 {
		return p
	}
	f := d / dist
	return Point{p.X + (target.X-p.X)*f, p.Y + (target.Y-p.Y)*f}
}

// Centroid averages a set of points. The zero point is returned for an
// empty set.
func Centroid(points []Point) Point {
	if len(points) == 0 {
		return Point{}
	}
	var sum Point
	for _, p := range points {
		sum = sum.Add(p)
	}
	return sum.Scale(1 / float64(len(points)))
}
