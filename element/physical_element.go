package element

import (
	"errors"
	"fmt"
)

// ErrDegenerate is returned for elements with zero extent in either direction.
var ErrDegenerate = errors.New("degenerate element geometry")

// Rect is an axis-aligned rectangle in physical space.
type Rect struct {
	Min, Max Point
}

// Width returns the x extent of the rectangle.
func (r Rect) Width() float64 { return r.Max.X - r.Min.X }

// Height returns the y extent of the rectangle.
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

// Center returns the centroid of the rectangle.
func (r Rect) Center() Point { return Between(r.Min, r.Max) }

// Contains reports whether p lies in the closed rectangle.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Min.X-PointTolerance && p.X <= r.Max.X+PointTolerance &&
		p.Y >= r.Min.Y-PointTolerance && p.Y <= r.Max.Y+PointTolerance
}

// Element is the geometry of a root quadrilateral. Every element of a
// refinement tree shares the Element of its root and addresses a sub-region
// of it through a ParametricRange.
//
// Points are ordered SW, SE, NW, NE. The parametric mapping is axis-aligned
// and spans the bounding box of Points[0] and Points[3].
type Element struct {
	ID        int
	Points    [4]Point
	Materials Materials
}

// New validates the corner points and returns the root geometry.
func New(id int, points [4]Point, materials Materials) (*Element, error) {
	if points[3].X-points[0].X <= PointTolerance || points[3].Y-points[0].Y <= PointTolerance {
		return nil, fmt.Errorf("element %d with corners %v, %v: %w", id, points[0], points[3], ErrDegenerate)
	}
	return &Element{ID: id, Points: points, Materials: materials}, nil
}

// Bounds returns the physical rectangle of the whole element.
func (e *Element) Bounds() Rect {
	return Rect{Min: e.Points[0], Max: e.Points[3]}
}

// ToPhysical maps the parametric coordinates (u, v) of the root element to
// physical space.
func (e *Element) ToPhysical(u, v float64) Point {
	b := e.Bounds()
	return Point{
		X: b.Min.X + (u+1)*b.Width()/2,
		Y: b.Min.Y + (v+1)*b.Height()/2,
	}
}

// ToParametric maps a physical point to the parametric coordinates of the
// root element.
func (e *Element) ToParametric(p Point) (u, v float64) {
	b := e.Bounds()
	return 2*(p.X-b.Min.X)/b.Width() - 1, 2*(p.Y-b.Min.Y)/b.Height() - 1
}

// Region returns the physical rectangle covered by r.
func (e *Element) Region(r ParametricRange) Rect {
	return Rect{
		Min: e.ToPhysical(r[0][0], r[1][0]),
		Max: e.ToPhysical(r[0][1], r[1][1]),
	}
}

// Jacobian returns the diagonal terms (dx/du, dy/dv) of the mapping from the
// local reference square of r to physical space.
func (e *Element) Jacobian(r ParametricRange) [2]float64 {
	rect := e.Region(r)
	return [2]float64{rect.Width() / 2, rect.Height() / 2}
}

// OrderPoints compares a and b along the orientation of the segment joining
// them. It returns 0 if the points coincide.
func (e *Element) OrderPoints(a, b Point) int {
	if a.Equal(b) {
		return 0
	}
	return compareAlong(a, b, a.Orientation(b))
}
