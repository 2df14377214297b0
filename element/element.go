// Package element describes the geometry of a root quadrilateral element and
// the mapping between its parametric space [-1,1]^2 and physical space.
package element

import (
	"fmt"
	"math"
)

// PointTolerance is the distance below which two points are considered equal.
const PointTolerance = 1e-12

// ParaDir is a parametric direction of an element.
type ParaDir uint8

const (
	U ParaDir = iota // parametric x direction
	V                // parametric y direction
)

func (d ParaDir) String() string {
	switch d {
	case U:
		return "U"
	case V:
		return "V"
	default:
		return fmt.Sprintf("ParaDir(%d)", uint8(d))
	}
}

// Orthogonal returns the other parametric direction.
func (d ParaDir) Orthogonal() ParaDir {
	if d == U {
		return V
	}
	return U
}

// Point is a location in physical space.
type Point struct {
	X, Y float64
}

// Between returns the midpoint of a and b.
func Between(a, b Point) Point {
	return Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

// Dist returns the Euclidean distance between p and o.
func (p Point) Dist(o Point) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

// Equal reports whether p and o coincide within PointTolerance.
func (p Point) Equal(o Point) bool {
	return math.Abs(p.X-o.X) < PointTolerance && math.Abs(p.Y-o.Y) < PointTolerance
}

// Orientation returns U if the segment from p to o is closer to horizontal
// than vertical, and V otherwise.
func (p Point) Orientation(o Point) ParaDir {
	dx, dy := math.Abs(o.X-p.X), math.Abs(o.Y-p.Y)
	if math.Atan2(dy, dx) < math.Pi/4 {
		return U
	}
	return V
}

// Less reports whether p comes before o along dir. Coordinates within
// PointTolerance compare equal.
func (p Point) Less(o Point, dir ParaDir) bool {
	return compareAlong(p, o, dir) < 0
}

func compareAlong(a, b Point, dir ParaDir) int {
	var d float64
	if dir == U {
		d = a.X - b.X
	} else {
		d = a.Y - b.Y
	}
	switch {
	case math.Abs(d) < PointTolerance:
		return 0
	case d < 0:
		return -1
	default:
		return 1
	}
}

// OnSegment reports whether p lies on the segment from a to b, away from both
// end points.
func (p Point) OnSegment(a, b Point) bool {
	if p.Equal(a) || p.Equal(b) {
		return false
	}
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 < PointTolerance*PointTolerance {
		return false
	}
	if math.Abs((p.X-a.X)*dy-(p.Y-a.Y)*dx)/math.Sqrt(l2) > PointTolerance {
		return false
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / l2
	return t > 0 && t < 1
}

func (p Point) String() string {
	return fmt.Sprintf("(%.6g, %.6g)", p.X, p.Y)
}

// Materials holds the relative material parameters of an element.
type Materials struct {
	EpsRel complex128 // relative permittivity
	MuRel  complex128 // relative permeability
}

// DefaultMaterials returns vacuum parameters.
func DefaultMaterials() Materials {
	return Materials{EpsRel: 1, MuRel: 1}
}

// MaterialsFromParams builds Materials from [eps_re, eps_im, mu_re, mu_im].
func MaterialsFromParams(p [4]float64) Materials {
	return Materials{
		EpsRel: complex(p[0], p[1]),
		MuRel:  complex(p[2], p[3]),
	}
}

// Params returns the materials as [eps_re, eps_im, mu_re, mu_im].
func (m Materials) Params() [4]float64 {
	return [4]float64{real(m.EpsRel), imag(m.EpsRel), real(m.MuRel), imag(m.MuRel)}
}

func (m Materials) String() string {
	return fmt.Sprintf("eps_r: %v, mu_r: %v", m.EpsRel, m.MuRel)
}
