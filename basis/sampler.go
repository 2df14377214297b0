package basis

import (
	"errors"
	"fmt"

	"github.com/notargets/hprbs/element"
	"github.com/notargets/hprbs/mesh"
	"github.com/notargets/hprbs/quadrature"
)

var ErrOutsideSupport = errors.New("sample region is outside the element")

// Eval is one basis function sampled on a quadrature grid. Points are stored
// u-major: index a*nv + b for the a-th u point and b-th v point.
type Eval struct {
	Spec Spec
	Ex   []float64
	Ey   []float64
	Curl []float64
	W    []float64 // physical quadrature weights, shared by every Eval of a grid
}

// Sampler evaluates element bases on a tensor Gauss-Legendre grid.
type Sampler struct {
	Shape ShapeFn
	rules [2]quadrature.Rule
}

// NewSampler returns a Sampler using points[0] x points[1] quadrature points.
func NewSampler(fn ShapeFn, points [2]int) (*Sampler, error) {
	s := &Sampler{Shape: fn}
	for d, n := range points {
		r, err := quadrature.GLQ(n)
		if err != nil {
			return nil, fmt.Errorf("sampler axis %d: %w", d, err)
		}
		s.rules[d] = r
	}
	return s, nil
}

// Points returns the grid size per axis.
func (s *Sampler) Points() [2]int {
	return [2]int{s.rules[0].Len(), s.rules[1].Len()}
}

// Sample evaluates the full basis of elem on the grid laid over the region of
// over, which must be elem itself or one of its descendants. The returned
// Evals follow the order of Specs(elem.Orders).
func (s *Sampler) Sample(elem, over *mesh.Elem) ([]Eval, error) {
	if over.Element != elem.Element || !over.ParametricRange().Inside(elem.ParametricRange()) {
		return nil, fmt.Errorf("elem %d over elem %d: %w", elem.ID, over.ID, ErrOutsideSupport)
	}
	sub := over.RelativeRange(elem)
	jac := elem.Jacobian()
	ru := s.rules[0].Scale(sub[0][0], sub[0][1])
	rv := s.rules[1].Scale(sub[1][0], sub[1][1])
	nu, nv := ru.Len(), rv.Len()

	w := make([]float64, nu*nv)
	for a := range nu {
		for b := range nv {
			w[a*nv+b] = ru.Weights[a] * rv.Weights[b] * jac[0] * jac[1]
		}
	}

	ni, nj := elem.Orders.Ni, elem.Orders.Nj
	tu := s.tabulate(ru.Points, ni-1, ni)
	tv := s.tabulate(rv.Points, nj-1, nj)

	specs := Specs(elem.Orders)
	out := make([]Eval, len(specs))
	for k, spec := range specs {
		ev := Eval{
			Spec: spec,
			Ex:   make([]float64, nu*nv),
			Ey:   make([]float64, nu*nv),
			Curl: make([]float64, nu*nv),
			W:    w,
		}
		for a := range nu {
			for b := range nv {
				idx := a*nv + b
				if spec.Dir == element.U {
					p := tu.power[spec.I][a]
					ev.Ex[idx] = p * tv.poly[spec.J][b] / jac[0]
					ev.Curl[idx] = -p * tv.dpoly[spec.J][b] / (jac[0] * jac[1])
				} else {
					p := tv.power[spec.J][b]
					ev.Ey[idx] = tu.poly[spec.I][a] * p / jac[1]
					ev.Curl[idx] = tu.dpoly[spec.I][a] * p / (jac[0] * jac[1])
				}
			}
		}
		out[k] = ev
	}
	return out, nil
}

type table struct {
	power, poly, dpoly [][]float64
}

func (s *Sampler) tabulate(x []float64, maxPower, maxPoly int) table {
	t := table{
		power: make([][]float64, maxPower+1),
		poly:  make([][]float64, maxPoly+1),
		dpoly: make([][]float64, maxPoly+1),
	}
	for n := range t.power {
		t.power[n] = make([]float64, len(x))
		for a, xa := range x {
			t.power[n][a], _ = s.Shape.Power(n, xa)
		}
	}
	for n := range t.poly {
		t.poly[n] = make([]float64, len(x))
		t.dpoly[n] = make([]float64, len(x))
		for a, xa := range x {
			t.poly[n][a], t.dpoly[n][a] = s.Shape.Poly(n, xa)
		}
	}
	return t
}
