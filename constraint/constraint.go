// Package constraint relates the tangential traces two elements leave on a
// shared interface. It knows nothing about the mesh: a Trace describes the
// interface by its physical span, the element generation and the number of
// trace functions, so relations can be derived between any two generations
// and orders.
package constraint

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/hprbs/basis"
	"github.com/notargets/hprbs/element"
	"github.com/notargets/hprbs/quadrature"
)

var (
	ErrDirectionMismatch = errors.New("traces lie along different directions")
	ErrDisjointSpans     = errors.New("slave span is not inside the master span")
	ErrShapeMismatch     = errors.New("traces use different shape functions")
	ErrEmptyTrace        = errors.New("trace has no functions")
)

// SpanTolerance is the slack allowed when comparing span end points.
const SpanTolerance = 1e-12

// Trace is the set of tangential trace functions an element has on one of
// its edges. Function k is (4/w)*Power(k, s), where w is the span width and s
// maps the span onto [-1, 1].
type Trace struct {
	Dir        element.ParaDir
	Order      int        // number of trace functions
	Span       [2]float64 // physical coordinate range along Dir
	Generation int
	Shape      basis.ShapeFn
}

// Width returns the length of the span.
func (t Trace) Width() float64 { return t.Span[1] - t.Span[0] }

// Func evaluates trace function k at physical coordinate x.
func (t Trace) Func(k int, x float64) float64 {
	s := 2*(x-t.Span[0])/t.Width() - 1
	p, _ := t.Shape.Power(k, s)
	return 4 * p / t.Width()
}

// Eval evaluates the combination of trace functions with the given
// coefficients at x.
func (t Trace) Eval(coeffs []float64, x float64) (sum float64) {
	for k, c := range coeffs {
		if c != 0 {
			sum += c * t.Func(k, x)
		}
	}
	return
}

func (t Trace) contains(o Trace) bool {
	return o.Span[0] >= t.Span[0]-SpanTolerance && o.Span[1] <= t.Span[1]+SpanTolerance
}

func (t Trace) String() string {
	return fmt.Sprintf("Trace(%v, order %d, span [%.6g, %.6g], gen %d)",
		t.Dir, t.Order, t.Span[0], t.Span[1], t.Generation)
}

// Class is the kind of overlap between two traces.
type Class uint8

const (
	SameOrder           Class = iota // same generation and order
	DifferentOrder                   // same generation, different order
	DifferentGeneration              // the slave covers part of the master span
)

func (c Class) String() string {
	return [...]string{"same order", "different order", "different generation"}[c]
}

// Relation expresses each master trace function, restricted to the slave
// span, in the slave's trace basis:
//
//	master_l = sum_k C(k, l) * slave_k   on the slave span
//
// Swapped reports that the master is the second argument given to Match.
type Relation struct {
	Master, Slave Trace
	Swapped       bool
	Class         Class
	C             *mat.Dense // Slave.Order x Master.Order
	Exact         bool       // every master function lies in the slave space
	Residual      float64    // largest L2 projection error over the master functions
}

// ExactTolerance bounds the relative projection residual of an exact relation.
const ExactTolerance = 1e-10

// Match relates two traces on a shared interface. The master is the coarser
// generation, then the lower order; ties keep a as master. The slave span
// must lie inside the master span.
func Match(a, b Trace) (*Relation, error) {
	if a.Dir != b.Dir {
		return nil, ErrDirectionMismatch
	}
	if a.Order < 1 || b.Order < 1 {
		return nil, ErrEmptyTrace
	}
	if a.Shape == nil || b.Shape == nil || a.Shape.String() != b.Shape.String() {
		return nil, ErrShapeMismatch
	}

	r := &Relation{Master: a, Slave: b}
	if b.Generation < a.Generation || (b.Generation == a.Generation && b.Order < a.Order) {
		r.Master, r.Slave, r.Swapped = b, a, true
	}
	if !r.Master.contains(r.Slave) {
		return nil, fmt.Errorf("%v in %v: %w", r.Slave, r.Master, ErrDisjointSpans)
	}
	switch {
	case r.Master.Generation != r.Slave.Generation:
		r.Class = DifferentGeneration
	case r.Master.Order != r.Slave.Order:
		r.Class = DifferentOrder
	default:
		r.Class = SameOrder
	}

	if err := r.project(); err != nil {
		return nil, err
	}
	return r, nil
}

// project computes C = G^-1 M with G the slave Gram matrix and M the mixed
// slave/master moments over the slave span.
func (r *Relation) project() error {
	ns, nm := r.Slave.Order, r.Master.Order
	rule, err := quadrature.GLQ(max(ns, nm) + 2)
	if err != nil {
		return err
	}
	rule = rule.Scale(r.Slave.Span[0], r.Slave.Span[1])

	sv := mat.NewDense(rule.Len(), ns, nil)
	mv := mat.NewDense(rule.Len(), nm, nil)
	for q, x := range rule.Points {
		for k := range ns {
			sv.Set(q, k, r.Slave.Func(k, x))
		}
		for l := range nm {
			mv.Set(q, l, r.Master.Func(l, x))
		}
	}
	wd := mat.NewDiagDense(rule.Len(), rule.Weights)

	var ws, g, m mat.Dense
	ws.Mul(wd, sv)
	g.Mul(sv.T(), &ws)
	m.Mul(ws.T(), mv)

	var chol mat.Cholesky
	if ok := chol.Factorize(mat.NewSymDense(ns, g.RawMatrix().Data)); !ok {
		return fmt.Errorf("slave gram matrix of %v is not positive definite", r.Slave)
	}
	r.C = mat.NewDense(ns, nm, nil)
	if err := chol.SolveTo(r.C, &m); err != nil {
		return fmt.Errorf("projecting %v onto %v: %w", r.Master, r.Slave, err)
	}

	var fit mat.Dense
	fit.Mul(sv, r.C)
	r.Exact = true
	for l := range nm {
		num, den := 0.0, 0.0
		for q, w := range rule.Weights {
			d := mv.At(q, l) - fit.At(q, l)
			num += w * d * d
			den += w * mv.At(q, l) * mv.At(q, l)
		}
		res := math.Sqrt(num / den)
		r.Residual = max(r.Residual, res)
		if res > ExactTolerance {
			r.Exact = false
		}
	}
	return nil
}

// Restrict returns the slave coefficients reproducing the master combination
// with coefficients coeffs on the slave span.
func (r *Relation) Restrict(coeffs []float64) []float64 {
	out := make([]float64, r.Slave.Order)
	for k := range out {
		for l, c := range coeffs {
			out[k] += r.C.At(k, l) * c
		}
	}
	return out
}

// Link ties master trace function Master to slave trace function Slave:
// master = Coef * slave on the slave span.
type Link struct {
	Master, Slave int
	Coef          float64
}

// Links reports whether every master function equals a multiple of exactly
// one slave function, and returns those pairs in master order. Slave
// functions not named by any link are unmatched.
func (r *Relation) Links(tol float64) ([]Link, bool) {
	if !r.Exact {
		return nil, false
	}
	links := make([]Link, 0, r.Master.Order)
	used := make(map[int]bool, r.Master.Order)
	for l := range r.Master.Order {
		k := -1
		for i := range r.Slave.Order {
			if math.Abs(r.C.At(i, l)) <= tol {
				continue
			}
			if k != -1 {
				return nil, false
			}
			k = i
		}
		if k == -1 || used[k] {
			return nil, false
		}
		used[k] = true
		links = append(links, Link{Master: l, Slave: k, Coef: r.C.At(k, l)})
	}
	return links, true
}
