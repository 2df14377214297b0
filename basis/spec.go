package basis

import (
	"fmt"

	"github.com/notargets/hprbs/element"
	"github.com/notargets/hprbs/mesh"
)

// NoEdge is the Edge of a spec supported inside its element.
const NoEdge = -1

// Spec identifies one vector basis function of an element. A U spec points
// along u with Power(I) in u and Poly(J) in v. A V spec points along v with
// Poly(I) in u and Power(J) in v.
type Spec struct {
	Dir  element.ParaDir
	I, J int
}

// Specs lists the basis of an element with the given orders: U specs with
// I < Ni and J <= Nj, followed by V specs with I <= Ni and J < Nj.
func Specs(o mesh.PolyOrders) []Spec {
	specs := make([]Spec, 0, Count(o))
	for i := 0; i < o.Ni; i++ {
		for j := 0; j <= o.Nj; j++ {
			specs = append(specs, Spec{Dir: element.U, I: i, J: j})
		}
	}
	for i := 0; i <= o.Ni; i++ {
		for j := 0; j < o.Nj; j++ {
			specs = append(specs, Spec{Dir: element.V, I: i, J: j})
		}
	}
	return specs
}

// Count returns len(Specs(o)).
func Count(o mesh.PolyOrders) int {
	return o.Ni*(o.Nj+1) + (o.Ni+1)*o.Nj
}

// Edge returns the local index of the only edge on which the spec has a
// tangential trace, or NoEdge if its trace vanishes on every edge.
func (s Spec) Edge() int {
	switch {
	case s.Dir == element.U && s.J < 2:
		return s.J
	case s.Dir == element.V && s.I < 2:
		return s.I + 2
	}
	return NoEdge
}

// TraceIndex returns the index of the spec's trace function along its edge.
func (s Spec) TraceIndex() int {
	if s.Dir == element.U {
		return s.I
	}
	return s.J
}

// Value is a basis function, or a field, at one point.
type Value struct {
	E    [2]float64
	Curl float64
}

// At evaluates the spec at local coordinates (u, v) of an element whose
// reference mapping has the Jacobian jac = (dx/du, dy/dv).
func (s Spec) At(fn ShapeFn, u, v float64, jac [2]float64) Value {
	jx, jy := jac[0], jac[1]
	if s.Dir == element.U {
		pu, _ := fn.Power(s.I, u)
		qv, dqv := fn.Poly(s.J, v)
		return Value{
			E:    [2]float64{pu * qv / jx, 0},
			Curl: -pu * dqv / (jx * jy),
		}
	}
	qu, dqu := fn.Poly(s.I, u)
	pv, _ := fn.Power(s.J, v)
	return Value{
		E:    [2]float64{0, qu * pv / jy},
		Curl: dqu * pv / (jx * jy),
	}
}

func (s Spec) String() string {
	return fmt.Sprintf("%v[%d,%d]", s.Dir, s.I, s.J)
}
