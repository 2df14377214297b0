package mesh

import (
	"errors"
	"fmt"
)

// MaxPolynomialOrder is the highest expansion order in either direction.
const MaxPolynomialOrder = 20

// PolyOrders are the expansion orders of an element in the u and v
// directions.
type PolyOrders struct {
	Ni, Nj int
}

// DefaultOrders is the expansion assigned to elements at load time.
var DefaultOrders = PolyOrders{Ni: 1, Nj: 1}

// Validate reports whether both orders lie in [1, MaxPolynomialOrder].
func (o PolyOrders) Validate() error {
	switch {
	case o.Ni > MaxPolynomialOrder || o.Nj > MaxPolynomialOrder:
		return fmt.Errorf("orders %v: %w", o, ErrExceededMaxExpansion)
	case o.Ni < 1 || o.Nj < 1:
		return fmt.Errorf("orders %v: %w", o, ErrNegExpansion)
	}
	return nil
}

// Refined applies r to the orders, failing if the result is out of range.
func (o PolyOrders) Refined(r PRef) (PolyOrders, error) {
	next := PolyOrders{Ni: o.Ni + r.Di, Nj: o.Nj + r.Dj}
	if err := next.Validate(); err != nil {
		return o, err
	}
	return next, nil
}

// Window returns the range of deltas that keep the orders valid.
func (o PolyOrders) Window() PRefWindow {
	return PRefWindow{
		{-(o.Ni - 1), MaxPolynomialOrder - o.Ni},
		{-(o.Nj - 1), MaxPolynomialOrder - o.Nj},
	}
}

// Max returns the componentwise maximum of o and p.
func (o PolyOrders) Max(p PolyOrders) PolyOrders {
	return PolyOrders{Ni: max(o.Ni, p.Ni), Nj: max(o.Nj, p.Nj)}
}

func (o PolyOrders) String() string {
	return fmt.Sprintf("(%d, %d)", o.Ni, o.Nj)
}

// PRefWindow holds the inclusive [min, max] delta allowed in each direction.
type PRefWindow [2][2]int

// PRef is a signed change of expansion orders.
type PRef struct {
	Di, Dj int
}

// Add merges two p-refinements requested for the same element.
func (r PRef) Add(o PRef) PRef {
	return PRef{Di: r.Di + o.Di, Dj: r.Dj + o.Dj}
}

// ConstrainWithin clamps r to the window w.
func (r PRef) ConstrainWithin(w PRefWindow) PRef {
	return PRef{
		Di: min(max(r.Di, w[0][0]), w[0][1]),
		Dj: min(max(r.Dj, w[1][0]), w[1][1]),
	}
}

func (r PRef) String() string {
	return fmt.Sprintf("PRef(i: %+d, j: %+d)", r.Di, r.Dj)
}

// PRefRequest pairs an element with a relative p-refinement.
type PRefRequest struct {
	ElemID int
	Ref    PRef
}

// OrdersRequest pairs an element with absolute expansion orders.
type OrdersRequest struct {
	ElemID int
	Orders PolyOrders
}

var (
	ErrNegExpansion         = errors.New("expansion order below 1")
	ErrExceededMaxExpansion = errors.New("expansion order above maximum")
)

// PRefError reports a p-refinement that could not be applied. The mesh is
// left unchanged when a PRefError is returned.
type PRefError struct {
	Op     string
	ElemID int
	Err    error
}

func (e *PRefError) Error() string {
	if e.ElemID == NoID {
		return fmt.Sprintf("p-refinement %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("p-refinement %s of elem %d: %v", e.Op, e.ElemID, e.Err)
}

func (e *PRefError) Unwrap() error { return e.Err }
