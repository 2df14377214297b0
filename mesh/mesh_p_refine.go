package mesh

import (
	"context"
	"maps"
	"slices"

	"github.com/notargets/hprbs/internal/logging"
)

// ElemPRefinementWindow returns the range of order deltas that keep an
// element's orders within [1, MaxPolynomialOrder].
func (m *Mesh) ElemPRefinementWindow(id int) (PRefWindow, error) {
	elem, err := m.Elem(id)
	if err != nil {
		return PRefWindow{}, err
	}
	return elem.Orders.Window(), nil
}

// ElemIsPRefinable reports whether an element is a leaf whose orders can
// still be increased in both directions.
func (m *Mesh) ElemIsPRefinable(id int) (bool, error) {
	elem, err := m.Elem(id)
	if err != nil {
		return false, err
	}
	return elem.IsLeaf() && elem.Orders.Ni < MaxPolynomialOrder && elem.Orders.Nj < MaxPolynomialOrder, nil
}

// GlobalPRefinement applies r to every leaf, clamping the result into the
// valid order range.
func (m *Mesh) GlobalPRefinement(r PRef) error {
	return m.PRefineWithFilter(func(*Elem) (PRef, bool) { return r, true })
}

// PRefineWithFilter applies the refinement returned by filter to every leaf
// for which filter reports true, clamping the result into the valid range.
func (m *Mesh) PRefineWithFilter(filter func(*Elem) (PRef, bool)) error {
	return m.PRefineWithFilterBounded(func(e *Elem, _ PRefWindow) (PRef, bool) {
		return filter(e)
	})
}

// PRefineWithFilterBounded is like PRefineWithFilter, but passes each leaf's
// refinement window to filter.
func (m *Mesh) PRefineWithFilterBounded(filter func(*Elem, PRefWindow) (PRef, bool)) error {
	var plan []PRefRequest
	for _, e := range m.Elems {
		if !e.IsLeaf() {
			continue
		}
		w := e.Orders.Window()
		if r, ok := filter(e, w); ok {
			plan = append(plan, PRefRequest{ElemID: e.ID, Ref: r.ConstrainWithin(w)})
		}
	}
	return m.executePRefinements("filter", plan)
}

// PRefineElems applies r to each listed element. The whole list fails if any
// element is unknown, not a leaf, or would leave the valid order range.
func (m *Mesh) PRefineElems(ids []int, r PRef) error {
	reqs := make([]PRefRequest, len(ids))
	for i, id := range ids {
		reqs[i] = PRefRequest{ElemID: id, Ref: r}
	}
	return m.executePRefinements("elems", reqs)
}

// ExecutePRefinements applies a batch of relative refinements. Requests for
// the same element are summed. The batch is all-or-nothing.
func (m *Mesh) ExecutePRefinements(reqs []PRefRequest) error {
	return m.executePRefinements("execute", reqs)
}

func (m *Mesh) executePRefinements(op string, reqs []PRefRequest) error {
	merged := make(map[int]PRef, len(reqs))
	for _, req := range reqs {
		elem, err := m.Elem(req.ElemID)
		if err != nil {
			return &PRefError{Op: op, ElemID: req.ElemID, Err: ErrElemDoesntExist}
		}
		if !elem.IsLeaf() {
			return &PRefError{Op: op, ElemID: req.ElemID, Err: ErrElemHasChildren}
		}
		merged[req.ElemID] = merged[req.ElemID].Add(req.Ref)
	}

	next := make(map[int]PolyOrders, len(merged))
	for id, r := range merged {
		orders, err := m.Elems[id].Orders.Refined(r)
		if err != nil {
			return &PRefError{Op: op, ElemID: id, Err: err}
		}
		next[id] = orders
	}
	return m.commitOrders(op, next)
}

// SetGlobalExpansionOrders sets the orders of every leaf.
func (m *Mesh) SetGlobalExpansionOrders(orders PolyOrders) error {
	return m.SetExpansionsWithFilter(func(*Elem) (PolyOrders, bool) { return orders, true })
}

// SetExpansionOnElems sets the orders of each listed element.
func (m *Mesh) SetExpansionOnElems(ids []int, orders PolyOrders) error {
	reqs := make([]OrdersRequest, len(ids))
	for i, id := range ids {
		reqs[i] = OrdersRequest{ElemID: id, Orders: orders}
	}
	return m.setExpansionOrders("elems", reqs)
}

// SetExpansionsWithFilter sets the orders returned by filter on every leaf for
// which filter reports true. Orders outside [1, MaxPolynomialOrder] fail the
// whole call.
func (m *Mesh) SetExpansionsWithFilter(filter func(*Elem) (PolyOrders, bool)) error {
	var reqs []OrdersRequest
	for _, e := range m.Elems {
		if !e.IsLeaf() {
			continue
		}
		if o, ok := filter(e); ok {
			reqs = append(reqs, OrdersRequest{ElemID: e.ID, Orders: o})
		}
	}
	return m.setExpansionOrders("filter", reqs)
}

// SetExpansionOrders sets absolute orders for a batch of elements. Listing an
// element twice is an error. The batch is all-or-nothing.
func (m *Mesh) SetExpansionOrders(reqs []OrdersRequest) error {
	return m.setExpansionOrders("set", reqs)
}

func (m *Mesh) setExpansionOrders(op string, reqs []OrdersRequest) error {
	next := make(map[int]PolyOrders, len(reqs))
	for _, req := range reqs {
		elem, err := m.Elem(req.ElemID)
		if err != nil {
			return &PRefError{Op: op, ElemID: req.ElemID, Err: ErrElemDoesntExist}
		}
		if !elem.IsLeaf() {
			return &PRefError{Op: op, ElemID: req.ElemID, Err: ErrElemHasChildren}
		}
		if err := req.Orders.Validate(); err != nil {
			return &PRefError{Op: op, ElemID: req.ElemID, Err: err}
		}
		if _, dup := next[req.ElemID]; dup {
			return &PRefError{Op: op, ElemID: req.ElemID, Err: ErrDoubleRefinement}
		}
		next[req.ElemID] = req.Orders
	}
	return m.commitOrders(op, next)
}

func (m *Mesh) commitOrders(op string, next map[int]PolyOrders) error {
	changed := 0
	for _, id := range slices.Sorted(maps.Keys(next)) {
		if m.Elems[id].Orders != next[id] {
			m.Elems[id].Orders = next[id]
			changed++
		}
	}
	if changed == 0 {
		return nil
	}

	m.metrics.AddRefinements("p", changed)
	logging.OrNoop(m.log).Debug(context.Background(), "applied p-refinements",
		logging.String("op", op),
		logging.Int("changed", changed),
		logging.String("max_orders", m.MaxExpansionOrders().String()),
	)
	return nil
}
