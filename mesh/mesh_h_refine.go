package mesh

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/notargets/hprbs/element"
	"github.com/notargets/hprbs/internal/logging"
)

// tWiring connects the children of a T refinement to the halves of each
// parent edge: the parent edge index, the two children touching it, the
// corner of each child at the edge midpoint, and the index each child uses
// for the new edge joining that midpoint to the center.
var tWiring = [4]struct {
	edge     int
	children [2]int
	shared   [2]int
	internal [2]int
}{
	{0, [2]int{0, 1}, [2]int{1, 0}, [2]int{3, 2}},
	{1, [2]int{2, 3}, [2]int{3, 2}, [2]int{3, 2}},
	{2, [2]int{0, 2}, [2]int{2, 0}, [2]int{1, 0}},
	{3, [2]int{1, 3}, [2]int{3, 1}, [2]int{1, 0}},
}

// bisectWiring lists, for U and V refinements, the two split parent edges
// with the corner each child places at the split point and the corner each
// child keeps from the parent.
var bisectWiring = map[HRefKind][2]struct {
	edge   int
	shared [2]int
	outer  [2]int
}{
	KindU: {
		{0, [2]int{1, 0}, [2]int{0, 1}},
		{1, [2]int{3, 2}, [2]int{2, 3}},
	},
	KindV: {
		{2, [2]int{2, 0}, [2]int{0, 2}},
		{3, [2]int{3, 1}, [2]int{1, 3}},
	},
}

// ElemIsHRefinable reports whether an element is a leaf whose edges are all
// long enough to be split without going below MinEdgeLength.
func (m *Mesh) ElemIsHRefinable(id int) (bool, error) {
	if _, err := m.Elem(id); err != nil {
		return false, err
	}
	return m.checkHRefinable(id) == nil, nil
}

func (m *Mesh) checkHRefinable(id int) error {
	elem, err := m.Elem(id)
	if err != nil {
		return ErrElemDoesntExist
	}
	if !elem.IsLeaf() {
		return ErrElemHasChildren
	}
	for _, eid := range elem.Edges {
		if m.Edges[eid].Length/2 < MinEdgeLength {
			return fmt.Errorf("edge %d: %w", eid, ErrMinEdgeLength)
		}
	}
	return nil
}

// GlobalHRefinement applies r to every eligible leaf. Ineligible elements are
// skipped.
func (m *Mesh) GlobalHRefinement(r HRef) error {
	return m.HRefineWithFilter(func(*Elem) (HRef, bool) { return r, true })
}

// HRefineWithFilter applies the refinement returned by filter to every
// eligible leaf for which filter reports true. Ineligible elements are never
// passed to filter. An extension whose child could not be split again is
// dropped, leaving the plain bisection.
func (m *Mesh) HRefineWithFilter(filter func(*Elem) (HRef, bool)) error {
	var plan []HRefRequest
	for _, e := range m.Elems {
		if m.checkHRefinable(e.ID) != nil {
			continue
		}
		r, ok := filter(e)
		if !ok {
			continue
		}
		if !m.extensionFits(e.ID, r) {
			logging.OrNoop(m.log).Debug(context.Background(), "dropping h-refinement extension",
				logging.Int("elem", e.ID), logging.String("ref", r.String()))
			r = HRef{Kind: r.Kind}
		}
		plan = append(plan, HRefRequest{ElemID: e.ID, Ref: r})
	}
	return m.commitHRefinements("filter", plan)
}

// HRefineElems applies r to each listed element. The whole list fails if any
// element is unknown or ineligible.
func (m *Mesh) HRefineElems(ids []int, r HRef) error {
	reqs := make([]HRefRequest, len(ids))
	for i, id := range ids {
		reqs[i] = HRefRequest{ElemID: id, Ref: r}
	}
	return m.executeHRefinements("elems", reqs)
}

// ExecuteHRefinements applies a batch of refinements. Requests for the same
// element are merged with HRef.Add. The batch is all-or-nothing: on error
// the mesh is unchanged.
func (m *Mesh) ExecuteHRefinements(reqs []HRefRequest) error {
	return m.executeHRefinements("execute", reqs)
}

func (m *Mesh) executeHRefinements(op string, reqs []HRefRequest) error {
	merged := make(map[int]HRef, len(reqs))
	for _, req := range reqs {
		if err := m.checkHRefinable(req.ElemID); err != nil {
			return &HRefError{Op: op, ElemID: req.ElemID, Err: err}
		}
		prev, ok := merged[req.ElemID]
		if !ok {
			merged[req.ElemID] = req.Ref
			continue
		}
		sum, err := prev.Add(req.Ref)
		if err != nil {
			return &HRefError{Op: op, ElemID: req.ElemID, Err: err}
		}
		merged[req.ElemID] = sum
	}

	plan := make([]HRefRequest, 0, len(merged))
	for _, id := range slices.Sorted(maps.Keys(merged)) {
		r := merged[id]
		if !m.extensionFits(id, r) {
			return &HRefError{Op: op, ElemID: id, Err: fmt.Errorf("extension of %v: %w", r, ErrMinEdgeLength)}
		}
		plan = append(plan, HRefRequest{ElemID: id, Ref: r})
	}
	return m.commitHRefinements(op, plan)
}

// extensionFits reports whether the extension child of r applied to leaf id
// can itself be split. The child inherits halves of the edges r splits.
func (m *Mesh) extensionFits(id int, r HRef) bool {
	if _, ok := r.Extension(); !ok {
		return true
	}
	split := [2]int{0, 1}
	if r.Kind == KindV {
		split = [2]int{2, 3}
	}
	for _, idx := range split {
		if m.Edges[m.Elems[id].Edges[idx]].Length/4 < MinEdgeLength {
			return false
		}
	}
	return true
}

// commitHRefinements applies plan to a copy of the topology and adopts the
// copy only if every refinement, extension and the edge activation succeed.
func (m *Mesh) commitHRefinements(op string, plan []HRefRequest) error {
	if len(plan) == 0 {
		return nil
	}

	work := m.clone()
	n, err := work.applyHRefinements(op, plan)
	if err != nil {
		return err
	}
	if err := work.SetEdgeActivation(); err != nil {
		return &HRefError{Op: op, ElemID: NoID, Err: err}
	}
	m.adopt(work)

	m.metrics.AddRefinements("h", n)
	logging.OrNoop(m.log).Debug(context.Background(), "applied h-refinements",
		logging.String("op", op),
		logging.Int("refined", n),
		logging.Int("elems", len(m.Elems)),
	)
	return nil
}

func (m *Mesh) applyHRefinements(op string, plan []HRefRequest) (int, error) {
	var extensions []HRefRequest
	for _, req := range plan {
		children, err := m.hRefineElem(req.ElemID, req.Ref)
		if err != nil {
			return 0, &HRefError{Op: op, ElemID: req.ElemID, Err: err}
		}
		if idx, ok := req.Ref.Extension(); ok {
			next := HRefV
			if req.Ref.Kind == KindV {
				next = HRefU
			}
			extensions = append(extensions, HRefRequest{ElemID: children[idx], Ref: next})
		}
	}

	applied := len(plan)
	if len(extensions) > 0 {
		for _, ext := range extensions {
			if err := m.checkHRefinable(ext.ElemID); err != nil {
				return 0, &HRefError{Op: op, ElemID: ext.ElemID, Err: err}
			}
		}
		n, err := m.applyHRefinements(op, extensions)
		if err != nil {
			return 0, err
		}
		applied += n
	}
	return applied, nil
}

// hRefineElem splits one leaf and returns the ids of its new children.
func (m *Mesh) hRefineElem(id int, r HRef) ([]int, error) {
	parent := m.Elems[id]
	if !parent.IsLeaf() {
		return nil, ErrElemHasChildren
	}

	first := len(m.Elems)
	children := make([]*Elem, r.NumChildren())
	for i := range children {
		children[i] = parent.newChild(first+i, r, i)
	}

	var err error
	if r.Kind == KindT {
		err = m.wireT(parent, children)
	} else {
		err = m.wireBisection(parent, r.Kind, children)
	}
	if err != nil {
		return nil, err
	}

	ids := make([]int, len(children))
	for i, child := range children {
		if !child.complete() {
			return nil, fmt.Errorf("child %d of elem %d was not fully connected", child.ID, id)
		}
		m.connect(child)
		ids[i] = child.ID
	}
	parent.Children = ids
	parent.Refinement = r
	return ids, nil
}

func (m *Mesh) wireT(parent *Elem, children []*Elem) error {
	pts, _ := m.ElemPoints(parent.ID)
	center := m.addNode(element.Between(pts[0], pts[3]), false)

	for k, child := range children {
		child.Nodes[k] = parent.Nodes[k]
		child.Nodes[3-k] = center.ID
	}

	for _, w := range tWiring {
		halves, mid, err := m.splitEdge(parent.Edges[w.edge])
		if err != nil {
			return err
		}
		a, b := children[w.children[0]], children[w.children[1]]
		a.Edges[w.edge], b.Edges[w.edge] = halves[0], halves[1]
		a.Nodes[w.shared[0]], b.Nodes[w.shared[1]] = mid, mid

		inner, err := m.edgeBetween(parent, mid, center.ID)
		if err != nil {
			return err
		}
		a.Edges[w.internal[0]], b.Edges[w.internal[1]] = inner, inner
	}
	return nil
}

func (m *Mesh) wireBisection(parent *Elem, kind HRefKind, children []*Elem) error {
	var mids [2]int
	for i, w := range bisectWiring[kind] {
		halves, mid, err := m.splitEdge(parent.Edges[w.edge])
		if err != nil {
			return err
		}
		mids[i] = mid
		children[0].Edges[w.edge], children[1].Edges[w.edge] = halves[0], halves[1]
		children[0].Nodes[w.shared[0]], children[1].Nodes[w.shared[1]] = mid, mid
		children[0].Nodes[w.outer[0]] = parent.Nodes[w.outer[0]]
		children[1].Nodes[w.outer[1]] = parent.Nodes[w.outer[1]]
	}

	inner, err := m.edgeBetween(parent, mids[0], mids[1])
	if err != nil {
		return err
	}

	// the new edge separates the children; the unsplit parent edges stay on
	// the outside of each child
	if kind == KindU {
		children[0].Edges[3], children[1].Edges[2] = inner, inner
		children[0].Edges[2], children[1].Edges[3] = parent.Edges[2], parent.Edges[3]
	} else {
		children[0].Edges[1], children[1].Edges[0] = inner, inner
		children[0].Edges[0], children[1].Edges[1] = parent.Edges[0], parent.Edges[1]
	}
	return nil
}

// splitEdge returns the halves and midpoint node of an edge, splitting it
// first if a neighbor has not already done so.
func (m *Mesh) splitEdge(id int) ([2]int, int, error) {
	e := m.Edges[id]
	if e.HasChildren() {
		return e.Children, e.ChildNode, nil
	}
	if e.Length/2 < MinEdgeLength {
		return [2]int{}, NoID, fmt.Errorf("edge %d: %w", id, ErrMinEdgeLength)
	}

	a, b := m.Nodes[e.Nodes[0]], m.Nodes[e.Nodes[1]]
	mid := m.addNode(element.Between(a.Coords, b.Coords), e.Boundary)
	lo := m.addEdge([2]*Node{a, mid}, e.Boundary, id)
	hi := m.addEdge([2]*Node{mid, b}, e.Boundary, id)

	e.Children = [2]int{lo.ID, hi.ID}
	e.ChildNode = mid.ID
	return e.Children, mid.ID, nil
}

// edgeBetween creates an interior edge joining two nodes inside parent,
// ordering its nodes along the edge direction.
func (m *Mesh) edgeBetween(parent *Elem, a, b int) (int, error) {
	na, nb := m.Nodes[a], m.Nodes[b]
	switch parent.Element.OrderPoints(na.Coords, nb.Coords) {
	case 0:
		return NoID, ErrEdgeOnEqualPoints
	case 1:
		na, nb = nb, na
	}
	return m.addEdge([2]*Node{na, nb}, false, NoID).ID, nil
}
