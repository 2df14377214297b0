// Package mesh holds the element forest of a refined 2D quadrilateral mesh
// together with its nodes and edges, and the h- and p-refinement operators
// that grow it.
//
// Refinement is by superposition: children are layered over their parent,
// which keeps its data and its basis functions. Nothing is ever removed, so
// every id stays valid for the lifetime of the mesh.
package mesh

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/notargets/hprbs/element"
	"github.com/notargets/hprbs/internal/logging"
	"github.com/notargets/hprbs/internal/observability"
)

// NoID marks an absent parent, child or node reference.
const NoID = -1

// MinEdgeLength is the shortest edge h-refinement may create.
const MinEdgeLength = 3.0518e-5

var (
	ErrNoActivePair           = errors.New("interior edge has no active elem pair")
	ErrInconsistentActivation = errors.New("child edges disagree on activation")
)

// Mesh is a forest of element trees over a shared set of nodes and edges.
// A Mesh is not safe for concurrent mutation.
type Mesh struct {
	Elements []*element.Element // root geometries
	Nodes    []*Node
	Edges    []*Edge
	Elems    []*Elem

	log     logging.Logger
	metrics *observability.Collector
}

// Blank returns a mesh with no elements.
func Blank() *Mesh {
	return &Mesh{log: logging.Noop()}
}

// Unit returns a mesh of a single element covering [-1,1]^2.
func Unit() *Mesh {
	m, err := build(
		[]element.Point{{X: -1, Y: -1}, {X: 1, Y: -1}, {X: -1, Y: 1}, {X: 1, Y: 1}},
		[]elemDef{{nodes: [4]int{0, 1, 2, 3}, materials: element.DefaultMaterials()}},
	)
	if err != nil {
		panic(fmt.Sprintf("unit mesh: %v", err))
	}
	return m
}

// SetLogger attaches a logger to the mesh. A nil logger disables logging.
func (m *Mesh) SetLogger(l logging.Logger) { m.log = logging.OrNoop(l) }

// SetMetrics attaches a metrics collector that counts applied refinements.
func (m *Mesh) SetMetrics(c *observability.Collector) { m.metrics = c }

// Elem returns the element with the given id.
func (m *Mesh) Elem(id int) (*Elem, error) {
	if id < 0 || id >= len(m.Elems) {
		return nil, fmt.Errorf("elem %d: %w", id, ErrElemDoesntExist)
	}
	return m.Elems[id], nil
}

// ElemPoints returns the corner points of an element.
func (m *Mesh) ElemPoints(id int) ([4]element.Point, error) {
	elem, err := m.Elem(id)
	if err != nil {
		return [4]element.Point{}, err
	}
	var pts [4]element.Point
	for i, n := range elem.Nodes {
		pts[i] = m.Nodes[n].Coords
	}
	return pts, nil
}

// EdgePoints returns the end points of an edge.
func (m *Mesh) EdgePoints(id int) ([2]element.Point, error) {
	if id < 0 || id >= len(m.Edges) {
		return [2]element.Point{}, fmt.Errorf("edge %d does not exist", id)
	}
	e := m.Edges[id]
	return [2]element.Point{m.Nodes[e.Nodes[0]].Coords, m.Nodes[e.Nodes[1]].Coords}, nil
}

// Leaves returns the ids of all leaf elements in ascending order.
func (m *Mesh) Leaves() []int {
	var ids []int
	for _, e := range m.Elems {
		if e.IsLeaf() {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

// Ancestors returns the ancestors of an element, nearest first. The element
// itself is listed first when includeSelf is set.
func (m *Mesh) Ancestors(id int, includeSelf bool) ([]int, error) {
	elem, err := m.Elem(id)
	if err != nil {
		return nil, err
	}
	var ids []int
	if includeSelf {
		ids = append(ids, id)
	}
	for p := elem.Parent; p != NoID; p = m.Elems[p].Parent {
		ids = append(ids, p)
	}
	return ids, nil
}

// Descendants returns the descendants of an element in breadth-first order.
// The element itself is listed first when includeSelf is set.
func (m *Mesh) Descendants(id int, includeSelf bool) ([]int, error) {
	if _, err := m.Elem(id); err != nil {
		return nil, err
	}
	queue := []int{id}
	var ids []int
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur != id || includeSelf {
			ids = append(ids, cur)
		}
		queue = append(queue, m.Elems[cur].Children...)
	}
	return ids, nil
}

// DescendantEdges returns the edges created by splitting an edge, in
// breadth-first order.
func (m *Mesh) DescendantEdges(id int, includeSelf bool) ([]int, error) {
	if id < 0 || id >= len(m.Edges) {
		return nil, fmt.Errorf("edge %d does not exist", id)
	}
	queue := []int{id}
	var ids []int
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur != id || includeSelf {
			ids = append(ids, cur)
		}
		if e := m.Edges[cur]; e.HasChildren() {
			queue = append(queue, e.Children[0], e.Children[1])
		}
	}
	return ids, nil
}

// EdgeAncestors returns the edges an edge was split from, nearest first.
func (m *Mesh) EdgeAncestors(id int, includeSelf bool) ([]int, error) {
	if id < 0 || id >= len(m.Edges) {
		return nil, fmt.Errorf("edge %d does not exist", id)
	}
	var ids []int
	if includeSelf {
		ids = append(ids, id)
	}
	for p := m.Edges[id].Parent; p != NoID; p = m.Edges[p].Parent {
		ids = append(ids, p)
	}
	return ids, nil
}

// LeafAt returns the leaf element containing p.
func (m *Mesh) LeafAt(p element.Point) (int, bool) {
	for _, e := range m.Elems {
		if e.HasParent() || !e.Region().Contains(p) {
			continue
		}
		cur := e
		for !cur.IsLeaf() {
			next := NoID
			for _, c := range cur.Children {
				if m.Elems[c].Region().Contains(p) {
					next = c
					break
				}
			}
			if next == NoID {
				return NoID, false
			}
			cur = m.Elems[next]
		}
		return cur.ID, true
	}
	return NoID, false
}

// HangingEdges returns the root edges that pass through a corner of a root
// element. Roots meeting along such an edge do not share their nodes, so no
// interface ties their traces together.
func (m *Mesh) HangingEdges() []int {
	corners := make(map[int]bool)
	var edges []int
	for _, e := range m.Elems {
		if e.HasParent() {
			continue
		}
		for _, id := range e.Nodes {
			corners[id] = true
		}
		for _, id := range e.Edges {
			if !slices.Contains(edges, id) {
				edges = append(edges, id)
			}
		}
	}

	var hanging []int
	for _, id := range edges {
		a, b := m.Nodes[m.Edges[id].Nodes[0]].Coords, m.Nodes[m.Edges[id].Nodes[1]].Coords
		for n := range corners {
			if m.Nodes[n].Coords.OnSegment(a, b) {
				hanging = append(hanging, id)
				break
			}
		}
	}
	slices.Sort(hanging)
	return hanging
}

// MaxExpansionOrders returns the largest orders used by any element.
func (m *Mesh) MaxExpansionOrders() PolyOrders {
	var o PolyOrders
	for _, e := range m.Elems {
		o = o.Max(e.Orders)
	}
	return o
}

// SetEdgeActivation recomputes which element pair owns the basis functions of
// every interior edge. Within a tree of split edges, the finest edges with
// elements on both sides are active and their ancestors are not.
func (m *Mesh) SetEdgeActivation() error {
	for _, e := range m.Edges {
		e.resetActivation()
	}
	for _, e := range m.Edges {
		if e.HasParent() || e.Boundary {
			continue
		}
		ok, err := m.activateEdgeTree(e.ID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("edge %d: %w", e.ID, ErrNoActivePair)
		}
	}
	return nil
}

func (m *Mesh) activateEdgeTree(id int) (bool, error) {
	e := m.Edges[id]
	if !e.setActivation() {
		return false, nil
	}
	if !e.HasChildren() {
		return true, nil
	}
	a, err := m.activateEdgeTree(e.Children[0])
	if err != nil {
		return false, err
	}
	b, err := m.activateEdgeTree(e.Children[1])
	if err != nil {
		return false, err
	}
	switch {
	case a && b:
		e.resetActivation()
	case a != b:
		return false, fmt.Errorf("edge %d: %w", id, ErrInconsistentActivation)
	}
	return true, nil
}

func (m *Mesh) addNode(coords element.Point, boundary bool) *Node {
	n := newNode(len(m.Nodes), coords, boundary)
	m.Nodes = append(m.Nodes, n)
	return n
}

func (m *Mesh) addEdge(nodes [2]*Node, boundary bool, parent int) *Edge {
	e := newEdge(len(m.Edges), nodes, boundary, parent)
	m.Edges = append(m.Edges, e)
	return e
}

// Clone returns an independent copy of the mesh. Refining the copy leaves m
// untouched.
func (m *Mesh) Clone() *Mesh { return m.clone() }

// clone deep-copies the topology. Root geometries are immutable and shared.
func (m *Mesh) clone() *Mesh {
	c := &Mesh{
		Elements: m.Elements,
		Nodes:    make([]*Node, len(m.Nodes)),
		Edges:    make([]*Edge, len(m.Edges)),
		Elems:    make([]*Elem, len(m.Elems)),
		log:      m.log,
		metrics:  m.metrics,
	}
	for i, n := range m.Nodes {
		c.Nodes[i] = n.clone()
	}
	for i, e := range m.Edges {
		c.Edges[i] = e.clone()
	}
	for i, e := range m.Elems {
		c.Elems[i] = e.clone()
	}
	return c
}

// adopt takes over the topology of o, a refined clone of m. Existing nodes,
// edges and elems are updated in place so pointers held by callers see the
// new state; objects o added are appended.
func (m *Mesh) adopt(o *Mesh) {
	m.Nodes = adoptAll(m.Nodes, o.Nodes)
	m.Edges = adoptAll(m.Edges, o.Edges)
	m.Elems = adoptAll(m.Elems, o.Elems)
}

func adoptAll[T any](dst, src []*T) []*T {
	for i, v := range src[:len(dst)] {
		*dst[i] = *v
	}
	return append(dst, src[len(dst):]...)
}

// String returns a short human readable summary of the mesh.
func (m *Mesh) String() string {
	var (
		sb       strings.Builder
		maxDepth int
		leaves   int
		active   int
	)
	for _, e := range m.Elems {
		maxDepth = max(maxDepth, e.Depth())
		if e.IsLeaf() {
			leaves++
		}
	}
	for _, e := range m.Edges {
		if _, ok := e.ActivePair(); ok {
			active++
		}
	}
	fmt.Fprintf(&sb, "Mesh: %d roots, %d elems (%d leaves, max depth %d)\n",
		len(m.Elements), len(m.Elems), leaves, maxDepth)
	fmt.Fprintf(&sb, "  Nodes: %d, Edges: %d (%d active)\n", len(m.Nodes), len(m.Edges), active)
	fmt.Fprintf(&sb, "  Max expansion orders: %v", m.MaxExpansionOrders())
	return sb.String()
}
