package mesh

import (
	"cmp"
	"maps"
	"slices"

	"github.com/notargets/hprbs/element"
)

// Edge joins two nodes. Nodes are ordered low to high along Dir.
//
// Side 0 of an edge is below (U edges) or left of (V edges) the edge, side 1
// is above or right of it. Each side records the elements attached to it,
// keyed by their h-level ranking so that the deepest element is last.
type Edge struct {
	ID        int
	Nodes     [2]int
	Boundary  bool
	Dir       element.ParaDir
	Length    float64
	Parent    int
	Children  [2]int
	ChildNode int

	sides    [2]map[[2]int]int
	active   [2]int
	isActive bool
}

func newEdge(id int, nodes [2]*Node, boundary bool, parent int) *Edge {
	return &Edge{
		ID:        id,
		Nodes:     [2]int{nodes[0].ID, nodes[1].ID},
		Boundary:  boundary,
		Dir:       nodes[0].Coords.Orientation(nodes[1].Coords),
		Length:    nodes[0].Coords.Dist(nodes[1].Coords),
		Parent:    parent,
		Children:  [2]int{NoID, NoID},
		ChildNode: NoID,
		sides:     [2]map[[2]int]int{{}, {}},
	}
}

// HasChildren reports whether the edge has been split by h-refinement.
func (e *Edge) HasChildren() bool { return e.ChildNode != NoID }

// HasParent reports whether the edge was created by splitting another edge.
func (e *Edge) HasParent() bool { return e.Parent != NoID }

// IsBoundary reports whether either side of the edge has no elements.
func (e *Edge) IsBoundary() bool {
	return len(e.sides[0]) == 0 || len(e.sides[1]) == 0
}

// SideElems returns the ids of the elements attached to side, ordered from
// the coarsest to the finest.
func (e *Edge) SideElems(side int) []int {
	keys := slices.SortedFunc(maps.Keys(e.sides[side]), compareRanking)
	ids := make([]int, len(keys))
	for i, k := range keys {
		ids[i] = e.sides[side][k]
	}
	return ids
}

// ActivePair returns the elements that own the basis functions supported on
// this edge: the deepest element on side 0 followed by the deepest element on
// side 1. The second result is false if the edge is not active.
func (e *Edge) ActivePair() ([2]int, bool) {
	return e.active, e.isActive
}

// SideOf returns the side of the edge on which elem sits.
func (e *Edge) SideOf(elemID int) (int, bool) {
	for side := range 2 {
		for _, id := range e.sides[side] {
			if id == elemID {
				return side, true
			}
		}
	}
	return 0, false
}

func (e *Edge) connectElem(elem *Elem, edgeIdx int) {
	e.sides[edgeSide(edgeIdx)][elem.HLevels.EdgeRanking(e.Dir)] = elem.ID
}

// Deepest returns the finest element attached to side.
func (e *Edge) Deepest(side int) (int, bool) {
	if len(e.sides[side]) == 0 {
		return NoID, false
	}
	top := slices.MaxFunc(slices.Collect(maps.Keys(e.sides[side])), compareRanking)
	return e.sides[side][top], true
}

func (e *Edge) setActivation() bool {
	s0, ok0 := e.Deepest(0)
	s1, ok1 := e.Deepest(1)
	if !ok0 || !ok1 {
		e.resetActivation()
		return false
	}
	e.active = [2]int{s0, s1}
	e.isActive = true
	return true
}

func (e *Edge) resetActivation() {
	e.active = [2]int{NoID, NoID}
	e.isActive = false
}

func (e *Edge) clone() *Edge {
	c := *e
	c.sides = [2]map[[2]int]int{maps.Clone(e.sides[0]), maps.Clone(e.sides[1])}
	return &c
}

// edgeSide returns the side of an edge on which an element sits, given the
// index of that edge within the element.
func edgeSide(edgeIdx int) int {
	if edgeIdx == 0 || edgeIdx == 2 {
		return 1
	}
	return 0
}

// ElemEdgeIndex returns the local edge index an element sitting on side of an
// edge with direction dir uses for that edge.
func ElemEdgeIndex(side int, dir element.ParaDir) int {
	switch {
	case dir == element.U && side == 0:
		return 1
	case dir == element.U:
		return 0
	case side == 0:
		return 3
	default:
		return 2
	}
}

func compareRanking(a, b [2]int) int {
	if c := cmp.Compare(a[0], b[0]); c != 0 {
		return c
	}
	return cmp.Compare(a[1], b[1])
}
