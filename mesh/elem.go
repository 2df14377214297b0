package mesh

import (
	"fmt"
	"slices"

	"github.com/notargets/hprbs/element"
)

// Elem is a node of an element tree. Its corners are Nodes 0=SW, 1=SE, 2=NW,
// 3=NE and its Edges are 0=bottom, 1=top, 2=left, 3=right.
//
// An Elem is a leaf while Children is empty. Refined elements stay in the
// mesh and keep their basis functions.
type Elem struct {
	ID         int
	Nodes      [4]int
	Edges      [4]int
	Element    *element.Element // root geometry, shared by the whole tree
	Orders     PolyOrders
	Parent     int
	Children   []int
	Refinement HRef // meaningful only when Children is not empty
	HLevels    HLevels
	Locs       []HRefLoc // position of each generation within its parent
}

// IsLeaf reports whether the element has no children.
func (e *Elem) IsLeaf() bool { return len(e.Children) == 0 }

// HasParent reports whether the element was created by h-refinement.
func (e *Elem) HasParent() bool { return e.Parent != NoID }

// Depth returns the number of refinements between the root and e.
func (e *Elem) Depth() int { return len(e.Locs) }

// Materials returns the material parameters of the root element.
func (e *Elem) Materials() element.Materials { return e.Element.Materials }

// ParametricRange returns the region of the root's reference square that e
// covers.
func (e *Elem) ParametricRange() element.ParametricRange {
	r := element.FullRange
	for _, loc := range e.Locs {
		r = loc.SubRange(r)
	}
	return r
}

// RelativeRange returns the region of e expressed in the local reference
// coordinates of ancestor.
func (e *Elem) RelativeRange(ancestor *Elem) element.ParametricRange {
	return e.ParametricRange().Within(ancestor.ParametricRange())
}

// Region returns the physical rectangle covered by e.
func (e *Elem) Region() element.Rect {
	return e.Element.Region(e.ParametricRange())
}

// Jacobian returns (dx/du, dy/dv) of e's own reference mapping.
func (e *Elem) Jacobian() [2]float64 {
	return e.Element.Jacobian(e.ParametricRange())
}

func (e *Elem) String() string {
	return fmt.Sprintf("Elem %d (depth %d, orders %v, leaf %t)", e.ID, e.Depth(), e.Orders, e.IsLeaf())
}

func (e *Elem) newChild(id int, r HRef, idx int) *Elem {
	return &Elem{
		ID:      id,
		Nodes:   [4]int{NoID, NoID, NoID, NoID},
		Edges:   [4]int{NoID, NoID, NoID, NoID},
		Element: e.Element,
		Orders:  e.Orders,
		Parent:  e.ID,
		HLevels: e.HLevels.Refined(r),
		Locs:    append(slices.Clone(e.Locs), r.Loc(idx)),
	}
}

func (e *Elem) complete() bool {
	return !slices.Contains(e.Nodes[:], NoID) && !slices.Contains(e.Edges[:], NoID)
}

func (e *Elem) clone() *Elem {
	c := *e
	c.Children = slices.Clone(e.Children)
	c.Locs = slices.Clone(e.Locs)
	return &c
}
