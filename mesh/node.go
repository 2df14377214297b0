package mesh

import (
	"slices"

	"github.com/notargets/hprbs/element"
)

// Node is a mesh vertex. A node never moves once created.
type Node struct {
	ID       int
	Coords   element.Point
	Boundary bool
	elems    []int
}

func newNode(id int, coords element.Point, boundary bool) *Node {
	return &Node{ID: id, Coords: coords, Boundary: boundary}
}

// Elems returns the ids of the elements that use the node as a corner.
func (n *Node) Elems() []int {
	return slices.Clone(n.elems)
}

func (n *Node) connectElem(id int) {
	n.elems = append(n.elems, id)
}

func (n *Node) clone() *Node {
	c := *n
	c.elems = slices.Clone(n.elems)
	return &c
}
