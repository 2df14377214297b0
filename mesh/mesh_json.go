package mesh

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/notargets/hprbs/element"
	"github.com/notargets/hprbs/internal/logging"
)

// ErrInvalidMeshFile is wrapped by every mesh file validation failure.
var ErrInvalidMeshFile = errors.New("invalid mesh file")

// edgeDefs lists the node index pair of each local edge and the side of that
// edge on which the element sits.
var edgeDefs = [4]struct {
	nodes [2]int
	side  int
}{
	{[2]int{0, 1}, 1},
	{[2]int{2, 3}, 0},
	{[2]int{0, 2}, 1},
	{[2]int{1, 3}, 0},
}

type meshFile struct {
	Elements []struct {
		Materials []float64 `json:"materials"`
		NodeIDs   []int     `json:"node_ids"`
	} `json:"Elements"`
	Nodes [][]float64 `json:"Nodes"`
}

type elemDef struct {
	nodes     [4]int
	materials element.Materials
}

// FromFile loads a mesh from a JSON mesh file.
func FromFile(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mesh file: %w", err)
	}
	defer f.Close()

	m, err := FromJSON(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// FromJSON reads a mesh of the form
//
//	{
//	    "Elements": [{"materials": [eps_re, eps_im, mu_re, mu_im], "node_ids": [sw, se, nw, ne]}],
//	    "Nodes": [[x, y], ...]
//	}
//
// Node ids index the Nodes array. All elements start with orders (1, 1).
func FromJSON(r io.Reader) (*Mesh, error) {
	var mf meshFile
	dec := json.NewDecoder(r)
	if err := dec.Decode(&mf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMeshFile, err)
	}

	points := make([]element.Point, len(mf.Nodes))
	for i, n := range mf.Nodes {
		if len(n) != 2 {
			return nil, fmt.Errorf("%w: node %d must have 2 coordinates, got %d", ErrInvalidMeshFile, i, len(n))
		}
		points[i] = element.Point{X: n[0], Y: n[1]}
	}

	defs := make([]elemDef, len(mf.Elements))
	for i, e := range mf.Elements {
		if len(e.NodeIDs) != 4 {
			return nil, fmt.Errorf("%w: element %d must have 4 node_ids, got %d", ErrInvalidMeshFile, i, len(e.NodeIDs))
		}
		if len(e.Materials) != 4 {
			return nil, fmt.Errorf("%w: element %d must have 4 materials, got %d", ErrInvalidMeshFile, i, len(e.Materials))
		}
		copy(defs[i].nodes[:], e.NodeIDs)
		defs[i].materials = element.MaterialsFromParams([4]float64(e.Materials))
	}

	return build(points, defs)
}

// build assembles the unrefined forest from node locations and element
// definitions, deriving edges and boundary flags from shared node pairs.
func build(points []element.Point, defs []elemDef) (*Mesh, error) {
	for i := range points {
		for j := i + 1; j < len(points); j++ {
			if points[i].Equal(points[j]) {
				return nil, fmt.Errorf("%w: nodes %d and %d share location %v", ErrInvalidMeshFile, i, j, points[i])
			}
		}
	}

	m := &Mesh{log: logging.Noop()}

	// count references per node; boundary nodes have fewer than four
	refs := make([]int, len(points))
	for i, d := range defs {
		seen := make(map[int]bool, 4)
		for _, n := range d.nodes {
			if n < 0 || n >= len(points) {
				return nil, fmt.Errorf("%w: element %d references node %d of %d", ErrInvalidMeshFile, i, n, len(points))
			}
			if seen[n] {
				return nil, fmt.Errorf("%w: element %d uses node %d twice", ErrInvalidMeshFile, i, n)
			}
			seen[n] = true
			refs[n]++
		}
	}
	for i, p := range points {
		if refs[i] > 4 {
			return nil, fmt.Errorf("%w: node %d is shared by %d elements (max 4)", ErrInvalidMeshFile, i, refs[i])
		}
		m.addNode(p, refs[i] < 4)
	}

	for i, d := range defs {
		var corners [4]element.Point
		for k, n := range d.nodes {
			corners[k] = points[n]
		}
		geom, err := element.New(i, corners, d.materials)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMeshFile, err)
		}
		m.Elements = append(m.Elements, geom)
	}

	// map node pairs to edges, in order of first appearance
	type edgeUse struct {
		id    int
		elems [2]int
	}
	pairs := make(map[[2]int]*edgeUse)
	var order [][2]int
	for i, d := range defs {
		for _, def := range edgeDefs {
			key := [2]int{d.nodes[def.nodes[0]], d.nodes[def.nodes[1]]}
			use, ok := pairs[key]
			if !ok {
				use = &edgeUse{id: len(order), elems: [2]int{NoID, NoID}}
				pairs[key] = use
				order = append(order, key)
			}
			if use.elems[def.side] != NoID {
				return nil, fmt.Errorf("%w: side %d of edge %v is claimed by elements %d and %d",
					ErrInvalidMeshFile, def.side, key, use.elems[def.side], i)
			}
			use.elems[def.side] = i
		}
	}

	elemEdges := make([][4]int, len(defs))
	for i := range elemEdges {
		elemEdges[i] = [4]int{NoID, NoID, NoID, NoID}
	}
	for _, key := range order {
		use := pairs[key]
		a, b := m.Nodes[key[0]], m.Nodes[key[1]]
		if !a.Coords.Less(b.Coords, a.Coords.Orientation(b.Coords)) {
			return nil, fmt.Errorf("%w: edge %v is not ordered along its direction", ErrInvalidMeshFile, key)
		}
		boundary := use.elems[0] == NoID || use.elems[1] == NoID
		edge := m.addEdge([2]*Node{a, b}, boundary, NoID)
		for side, elemID := range use.elems {
			if elemID == NoID {
				continue
			}
			idx := ElemEdgeIndex(side, edge.Dir)
			if elemEdges[elemID][idx] != NoID {
				return nil, fmt.Errorf("%w: edge %d of element %d is already set to %d",
					ErrInvalidMeshFile, idx, elemID, elemEdges[elemID][idx])
			}
			elemEdges[elemID][idx] = edge.ID
		}
	}

	for i, d := range defs {
		elem := &Elem{
			ID:      i,
			Nodes:   d.nodes,
			Edges:   elemEdges[i],
			Element: m.Elements[i],
			Orders:  DefaultOrders,
			Parent:  NoID,
		}
		if !elem.complete() {
			return nil, fmt.Errorf("%w: element %d is not a valid quadrilateral", ErrInvalidMeshFile, i)
		}
		m.connect(elem)
	}

	if err := m.SetEdgeActivation(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMeshFile, err)
	}
	return m, nil
}

// connect appends elem to the mesh and attaches it to its edges and nodes.
func (m *Mesh) connect(elem *Elem) {
	m.Elems = append(m.Elems, elem)
	for idx, id := range elem.Edges {
		m.Edges[id].connectElem(elem, idx)
	}
	for _, id := range elem.Nodes {
		m.Nodes[id].connectElem(elem.ID)
	}
}

type nodeJSON struct {
	ID       int        `json:"id"`
	Point    [2]float64 `json:"point"`
	Boundary bool       `json:"boundary"`
}

type edgeJSON struct {
	ID         int     `json:"id"`
	Nodes      [2]int  `json:"nodes"`
	Boundary   bool    `json:"boundary"`
	Dir        string  `json:"dir"`
	Parent     *int    `json:"parent,omitempty"`
	Children   []int   `json:"children,omitempty"`
	ActivePair *[2]int `json:"active_pair,omitempty"`
}

type elemJSON struct {
	ID         int        `json:"id"`
	Root       int        `json:"root"`
	Nodes      [4]int     `json:"nodes"`
	Edges      [4]int     `json:"edges"`
	Orders     [2]int     `json:"orders"`
	HLevels    [2]int     `json:"h_levels"`
	Parent     *int       `json:"parent,omitempty"`
	Children   []int      `json:"children,omitempty"`
	Refinement string     `json:"refinement,omitempty"`
	Materials  [4]float64 `json:"materials"`
}

// ExportJSON writes the refined forest, including edge activation, for
// inspection and plotting. It is not the format read by FromJSON.
func (m *Mesh) ExportJSON(w io.Writer) error {
	out := struct {
		Nodes []nodeJSON `json:"Nodes"`
		Edges []edgeJSON `json:"Edges"`
		Elems []elemJSON `json:"Elems"`
	}{
		Nodes: make([]nodeJSON, 0, len(m.Nodes)),
		Edges: make([]edgeJSON, 0, len(m.Edges)),
		Elems: make([]elemJSON, 0, len(m.Elems)),
	}

	for _, n := range m.Nodes {
		out.Nodes = append(out.Nodes, nodeJSON{ID: n.ID, Point: [2]float64{n.Coords.X, n.Coords.Y}, Boundary: n.Boundary})
	}
	for _, e := range m.Edges {
		ej := edgeJSON{ID: e.ID, Nodes: e.Nodes, Boundary: e.Boundary, Dir: e.Dir.String()}
		if e.HasParent() {
			ej.Parent = &e.Parent
		}
		if e.HasChildren() {
			ej.Children = e.Children[:]
		}
		if pair, ok := e.ActivePair(); ok {
			ej.ActivePair = &pair
		}
		out.Edges = append(out.Edges, ej)
	}
	for _, e := range m.Elems {
		ej := elemJSON{
			ID:        e.ID,
			Root:      e.Element.ID,
			Nodes:     e.Nodes,
			Edges:     e.Edges,
			Orders:    [2]int{e.Orders.Ni, e.Orders.Nj},
			HLevels:   [2]int{e.HLevels.U, e.HLevels.V},
			Children:  e.Children,
			Materials: e.Materials().Params(),
		}
		if e.HasParent() {
			ej.Parent = &e.Parent
		}
		if !e.IsLeaf() {
			ej.Refinement = e.Refinement.String()
		}
		out.Elems = append(out.Elems, ej)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(out)
}
