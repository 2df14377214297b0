package mesh

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/hprbs/element"
)

func loadTwoElement(t *testing.T) *Mesh {
	t.Helper()
	m, err := FromFile("testdata/two_element.json")
	require.NoError(t, err)
	return m
}

func TestUnitMesh(t *testing.T) {
	m := Unit()

	require.Len(t, m.Elems, 1)
	require.Len(t, m.Nodes, 4)
	require.Len(t, m.Edges, 4)

	elem := m.Elems[0]
	assert.Equal(t, [4]int{0, 1, 2, 3}, elem.Nodes)
	assert.Equal(t, [4]int{0, 1, 2, 3}, elem.Edges)
	assert.Equal(t, DefaultOrders, elem.Orders)
	assert.True(t, elem.IsLeaf())
	assert.False(t, elem.HasParent())

	for _, n := range m.Nodes {
		assert.True(t, n.Boundary, "node %d", n.ID)
	}
	for _, e := range m.Edges {
		assert.True(t, e.Boundary, "edge %d", e.ID)
		assert.True(t, e.IsBoundary(), "edge %d", e.ID)
		assert.InDelta(t, 2.0, e.Length, 1e-14)
		_, active := e.ActivePair()
		assert.False(t, active)
	}
	assert.Equal(t, element.U, m.Edges[0].Dir)
	assert.Equal(t, element.U, m.Edges[1].Dir)
	assert.Equal(t, element.V, m.Edges[2].Dir)
	assert.Equal(t, element.V, m.Edges[3].Dir)

	pts, err := m.ElemPoints(0)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, pts[1].X-pts[0].X, 1e-14)
	assert.InDelta(t, 2.0, pts[2].Y-pts[0].Y, 1e-14)
}

func TestFromFileTwoElement(t *testing.T) {
	m := loadTwoElement(t)

	require.Len(t, m.Elems, 2)
	require.Len(t, m.Nodes, 6)
	require.Len(t, m.Edges, 7)

	assert.Equal(t, complex(1.2, 0), m.Elems[1].Materials().EpsRel)
	assert.Equal(t, complex(0.9999, 0), m.Elems[1].Materials().MuRel)

	// the shared edge is elem 0's right edge and elem 1's left edge
	shared := m.Elems[0].Edges[3]
	assert.Equal(t, shared, m.Elems[1].Edges[2])
	e := m.Edges[shared]
	assert.False(t, e.Boundary)
	assert.Equal(t, element.V, e.Dir)
	assert.Equal(t, []int{0}, e.SideElems(0))
	assert.Equal(t, []int{1}, e.SideElems(1))

	pair, ok := e.ActivePair()
	require.True(t, ok)
	assert.Equal(t, [2]int{0, 1}, pair)

	boundary := 0
	for _, edge := range m.Edges {
		if edge.Boundary {
			boundary++
		}
	}
	assert.Equal(t, 6, boundary)
	for _, n := range m.Nodes {
		assert.True(t, n.Boundary)
	}
	assert.ElementsMatch(t, []int{0, 1}, m.Nodes[1].Elems())
}

func TestFromFileGrid(t *testing.T) {
	m, err := FromFile("testdata/grid_2x2.json")
	require.NoError(t, err)

	assert.Len(t, m.Edges, 12)
	assert.False(t, m.Nodes[4].Boundary)
	assert.True(t, m.Nodes[0].Boundary)

	interior := 0
	for _, e := range m.Edges {
		if _, ok := e.ActivePair(); ok {
			interior++
		}
	}
	assert.Equal(t, 4, interior)
}

func TestFromJSONValidation(t *testing.T) {
	const nodes = `"Nodes": [[0,0],[1,0],[0,1],[1,1]]`
	tests := []struct {
		name string
		json string
	}{
		{"malformed", `{"Elements": [`},
		{"node id out of range", `{"Elements": [{"materials": [1,0,1,0], "node_ids": [0,1,2,7]}], ` + nodes + `}`},
		{"negative node id", `{"Elements": [{"materials": [1,0,1,0], "node_ids": [-1,1,2,3]}], ` + nodes + `}`},
		{"repeated node id", `{"Elements": [{"materials": [1,0,1,0], "node_ids": [0,1,1,3]}], ` + nodes + `}`},
		{"three node ids", `{"Elements": [{"materials": [1,0,1,0], "node_ids": [0,1,2]}], ` + nodes + `}`},
		{"short materials", `{"Elements": [{"materials": [1,0,1], "node_ids": [0,1,2,3]}], ` + nodes + `}`},
		{"duplicate node", `{"Elements": [], "Nodes": [[0,0],[1,0],[0,0]]}`},
		{"bad coordinates", `{"Elements": [], "Nodes": [[0,0,0]]}`},
		{"side claimed twice", `{"Elements": [{"materials": [1,0,1,0], "node_ids": [0,1,2,3]}, {"materials": [1,0,1,0], "node_ids": [0,1,2,3]}], ` + nodes + `}`},
		{"degenerate element", `{"Elements": [{"materials": [1,0,1,0], "node_ids": [3,2,1,0]}], ` + nodes + `}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromJSON(strings.NewReader(tt.json))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidMeshFile)
			t.Logf("%v", err)
		})
	}
}

func TestBlankMesh(t *testing.T) {
	m := Blank()
	assert.Empty(t, m.Elems)
	assert.Empty(t, m.Leaves())
	assert.NoError(t, m.GlobalHRefinement(HRefT))
	assert.NoError(t, m.GlobalPRefinement(PRef{Di: 1, Dj: 1}))
	assert.Equal(t, PolyOrders{}, m.MaxExpansionOrders())
}

func TestQueries(t *testing.T) {
	m := Unit()
	require.NoError(t, m.HRefineElems([]int{0}, HRefT))
	require.NoError(t, m.HRefineElems([]int{4}, HRefU))

	anc, err := m.Ancestors(6, true)
	require.NoError(t, err)
	assert.Equal(t, []int{6, 4, 0}, anc)

	desc, err := m.Descendants(0, false)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, desc)

	assert.Equal(t, []int{1, 2, 3, 5, 6}, m.Leaves())

	edges, err := m.DescendantEdges(0, true)
	require.NoError(t, err)
	assert.Len(t, edges, 3)
	for _, id := range edges[1:] {
		up, err := m.EdgeAncestors(id, false)
		require.NoError(t, err)
		assert.Equal(t, []int{0}, up)
	}

	_, err = m.Ancestors(99, false)
	assert.ErrorIs(t, err, ErrElemDoesntExist)
}

func TestLeafAt(t *testing.T) {
	m := Unit()
	require.NoError(t, m.GlobalHRefinement(HRefT))

	id, ok := m.LeafAt(element.Point{X: 0.5, Y: 0.5})
	require.True(t, ok)
	assert.Equal(t, NE, m.Elems[id].Locs[0])

	id, ok = m.LeafAt(element.Point{X: -0.5, Y: 0.5})
	require.True(t, ok)
	assert.Equal(t, NW, m.Elems[id].Locs[0])

	_, ok = m.LeafAt(element.Point{X: 3, Y: 0})
	assert.False(t, ok)
}

func TestHangingEdges(t *testing.T) {
	for _, path := range []string{"testdata/two_element.json", "testdata/grid_2x2.json"} {
		m, err := FromFile(path)
		require.NoError(t, err)
		require.NoError(t, m.GlobalHRefinement(HRefT))
		assert.Empty(t, m.HangingEdges(), path)
	}

	// the top edge of the lower element runs through the shared corner of
	// the two upper elements
	m, err := FromFile("testdata/hanging_node.json")
	require.NoError(t, err)
	top := m.Elems[0].Edges[1]
	assert.Equal(t, []int{top}, m.HangingEdges())
	assert.True(t, m.Edges[top].Boundary)
}

func TestExportJSON(t *testing.T) {
	m := loadTwoElement(t)
	require.NoError(t, m.GlobalHRefinement(HRefT))

	var buf bytes.Buffer
	require.NoError(t, m.ExportJSON(&buf))

	var out struct {
		Nodes []json.RawMessage
		Edges []struct {
			ID         int     `json:"id"`
			ActivePair *[2]int `json:"active_pair"`
		}
		Elems []struct {
			ID         int    `json:"id"`
			Refinement string `json:"refinement"`
			Children   []int  `json:"children"`
		}
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Len(t, out.Nodes, len(m.Nodes))
	assert.Len(t, out.Edges, len(m.Edges))
	require.Len(t, out.Elems, 10)
	assert.Equal(t, "T", out.Elems[0].Refinement)
	assert.Len(t, out.Elems[0].Children, 4)
	assert.Empty(t, out.Elems[9].Refinement)
}

func TestMeshString(t *testing.T) {
	m := loadTwoElement(t)
	s := m.String()
	t.Log(s)
	assert.Contains(t, s, "2 elems (2 leaves")
	assert.Contains(t, s, "Edges: 7 (1 active)")
}
