package config

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/hprbs/basis"
	"github.com/notargets/hprbs/domain"
	"github.com/notargets/hprbs/galerkin"
	"github.com/notargets/hprbs/mesh"
	"github.com/notargets/hprbs/partitions"
)

func TestLoadRun(t *testing.T) {
	r, err := Load("testdata/run.yaml")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("testdata", "two_element.json"), r.Mesh)
	require.NotNil(t, r.Orders)
	assert.Equal(t, mesh.PolyOrders{Ni: 2, Nj: 2}, r.Orders.PolyOrders())
	require.Len(t, r.Refinements, 3)
	assert.Equal(t, Step{Type: StepH, Kind: "T", Elems: []int{0}}, r.Refinements[0])
	assert.Equal(t, Step{Type: StepP, Delta: [2]int{1, 0}}, r.Refinements[1])
	assert.Equal(t, "h U1 on elems [1]", r.Refinements[2].String())
	require.NotNil(t, r.Target)
	assert.Equal(t, 2.5, *r.Target)

	dopts, err := r.DomainOptions()
	require.NoError(t, err)
	assert.Equal(t, domain.PEC, dopts.Boundary)
	assert.Equal(t, basis.KOL{}, dopts.Shape)

	sopts, err := r.SamplingOptions()
	require.NoError(t, err)
	require.NotNil(t, sopts.Points)
	assert.Equal(t, [2]int{6, 6}, *sopts.Points)
	assert.Equal(t, 2, sopts.Workers)
	assert.Equal(t, partitions.RoundRobin, sopts.Strategy)
}

func TestApplyRun(t *testing.T) {
	r, err := Load("testdata/run.yaml")
	require.NoError(t, err)
	m, err := mesh.FromFile(r.Mesh)
	require.NoError(t, err)
	require.NoError(t, r.Apply(m))

	// elem 0 into 4, elem 1 into 2 with child 1 split again
	assert.Len(t, m.Elems, 10)
	assert.Len(t, m.Leaves(), 7)
	for _, id := range []int{2, 3, 4, 5} {
		assert.Equal(t, mesh.PolyOrders{Ni: 3, Nj: 2}, m.Elems[id].Orders, "elem %d", id)
	}
	t.Logf("%v", m)

	dopts, err := r.DomainOptions()
	require.NoError(t, err)
	d, err := domain.New(context.Background(), m, dopts)
	require.NoError(t, err)
	sopts, err := r.SamplingOptions()
	require.NoError(t, err)
	gep, err := galerkin.Sample(context.Background(), d, galerkin.CurlCurl{}, galerkin.L2Inner{}, sopts)
	require.NoError(t, err)
	assert.Equal(t, d.NumDoFs(), gep.Dim())
}

func TestApplyStopsAtFailingStep(t *testing.T) {
	r := &Run{
		Mesh: "unused",
		Refinements: []Step{
			{Type: StepH, Kind: "T", Elems: []int{0}},
			{Type: StepH, Kind: "T", Elems: []int{0}}, // elem 0 is no longer a leaf
		},
	}
	require.NoError(t, r.Validate())
	m := mesh.Unit()
	err := r.Apply(m)
	require.Error(t, err)
	assert.ErrorIs(t, err, mesh.ErrElemHasChildren)
	assert.Contains(t, err.Error(), "refinement 1")
	assert.Len(t, m.Elems, 5)
}

func TestValidateReportsEverything(t *testing.T) {
	_, err := Load("testdata/invalid.yaml")
	require.Error(t, err)
	t.Logf("%v", err)

	for _, want := range []error{
		ErrInvalidRun,
		mesh.ErrNegExpansion,
		domain.ErrUnsupportedBoundary,
		basis.ErrUnknownShapeFn,
		partitions.ErrUnknownStrategy,
		galerkin.ErrInvalidGLQ,
	} {
		assert.ErrorIs(t, err, want)
	}
	for _, want := range []string{
		"mesh path is required",
		"refinement 0",
		"refinement 1: p-refinement with zero delta",
		`refinement 2: unknown refinement type "q"`,
		"workers -1 is negative",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateDefaults(t *testing.T) {
	r := &Run{Mesh: "mesh.json"}
	require.NoError(t, r.Validate())

	dopts, err := r.DomainOptions()
	require.NoError(t, err)
	assert.Equal(t, domain.PEC, dopts.Boundary)
	assert.Equal(t, basis.MaxOrtho{}, dopts.Shape)

	sopts, err := r.SamplingOptions()
	require.NoError(t, err)
	assert.Nil(t, sopts.Points)
	assert.Zero(t, sopts.Workers)
	assert.Equal(t, partitions.CostBalanced, sopts.Strategy)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"missing file", "testdata/nope.yaml"},
		{"unknown key", "testdata/unknown_key.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			require.Error(t, err)
			assert.NotErrorIs(t, err, ErrInvalidRun)
			t.Logf("%s: %v", tt.name, err)
		})
	}
}
