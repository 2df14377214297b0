package galerkin

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/notargets/hprbs/basis"
	"github.com/notargets/hprbs/domain"
	"github.com/notargets/hprbs/internal/observability"
	"github.com/notargets/hprbs/mesh"
	"github.com/notargets/hprbs/partitions"
)

// lowest TE mode of the PEC square [-1,1]^2
var firstEigenvalue = math.Pi * math.Pi / 4

func newDomain(t *testing.T, m *mesh.Mesh, opts domain.Options) *domain.Domain {
	t.Helper()
	d, err := domain.New(context.Background(), m, opts)
	require.NoError(t, err)
	return d
}

func TestLowestOrderMatrices(t *testing.T) {
	d := newDomain(t, mesh.Unit(), domain.Options{Boundary: domain.Natural})
	require.Equal(t, 4, d.NumDoFs())

	gep, err := Sample(context.Background(), d, CurlCurl{}, L2Inner{}, Options{Workers: 2})
	require.NoError(t, err)

	// DoFs are U(0,0), U(0,1), V(0,0), V(1,0) with unit curls of alternating sign
	curls := []float64{1, -1, -1, 1}
	mass := [][]float64{
		{16.0 / 3, 8.0 / 3, 0, 0},
		{8.0 / 3, 16.0 / 3, 0, 0},
		{0, 0, 16.0 / 3, 8.0 / 3},
		{0, 0, 8.0 / 3, 16.0 / 3},
	}
	for i := range 4 {
		for j := range 4 {
			assert.InDelta(t, 4*curls[i]*curls[j], gep.A.At(i, j), 1e-12, "A(%d,%d)", i, j)
			assert.InDelta(t, mass[i][j], gep.B.At(i, j), 1e-12, "B(%d,%d)", i, j)
		}
	}
}

func TestMatricesAreSymmetric(t *testing.T) {
	m := mesh.Unit()
	require.NoError(t, m.SetGlobalExpansionOrders(mesh.PolyOrders{Ni: 3, Nj: 4}))
	require.NoError(t, m.GlobalHRefinement(mesh.HRefT))
	require.NoError(t, m.HRefineElems([]int{2}, mesh.HRefU))
	d := newDomain(t, m, domain.Options{})

	gep, err := Sample(context.Background(), d, CurlCurl{}, L2Inner{}, Options{})
	require.NoError(t, err)
	assert.Equal(t, d.NumDoFs(), gep.Dim())
	assert.True(t, gep.IsSymmetric(1e-12), "asymmetry A %.3g, B %.3g", gep.A.Asymmetry(), gep.B.Asymmetry())
	for i, v := range gep.B.Diagonal() {
		assert.Greater(t, v, 0.0, "B(%d,%d)", i, i)
	}
	t.Logf("%d dofs, nnz(A) %d, nnz(B) %d", gep.Dim(), gep.A.NNZ(), gep.B.NNZ())
}

func TestFirstEigenvalue(t *testing.T) {
	tests := []struct {
		name   string
		orders mesh.PolyOrders
		refine func(t *testing.T, m *mesh.Mesh)
		shape  basis.ShapeFn
	}{
		{
			name:   "single element",
			orders: mesh.PolyOrders{Ni: 6, Nj: 6},
			refine: func(*testing.T, *mesh.Mesh) {},
		},
		{
			name:   "single element kol",
			orders: mesh.PolyOrders{Ni: 6, Nj: 6},
			refine: func(*testing.T, *mesh.Mesh) {},
			shape:  basis.KOL{},
		},
		{
			name:   "global T refinement",
			orders: mesh.PolyOrders{Ni: 4, Nj: 4},
			refine: func(t *testing.T, m *mesh.Mesh) {
				require.NoError(t, m.GlobalHRefinement(mesh.HRefT))
			},
		},
		{
			name:   "one sided T refinement",
			orders: mesh.PolyOrders{Ni: 5, Nj: 5},
			refine: func(t *testing.T, m *mesh.Mesh) {
				require.NoError(t, m.GlobalHRefinement(mesh.HRefT))
				require.NoError(t, m.HRefineElems([]int{1}, mesh.HRefT))
			},
		},
		{
			name:   "bisection with extension",
			orders: mesh.PolyOrders{Ni: 5, Nj: 5},
			refine: func(t *testing.T, m *mesh.Mesh) {
				r, err := mesh.UExtended(0)
				require.NoError(t, err)
				require.NoError(t, m.HRefineElems([]int{0}, r))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mesh.Unit()
			require.NoError(t, m.SetGlobalExpansionOrders(tt.orders))
			tt.refine(t, m)
			d := newDomain(t, m, domain.Options{Shape: tt.shape})

			gep, err := Sample(context.Background(), d, CurlCurl{}, L2Inner{}, Options{})
			require.NoError(t, err)
			pair, err := gep.Nearest(2.5)
			require.NoError(t, err)
			t.Logf("%s: %d leaves, %d dofs, lambda = %.10f (exact %.10f)",
				tt.name, len(m.Leaves()), d.NumDoFs(), pair.Value, firstEigenvalue)
			assert.InDelta(t, firstEigenvalue, pair.Value, 1e-3)

			assert.Less(t, gep.Residual(pair), 1e-6)
		})
	}
}

func TestWorkerCountInvariance(t *testing.T) {
	m := mesh.Unit()
	require.NoError(t, m.SetGlobalExpansionOrders(mesh.PolyOrders{Ni: 3, Nj: 3}))
	require.NoError(t, m.GlobalHRefinement(mesh.HRefT))
	require.NoError(t, m.HRefineElems([]int{4}, mesh.HRefV))
	d := newDomain(t, m, domain.Options{})

	ref, err := Sample(context.Background(), d, CurlCurl{}, L2Inner{}, Options{Workers: 1})
	require.NoError(t, err)
	wantA, wantB := ref.A.Dense(), ref.B.Dense()

	for _, opts := range []Options{
		{Workers: 2, Strategy: partitions.BlockPartition},
		{Workers: 3, Strategy: partitions.RoundRobin},
		{Workers: 8, Strategy: partitions.CostBalanced},
	} {
		got, err := Sample(context.Background(), d, CurlCurl{}, L2Inner{}, opts)
		require.NoError(t, err)
		gotA, gotB := got.A.Dense(), got.B.Dense()
		n := d.NumDoFs()
		for i := range n {
			for j := range n {
				require.InDelta(t, wantA.At(i, j), gotA.At(i, j), 1e-12, "%v A(%d,%d)", opts.Strategy, i, j)
				require.InDelta(t, wantB.At(i, j), gotB.At(i, j), 1e-12, "%v B(%d,%d)", opts.Strategy, i, j)
			}
		}
	}
}

func TestExplicitQuadrature(t *testing.T) {
	m := mesh.Unit()
	require.NoError(t, m.SetGlobalExpansionOrders(mesh.PolyOrders{Ni: 2, Nj: 2}))
	d := newDomain(t, m, domain.Options{})

	def, err := Sample(context.Background(), d, CurlCurl{}, L2Inner{}, Options{})
	require.NoError(t, err)
	// the default rule is already exact, extra points change nothing
	more, err := Sample(context.Background(), d, CurlCurl{}, L2Inner{}, Options{Points: &[2]int{9, 7}})
	require.NoError(t, err)
	n := d.NumDoFs()
	for i := range n {
		for j := range n {
			assert.InDelta(t, def.B.At(i, j), more.B.At(i, j), 1e-12)
			assert.InDelta(t, def.A.At(i, j), more.A.At(i, j), 1e-12)
		}
	}
}

func TestSampleErrors(t *testing.T) {
	valid := func(t *testing.T) *domain.Domain {
		m := mesh.Unit()
		require.NoError(t, m.SetGlobalExpansionOrders(mesh.PolyOrders{Ni: 2, Nj: 2}))
		return newDomain(t, m, domain.Options{})
	}
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		d    func(t *testing.T) *domain.Domain
		opts Options
		want error
	}{
		{"nil domain", context.Background(), func(*testing.T) *domain.Domain { return nil }, Options{}, ErrEmptyDoFSet},
		{"empty domain", context.Background(), func(*testing.T) *domain.Domain { return &domain.Domain{} }, Options{}, ErrEmptyDoFSet},
		{"wrong continuity", context.Background(), func(t *testing.T) *domain.Domain {
			d := valid(t)
			d.Continuity = domain.ContinuityCondition(7)
			return d
		}, Options{}, ErrWrongContinuity},
		{"too few points", context.Background(), valid, Options{Points: &[2]int{3, 6}}, ErrInvalidGLQ},
		{"canceled", canceled, valid, Options{Workers: 2}, context.Canceled},
		{"zero permittivity", context.Background(), func(t *testing.T) *domain.Domain {
			m, err := mesh.FromJSON(strings.NewReader(`{
				"Elements": [{"materials": [0,0,1,0], "node_ids": [0,1,2,3]}],
				"Nodes": [[-1,-1],[1,-1],[-1,1],[1,1]]
			}`))
			require.NoError(t, err)
			return newDomain(t, m, domain.Options{Boundary: domain.Natural})
		}, Options{}, ErrSingularDiagonal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Sample(tt.ctx, tt.d(t), CurlCurl{}, L2Inner{}, tt.opts)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			var se *SamplingError
			assert.ErrorAs(t, err, &se)
			t.Logf("%s: %v", tt.name, err)
		})
	}
}

func TestSamplingObservability(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	reg := prometheus.NewRegistry()
	c, err := observability.NewCollector(reg)
	require.NoError(t, err)

	m := mesh.Unit()
	require.NoError(t, m.SetGlobalExpansionOrders(mesh.PolyOrders{Ni: 2, Nj: 2}))
	require.NoError(t, m.GlobalHRefinement(mesh.HRefT))
	d := newDomain(t, m, domain.Options{})

	_, err = Sample(context.Background(), d, CurlCurl{}, L2Inner{}, Options{
		Workers: 2,
		Metrics: c,
		Tracer:  observability.Tracer(tp),
	})
	require.NoError(t, err)

	pairs := testutil.ToFloat64(c.SampledPairs.WithLabelValues("curl_curl"))
	assert.Greater(t, pairs, 0.0)
	assert.Equal(t, pairs, testutil.ToFloat64(c.SampledPairs.WithLabelValues("l2_inner")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.SamplingDuration))

	var root, parts int
	for _, s := range rec.Ended() {
		switch s.Name() {
		case "galerkin.sample":
			root++
		case "galerkin.partition":
			parts++
			assert.Equal(t, "galerkin.sample", spanName(rec, s.Parent().SpanID()))
		}
	}
	assert.Equal(t, 1, root)
	assert.Equal(t, 2, parts)
}

func spanName(rec *tracetest.SpanRecorder, id trace.SpanID) string {
	for _, s := range rec.Ended() {
		if s.SpanContext().SpanID() == id {
			return s.Name()
		}
	}
	return ""
}
