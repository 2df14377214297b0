package constraint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/hprbs/basis"
	"github.com/notargets/hprbs/element"
)

func trace(order int, lo, hi float64, gen int, fn basis.ShapeFn) Trace {
	return Trace{Dir: element.U, Order: order, Span: [2]float64{lo, hi}, Generation: gen, Shape: fn}
}

func TestMatchSameOrder(t *testing.T) {
	for _, fn := range []basis.ShapeFn{basis.KOL{}, basis.MaxOrtho{}} {
		t.Run(fn.String(), func(t *testing.T) {
			r, err := Match(trace(4, 0, 0.5, 1, fn), trace(4, 0, 0.5, 1, fn))
			require.NoError(t, err)
			assert.Equal(t, SameOrder, r.Class)
			assert.False(t, r.Swapped)
			assert.True(t, r.Exact)

			links, ok := r.Links(1e-9)
			require.True(t, ok)
			require.Len(t, links, 4)
			for l, link := range links {
				assert.Equal(t, l, link.Master)
				assert.Equal(t, l, link.Slave)
				assert.InDelta(t, 1.0, link.Coef, 1e-12)
			}
		})
	}
}

func TestMatchDifferentOrder(t *testing.T) {
	fn := basis.MaxOrtho{}
	r, err := Match(trace(5, -1, 1, 0, fn), trace(3, -1, 1, 0, fn))
	require.NoError(t, err)
	assert.True(t, r.Swapped, "lower order becomes master")
	assert.Equal(t, DifferentOrder, r.Class)
	assert.Equal(t, 3, r.Master.Order)
	assert.True(t, r.Exact)
	rows, cols := r.C.Dims()
	assert.Equal(t, [2]int{5, 3}, [2]int{rows, cols})

	links, ok := r.Links(1e-9)
	require.True(t, ok)
	assert.Equal(t, []int{0, 1, 2}, []int{links[0].Slave, links[1].Slave, links[2].Slave})
}

func TestMatchDifferentGeneration(t *testing.T) {
	for _, fn := range []basis.ShapeFn{basis.KOL{}, basis.MaxOrtho{}} {
		t.Run(fn.String(), func(t *testing.T) {
			child := trace(3, 0.5, 1, 2, fn)
			parent := trace(3, 0, 1, 1, fn)
			r, err := Match(child, parent)
			require.NoError(t, err)
			assert.True(t, r.Swapped)
			assert.Equal(t, DifferentGeneration, r.Class)
			assert.True(t, r.Exact, "residual %g", r.Residual)

			// a restricted parent function is not a multiple of one child function
			_, ok := r.Links(1e-9)
			assert.False(t, ok)

			coeffs := []float64{0.3, -1.2, 0.7}
			restricted := r.Restrict(coeffs)
			for _, x := range []float64{0.5, 0.61, 0.8, 1} {
				assert.InDelta(t, parent.Eval(coeffs, x), child.Eval(restricted, x), 1e-11, "x=%g", x)
			}
		})
	}

	// a lower order slave cannot represent the parent
	r, err := Match(trace(4, -1, 1, 0, basis.MaxOrtho{}), trace(2, -1, 0, 1, basis.MaxOrtho{}))
	require.NoError(t, err)
	assert.False(t, r.Exact)
	assert.Greater(t, r.Residual, 1e-3)
}

func TestMatchErrors(t *testing.T) {
	fn := basis.MaxOrtho{}
	v := trace(2, 0, 1, 0, fn)
	v.Dir = element.V

	tests := []struct {
		name string
		a, b Trace
		want error
	}{
		{"direction", trace(2, 0, 1, 0, fn), v, ErrDirectionMismatch},
		{"disjoint", trace(2, 0, 1, 0, fn), trace(2, 1, 1.5, 1, fn), ErrDisjointSpans},
		{"wider slave", trace(2, 0, 0.5, 0, fn), trace(2, 0, 1, 1, fn), ErrDisjointSpans},
		{"shape", trace(2, 0, 1, 0, fn), trace(2, 0, 1, 0, basis.KOL{}), ErrShapeMismatch},
		{"empty", trace(0, 0, 1, 0, fn), trace(2, 0, 1, 0, fn), ErrEmptyTrace},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Match(tt.a, tt.b)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTraceFunc(t *testing.T) {
	tr := trace(3, 2, 3, 0, basis.KOL{})
	// width 1: functions are 4*s^k with s = 2(x-2)-1
	assert.InDelta(t, 4.0, tr.Func(0, 2.7), 1e-14)
	assert.InDelta(t, 4*0.4, tr.Func(1, 2.7), 1e-14)
	assert.InDelta(t, 4*0.16, tr.Func(2, 2.7), 1e-14)
	assert.InDelta(t, 4-4*0.4*2, tr.Eval([]float64{1, -2}, 2.7), 1e-14)
	assert.Equal(t, "different generation", DifferentGeneration.String())
}
