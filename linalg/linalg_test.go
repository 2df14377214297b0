package linalg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestAssemble(t *testing.T) {
	m, err := Assemble(3,
		[]Triplet{{0, 0, 1}, {0, 1, 2}, {1, 0, 2}},
		[]Triplet{{0, 0, 1.5}, {2, 2, 4}},
	)
	require.NoError(t, err)

	r, c := m.Dims()
	assert.Equal(t, [2]int{3, 3}, [2]int{r, c})
	assert.Equal(t, 2.5, m.At(0, 0))
	assert.Equal(t, 2.0, m.At(1, 0))
	assert.Equal(t, 0.0, m.At(1, 1))
	assert.Equal(t, 4, m.NNZ())
	assert.Equal(t, []float64{2.5, 0, 4}, m.Diagonal())
	assert.True(t, m.IsSymmetric(0))
	assert.True(t, mat.Equal(m.Dense(), mat.NewDense(3, 3, []float64{2.5, 2, 0, 2, 0, 0, 0, 0, 4})))

	sum := 0.0
	m.DoNonZero(func(i, j int, v float64) { sum += v })
	assert.Equal(t, 10.5, sum)

	_, err = Assemble(2, []Triplet{{2, 0, 1}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	_, err = Assemble(0)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestAsymmetry(t *testing.T) {
	m, err := Assemble(2, []Triplet{{0, 1, 1}, {1, 0, 1.001}, {0, 0, 10}})
	require.NoError(t, err)
	assert.InDelta(t, 1e-4, m.Asymmetry(), 1e-12)
	assert.False(t, m.IsSymmetric(1e-6))
	assert.True(t, m.IsSymmetric(1e-3))
}

func TestSolveDense(t *testing.T) {
	a, err := Assemble(2, []Triplet{{0, 0, 4}, {0, 1, 1}, {1, 0, 1}, {1, 1, 3}})
	require.NoError(t, err)
	b, err := Assemble(2, []Triplet{{0, 0, 2}, {0, 1, 1}, {1, 0, 1}, {1, 1, 2}})
	require.NoError(t, err)
	g := &GEP{A: a, B: b}
	assert.Equal(t, 2, g.Dim())
	assert.True(t, g.IsSymmetric(1e-14))

	s, err := g.SolveDense()
	require.NoError(t, err)
	want := []float64{(12 - math.Sqrt(12)) / 6, (12 + math.Sqrt(12)) / 6}
	assert.InDeltaSlice(t, want, s.Values, 1e-12)

	for k := range s.Values {
		p := s.Pair(k)
		assert.Less(t, g.Residual(p), 1e-12)
		// B-normalized
		x := mat.NewVecDense(2, p.Vector)
		assert.InDelta(t, 1.0, mat.Inner(x, b, x), 1e-12)
	}

	p, err := g.Nearest(2.4)
	require.NoError(t, err)
	assert.InDelta(t, want[1], p.Value, 1e-12)
	assert.InDelta(t, want[0], s.Nearest(-5).Value, 1e-12)
	assert.InDelta(t, want[1], s.Nearest(50).Value, 1e-12)
	assert.InDelta(t, want[0], s.Nearest(1.9).Value, 1e-12)
}

func TestSolveDenseErrors(t *testing.T) {
	id, err := Assemble(2, []Triplet{{0, 0, 1}, {1, 1, 1}})
	require.NoError(t, err)
	skew, err := Assemble(2, []Triplet{{0, 1, 1}, {1, 0, -1}})
	require.NoError(t, err)
	indefinite, err := Assemble(2, []Triplet{{0, 0, 1}, {1, 1, -1}})
	require.NoError(t, err)
	small, err := Assemble(1, []Triplet{{0, 0, 1}})
	require.NoError(t, err)

	tests := []struct {
		name string
		gep  GEP
		want error
	}{
		{"asymmetric", GEP{A: skew, B: id}, ErrNotSymmetric},
		{"indefinite mass", GEP{A: id, B: indefinite}, ErrNotPositiveDefinite},
		{"dimensions", GEP{A: id, B: small}, ErrDimensionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.gep.SolveDense()
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
