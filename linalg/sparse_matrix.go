// Package linalg holds the generalized eigenproblem produced by Galerkin
// sampling and a dense solver used to check it.
package linalg

import (
	"fmt"
	"math"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// Triplet is one (row, col, value) contribution. Contributions to the same
// entry are summed on assembly.
type Triplet struct {
	Row, Col int
	Val      float64
}

// SparseMatrix is an immutable square matrix in compressed sparse row form.
type SparseMatrix struct {
	csr *sparse.CSR
}

var _ mat.Matrix = (*SparseMatrix)(nil)

// Assemble sums the triplets of every buffer into an n x n matrix.
func Assemble(n int, buffers ...[]Triplet) (*SparseMatrix, error) {
	if n < 1 {
		return nil, fmt.Errorf("matrix dimension %d: %w", n, ErrEmpty)
	}
	dok := sparse.NewDOK(n, n)
	for _, buf := range buffers {
		for _, t := range buf {
			if t.Row < 0 || t.Row >= n || t.Col < 0 || t.Col >= n {
				return nil, fmt.Errorf("entry (%d, %d) outside %dx%d: %w", t.Row, t.Col, n, n, ErrDimensionMismatch)
			}
			dok.Set(t.Row, t.Col, dok.At(t.Row, t.Col)+t.Val)
		}
	}
	return &SparseMatrix{csr: dok.ToCSR()}, nil
}

func (s *SparseMatrix) Dims() (r, c int)                       { return s.csr.Dims() }
func (s *SparseMatrix) At(i, j int) float64                    { return s.csr.At(i, j) }
func (s *SparseMatrix) T() mat.Matrix                          { return s.csr.T() }
func (s *SparseMatrix) NNZ() int                               { return s.csr.NNZ() }
func (s *SparseMatrix) CSR() *sparse.CSR                       { return s.csr }
func (s *SparseMatrix) Dense() *mat.Dense                      { return s.csr.ToDense() }
func (s *SparseMatrix) DoNonZero(fn func(i, j int, v float64)) { s.csr.DoNonZero(fn) }

// Diagonal returns the diagonal entries.
func (s *SparseMatrix) Diagonal() []float64 {
	n, _ := s.Dims()
	d := make([]float64, n)
	for i := range d {
		d[i] = s.csr.At(i, i)
	}
	return d
}

// Asymmetry returns max |M(i,j) - M(j,i)| relative to the largest entry.
func (s *SparseMatrix) Asymmetry() float64 {
	var worst, scale float64
	s.csr.DoNonZero(func(i, j int, v float64) {
		scale = max(scale, math.Abs(v))
		worst = max(worst, math.Abs(v-s.csr.At(j, i)))
	})
	if scale == 0 {
		return 0
	}
	return worst / scale
}

// IsSymmetric reports whether Asymmetry is within tol.
func (s *SparseMatrix) IsSymmetric(tol float64) bool {
	return s.Asymmetry() <= tol
}
