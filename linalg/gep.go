package linalg

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrEmpty               = errors.New("matrix is empty")
	ErrDimensionMismatch   = errors.New("matrix dimensions do not match")
	ErrNotSymmetric        = errors.New("matrix is not symmetric")
	ErrNotPositiveDefinite = errors.New("mass matrix is not positive definite")
	ErrEigen               = errors.New("eigendecomposition failed")
)

// SymmetryTolerance is the relative asymmetry SolveDense accepts.
const SymmetryTolerance = 1e-10

// GEP is the generalized eigenproblem A x = lambda B x.
type GEP struct {
	A, B *SparseMatrix
}

// Dim returns the number of unknowns.
func (g *GEP) Dim() int {
	n, _ := g.A.Dims()
	return n
}

// IsSymmetric reports whether both matrices are symmetric within tol.
func (g *GEP) IsSymmetric(tol float64) bool {
	return g.A.IsSymmetric(tol) && g.B.IsSymmetric(tol)
}

// Eigenpair is one solution of a GEP. Vector is B-normalized.
type Eigenpair struct {
	Value  float64
	Vector []float64
}

// Spectrum is the full solution of a GEP in ascending order of eigenvalue.
type Spectrum struct {
	Values  []float64
	Vectors *mat.Dense // column k belongs to Values[k]
}

// Pair returns eigenpair k.
func (s *Spectrum) Pair(k int) Eigenpair {
	return Eigenpair{Value: s.Values[k], Vector: mat.Col(nil, k, s.Vectors)}
}

// Nearest returns the eigenpair whose value is closest to target.
func (s *Spectrum) Nearest(target float64) Eigenpair {
	k := sort.SearchFloat64s(s.Values, target)
	switch {
	case k == len(s.Values):
		k--
	case k > 0 && target-s.Values[k-1] < s.Values[k]-target:
		k--
	}
	return s.Pair(k)
}

// SolveDense solves the problem densely: B is Cholesky factored as L L^T and
// the symmetric matrix L^-1 A L^-T is diagonalized.
func (g *GEP) SolveDense() (*Spectrum, error) {
	ra, ca := g.A.Dims()
	rb, cb := g.B.Dims()
	if ra != ca || rb != cb || ra != rb {
		return nil, fmt.Errorf("A is %dx%d, B is %dx%d: %w", ra, ca, rb, cb, ErrDimensionMismatch)
	}
	if !g.IsSymmetric(SymmetryTolerance) {
		return nil, ErrNotSymmetric
	}
	n := ra

	var chol mat.Cholesky
	if ok := chol.Factorize(symmetric(g.B.Dense())); !ok {
		return nil, ErrNotPositiveDefinite
	}
	var l, linv mat.TriDense
	chol.LTo(&l)
	if err := linv.InverseTri(&l); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("inverting cholesky factor: %w", err)
		}
	}

	var tmp, c mat.Dense
	tmp.Mul(&linv, g.A.Dense())
	c.Mul(&tmp, linv.T())

	var eig mat.EigenSym
	if ok := eig.Factorize(symmetric(&c), true); !ok {
		return nil, ErrEigen
	}
	values := eig.Values(nil)
	y := mat.NewDense(n, n, nil)
	eig.VectorsTo(y)

	x := mat.NewDense(n, n, nil)
	x.Mul(linv.T(), y)
	return &Spectrum{Values: values, Vectors: x}, nil
}

// Nearest solves the problem and returns the eigenpair closest to target.
func (g *GEP) Nearest(target float64) (Eigenpair, error) {
	s, err := g.SolveDense()
	if err != nil {
		return Eigenpair{}, err
	}
	return s.Nearest(target), nil
}

// Residual returns |A x - lambda B x| / |B x| for an eigenpair.
func (g *GEP) Residual(p Eigenpair) float64 {
	x := mat.NewVecDense(len(p.Vector), p.Vector)
	var ax, bx mat.VecDense
	ax.MulVec(g.A, x)
	bx.MulVec(g.B, x)
	nb := mat.Norm(&bx, 2)
	ax.AddScaledVec(&ax, -p.Value, &bx)
	if nb == 0 {
		return math.Inf(1)
	}
	return mat.Norm(&ax, 2) / nb
}

func symmetric(m *mat.Dense) *mat.SymDense {
	n, _ := m.Dims()
	s := mat.NewSymDense(n, nil)
	for i := range n {
		for j := i; j < n; j++ {
			s.SetSym(i, j, (m.At(i, j)+m.At(j, i))/2)
		}
	}
	return s
}
