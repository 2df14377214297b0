// Package quadrature provides Gauss-Legendre rules on [-1, 1] and the
// Legendre polynomials they integrate exactly.
package quadrature

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrInvalidPoints = errors.New("quadrature needs at least one point")
	ErrEigen         = errors.New("jacobi matrix eigendecomposition failed")
)

// Rule is a set of sorted abscissae with matching weights.
type Rule struct {
	Points  []float64
	Weights []float64
}

// Len returns the number of points in the rule.
func (r Rule) Len() int { return len(r.Points) }

// Scale maps the rule from [-1, 1] onto [lo, hi]. Weights are scaled by the
// half width so that integrals over the sub-interval stay correct.
func (r Rule) Scale(lo, hi float64) Rule {
	half, mid := (hi-lo)/2, (hi+lo)/2
	out := Rule{
		Points:  make([]float64, len(r.Points)),
		Weights: make([]float64, len(r.Weights)),
	}
	for i, x := range r.Points {
		out.Points[i] = mid + half*x
		out.Weights[i] = half * r.Weights[i]
	}
	return out
}

// Integrate sums f over the rule.
func (r Rule) Integrate(f func(x float64) float64) (sum float64) {
	for i, x := range r.Points {
		sum += r.Weights[i] * f(x)
	}
	return
}

var (
	cacheMu sync.Mutex
	cache   = map[int]Rule{}
)

// GLQ returns the n-point Gauss-Legendre rule on [-1, 1], exact for
// polynomials up to degree 2n-1. Rules are computed once and shared, so
// callers must not modify the returned slices.
func GLQ(n int) (Rule, error) {
	if n < 1 {
		return Rule{}, fmt.Errorf("%d points: %w", n, ErrInvalidPoints)
	}
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if r, ok := cache[n]; ok {
		return r, nil
	}
	r, err := golubWelsch(n)
	if err != nil {
		return Rule{}, err
	}
	cache[n] = r
	return r, nil
}

// golubWelsch finds the nodes as eigenvalues of the symmetric tridiagonal
// Jacobi matrix of the Legendre recurrence. The weights are 2 times the
// squared first component of each normalized eigenvector.
func golubWelsch(n int) (Rule, error) {
	if n == 1 {
		return Rule{Points: []float64{0}, Weights: []float64{2}}, nil
	}
	jj := mat.NewSymDense(n, nil)
	for i := 1; i < n; i++ {
		fi := float64(i)
		b := 0.5 / math.Sqrt(1-math.Pow(2*fi, -2))
		jj.SetSym(i-1, i, b)
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(jj, true); !ok {
		return Rule{}, fmt.Errorf("%d points: %w", n, ErrEigen)
	}
	x := eig.Values(nil)
	vv := mat.NewDense(n, n, nil)
	eig.VectorsTo(vv)

	w := make([]float64, n)
	for k := range w {
		v := vv.At(0, k)
		w[k] = 2 * v * v
	}
	// the spectrum is symmetric about zero
	for i := 0; i < n/2; i++ {
		j := n - 1 - i
		x[i], x[j] = (x[i]-x[j])/2, (x[j]-x[i])/2
		w[i], w[j] = (w[i]+w[j])/2, (w[i]+w[j])/2
	}
	if n%2 == 1 {
		x[n/2] = 0
	}
	return Rule{Points: x, Weights: w}, nil
}
