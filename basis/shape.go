// Package basis defines the 1D shape functions and the H(curl) vector basis
// they generate on a quadrilateral element, and samples that basis on
// Gauss-Legendre grids.
package basis

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/notargets/hprbs/quadrature"
)

var ErrUnknownShapeFn = errors.New("unknown shape function")

// ShapeFn provides the two 1D function families a tensor product H(curl)
// basis is built from, each returned with its derivative.
//
// Power is used along the field direction. Poly is used across it: Poly(0)
// and Poly(1) are the linear functions that are 2 at x = -1 and x = 1
// respectively, and Poly(n) for n >= 2 vanishes at both ends.
type ShapeFn interface {
	Power(n int, x float64) (f, df float64)
	Poly(n int, x float64) (f, df float64)
	String() string
}

// KOL uses monomials along the field and monomial bubbles across it.
type KOL struct{}

func (KOL) Power(n int, x float64) (float64, float64) {
	switch n {
	case 0:
		return 1, 0
	case 1:
		return x, 1
	}
	return math.Pow(x, float64(n)), float64(n) * math.Pow(x, float64(n-1))
}

func (KOL) Poly(n int, x float64) (float64, float64) {
	switch {
	case n == 0:
		return 1 - x, -1
	case n == 1:
		return 1 + x, 1
	case n%2 == 0:
		return math.Pow(x, float64(n)) - 1, float64(n) * math.Pow(x, float64(n-1))
	default:
		return math.Pow(x, float64(n)) - x, float64(n)*math.Pow(x, float64(n-1)) - 1
	}
}

func (KOL) String() string { return "kol" }

// MaxOrtho uses Legendre polynomials along the field and differences of
// Legendre polynomials across it, which keeps the mass matrix close to
// diagonal at high order.
type MaxOrtho struct{}

func (MaxOrtho) Power(n int, x float64) (float64, float64) {
	return quadrature.Legendre(n, x)
}

func (MaxOrtho) Poly(n int, x float64) (float64, float64) {
	switch n {
	case 0:
		return 1 - x, -1
	case 1:
		return 1 + x, 1
	}
	a, da := quadrature.Legendre(n, x)
	b, db := quadrature.Legendre(n-2, x)
	return a - b, da - db
}

func (MaxOrtho) String() string { return "max_ortho" }

// ParseShapeFn returns the shape function family with the given name. An
// empty name selects MaxOrtho.
func ParseShapeFn(name string) (ShapeFn, error) {
	switch strings.ToLower(name) {
	case "", "max_ortho", "maxortho":
		return MaxOrtho{}, nil
	case "kol":
		return KOL{}, nil
	}
	return nil, fmt.Errorf("%q: %w", name, ErrUnknownShapeFn)
}
