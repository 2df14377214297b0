package element

import "fmt"

// ParametricRange is a sub-rectangle of the reference square [-1,1]^2,
// stored as [[umin, umax], [vmin, vmax]].
type ParametricRange [2][2]float64

// FullRange covers the whole reference square.
var FullRange = ParametricRange{{-1, 1}, {-1, 1}}

// Half returns the lower or upper half of r along dir.
func (r ParametricRange) Half(dir ParaDir, upper bool) ParametricRange {
	lo, hi := r[dir][0], r[dir][1]
	mid := (lo + hi) / 2
	if upper {
		r[dir] = [2]float64{mid, hi}
	} else {
		r[dir] = [2]float64{lo, mid}
	}
	return r
}

// Width returns the extent of r along dir.
func (r ParametricRange) Width(dir ParaDir) float64 {
	return r[dir][1] - r[dir][0]
}

// Map returns the coordinate in r corresponding to the local coordinate
// t in [-1,1] along dir.
func (r ParametricRange) Map(dir ParaDir, t float64) float64 {
	lo, hi := r[dir][0], r[dir][1]
	return lo + (t+1)*(hi-lo)/2
}

// Within expresses r in the local coordinates of outer, so that outer maps to
// the full reference square.
func (r ParametricRange) Within(outer ParametricRange) ParametricRange {
	var out ParametricRange
	for d := 0; d < 2; d++ {
		lo, w := outer[d][0], outer[d][1]-outer[d][0]
		out[d][0] = 2*(r[d][0]-lo)/w - 1
		out[d][1] = 2*(r[d][1]-lo)/w - 1
	}
	return out
}

// Inside reports whether r lies inside outer.
func (r ParametricRange) Inside(outer ParametricRange) bool {
	const tol = 1e-14
	for d := 0; d < 2; d++ {
		if r[d][0] < outer[d][0]-tol || r[d][1] > outer[d][1]+tol {
			return false
		}
	}
	return true
}

func (r ParametricRange) String() string {
	return fmt.Sprintf("u[%.4g, %.4g] v[%.4g, %.4g]", r[0][0], r[0][1], r[1][0], r[1][1])
}
