package domain

import (
	"errors"
	"fmt"
	"math"

	"github.com/notargets/hprbs/basis"
	"github.com/notargets/hprbs/element"
)

// FieldAt evaluates the field with DoF values x at a physical point, summing
// the leaf that contains the point and all of its ancestors.
func (d *Domain) FieldAt(x []float64, p element.Point) (basis.Value, error) {
	if len(x) != len(d.DoFs) {
		return basis.Value{}, fmt.Errorf("%d values for %d dofs: %w", len(x), len(d.DoFs), ErrCoefficientCount)
	}
	leaf, ok := d.mesh.LeafAt(p)
	if !ok {
		return basis.Value{}, fmt.Errorf("%v: %w", p, ErrPointOutsideDomain)
	}
	ids, err := d.mesh.Ancestors(leaf, true)
	if err != nil {
		return basis.Value{}, err
	}

	var out basis.Value
	for _, id := range ids {
		elem := d.mesh.Elems[id]
		ur, vr := elem.Element.ToParametric(p)
		r := elem.ParametricRange()
		u := 2*(ur-r[0][0])/r.Width(element.U) - 1
		v := 2*(vr-r[1][0])/r.Width(element.V) - 1
		jac := elem.Jacobian()
		for _, s := range d.ElemSpecs(id) {
			if !s.Mapped() || x[s.DoF] == 0 {
				continue
			}
			c := s.Coef * x[s.DoF]
			val := s.Spec.At(d.Shape, u, v, jac)
			out.E[0] += c * val.E[0]
			out.E[1] += c * val.E[1]
			out.Curl += c * val.Curl
		}
	}
	return out, nil
}

// FieldSample is the field at one point of a sampling grid. Inside is false
// for points not covered by any element.
type FieldSample struct {
	Point  element.Point
	Value  basis.Value
	Inside bool
}

// SampleField evaluates the field on the centers of an nx by ny grid of cells
// spanning the bounding box of the mesh, row by row from the bottom.
func (d *Domain) SampleField(x []float64, nx, ny int) ([]FieldSample, error) {
	if nx < 1 || ny < 1 {
		return nil, fmt.Errorf("field grid %dx%d is empty", nx, ny)
	}
	lo := element.Point{X: math.Inf(1), Y: math.Inf(1)}
	hi := element.Point{X: math.Inf(-1), Y: math.Inf(-1)}
	for _, el := range d.mesh.Elements {
		b := el.Bounds()
		lo = element.Point{X: min(lo.X, b.Min.X), Y: min(lo.Y, b.Min.Y)}
		hi = element.Point{X: max(hi.X, b.Max.X), Y: max(hi.Y, b.Max.Y)}
	}
	dx, dy := (hi.X-lo.X)/float64(nx), (hi.Y-lo.Y)/float64(ny)

	out := make([]FieldSample, 0, nx*ny)
	for j := range ny {
		for i := range nx {
			p := element.Point{X: lo.X + (float64(i)+0.5)*dx, Y: lo.Y + (float64(j)+0.5)*dy}
			val, err := d.FieldAt(x, p)
			switch {
			case errors.Is(err, ErrPointOutsideDomain):
				out = append(out, FieldSample{Point: p})
			case err != nil:
				return nil, err
			default:
				out = append(out, FieldSample{Point: p, Value: val, Inside: true})
			}
		}
	}
	return out, nil
}
