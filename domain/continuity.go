package domain

import (
	"errors"
	"fmt"
	"math"

	"github.com/notargets/hprbs/constraint"
	"github.com/notargets/hprbs/element"
	"github.com/notargets/hprbs/mesh"
	"github.com/notargets/hprbs/quadrature"
)

// trace describes the tangential traces elem leaves on edge. The functions of
// an element on its own edge are listed by basis.Specs in trace order. The
// generation counts the splits along the edge, so both elements of an
// active pair share it.
func (d *Domain) trace(elem *mesh.Elem, edge *mesh.Edge) constraint.Trace {
	order, gen := elem.Orders.Ni, elem.HLevels.U
	if edge.Dir == element.V {
		order, gen = elem.Orders.Nj, elem.HLevels.V
	}
	return constraint.Trace{
		Dir:        edge.Dir,
		Order:      order,
		Span:       edgeSpan(d.mesh, edge),
		Generation: gen,
		Shape:      d.Shape,
	}
}

func edgeSpan(m *mesh.Mesh, edge *mesh.Edge) [2]float64 {
	p0, p1 := m.Nodes[edge.Nodes[0]].Coords, m.Nodes[edge.Nodes[1]].Coords
	if edge.Dir == element.U {
		return [2]float64{p0.X, p1.X}
	}
	return [2]float64{p0.Y, p1.Y}
}

// traceCoeffs returns the coefficients of elem's trace functions on its local
// edge idx for the DoF values x. The second result is false when they are all
// zero.
func (d *Domain) traceCoeffs(elem *mesh.Elem, idx int, x []float64) ([]float64, bool) {
	var (
		coeffs  []float64
		nonzero bool
	)
	for _, s := range d.ElemSpecs(elem.ID) {
		if s.Spec.Edge() != idx {
			continue
		}
		c := 0.0
		if s.Mapped() {
			c = s.Coef * x[s.DoF]
		}
		nonzero = nonzero || c != 0
		coeffs = append(coeffs, c)
	}
	return coeffs, nonzero
}

// Audit checks that every spec is either tied to exactly one DoF or excluded
// with a reason, and that every DoF lists exactly the specs tied to it.
func (d *Domain) Audit() error {
	var problems []error
	for _, s := range d.Specs {
		switch {
		case s.Mapped() && s.Excluded != NotExcluded:
			problems = append(problems, fmt.Errorf("spec %d is mapped and excluded (%v)", s.ID, s.Excluded))
		case !s.Mapped() && s.Excluded == NotExcluded:
			problems = append(problems, fmt.Errorf("spec %d (elem %d %v) is unmapped", s.ID, s.Elem, s.Spec))
		case s.Mapped() && (s.DoF >= len(d.DoFs) || s.Coef == 0):
			problems = append(problems, fmt.Errorf("spec %d has dof %d coef %g", s.ID, s.DoF, s.Coef))
		case s.Mapped():
			n := 0
			for _, t := range d.DoFs[s.DoF].Terms {
				if t.Spec == s.ID {
					n++
				}
			}
			if n != 1 {
				problems = append(problems, fmt.Errorf("spec %d appears %d times in dof %d", s.ID, n, s.DoF))
			}
		}
	}
	for _, dof := range d.DoFs {
		if len(dof.Terms) == 0 {
			problems = append(problems, fmt.Errorf("dof %d has no terms", dof.ID))
		}
		for _, t := range dof.Terms {
			if t.Spec < 0 || t.Spec >= len(d.Specs) {
				problems = append(problems, fmt.Errorf("dof %d names spec %d", dof.ID, t.Spec))
				continue
			}
			if s := d.Specs[t.Spec]; s.DoF != dof.ID || s.Coef != t.Coef || s.Elem != t.Elem {
				problems = append(problems, fmt.Errorf("dof %d term for spec %d disagrees with the spec", dof.ID, t.Spec))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %w", ErrAudit, errors.Join(problems...))
	}
	return nil
}

// ContinuityDefect returns the largest jump of the tangential field across
// any unsplit interior edge for the DoF values x. Traces of elements attached
// to the edge's ancestors are restricted onto the edge before comparing.
func (d *Domain) ContinuityDefect(x []float64) (float64, error) {
	if len(x) != len(d.DoFs) {
		return 0, fmt.Errorf("%d values for %d dofs: %w", len(x), len(d.DoFs), ErrCoefficientCount)
	}
	o := d.mesh.MaxExpansionOrders()
	rule, err := quadrature.GLQ(max(o.Ni, o.Nj) + 2)
	if err != nil {
		return 0, err
	}

	worst := 0.0
	for _, edge := range d.mesh.Edges {
		if edge.Boundary || edge.HasChildren() {
			continue
		}
		span := edgeSpan(d.mesh, edge)
		pts := rule.Scale(span[0], span[1]).Points
		ancestors, err := d.mesh.EdgeAncestors(edge.ID, true)
		if err != nil {
			return 0, err
		}

		var sums [2][]float64
		for side := range 2 {
			sums[side] = make([]float64, len(pts))
			for _, aid := range ancestors {
				anc := d.mesh.Edges[aid]
				for _, eid := range anc.SideElems(side) {
					elem := d.mesh.Elems[eid]
					coeffs, ok := d.traceCoeffs(elem, mesh.ElemEdgeIndex(side, anc.Dir), x)
					if !ok {
						continue
					}
					src := d.trace(elem, anc)
					dst := src
					dst.Span, dst.Generation = span, src.Generation+1
					rel, err := constraint.Match(src, dst)
					if err != nil {
						return 0, fmt.Errorf("edge %d, elem %d: %w", edge.ID, eid, err)
					}
					restricted := rel.Restrict(coeffs)
					for q, xq := range pts {
						sums[side][q] += dst.Eval(restricted, xq)
					}
				}
			}
		}
		for q := range pts {
			worst = max(worst, math.Abs(sums[0][q]-sums[1][q]))
		}
	}
	return worst, nil
}
