package domain

import (
	"fmt"

	"github.com/notargets/hprbs/basis"
	"github.com/notargets/hprbs/constraint"
	"github.com/notargets/hprbs/mesh"
)

// linkTolerance separates the single nonzero coefficient of a master column
// from projection noise.
const linkTolerance = 1e-9

type builder struct {
	d    *Domain
	m    *mesh.Mesh
	done map[int]bool // interior edges whose pair has been matched
}

func build(m *mesh.Mesh, opts Options) (*Domain, error) {
	if opts.Continuity != HCurl {
		return nil, &DomainConstructionError{EdgeID: mesh.NoID, Err: fmt.Errorf("%v: %w", opts.Continuity, ErrUnsupportedContinuity)}
	}
	if opts.Boundary != PEC && opts.Boundary != Natural {
		return nil, &DomainConstructionError{EdgeID: mesh.NoID, Err: fmt.Errorf("%v: %w", opts.Boundary, ErrUnsupportedBoundary)}
	}
	if opts.Shape == nil {
		opts.Shape = basis.MaxOrtho{}
	}
	if err := m.SetEdgeActivation(); err != nil {
		return nil, &DomainConstructionError{EdgeID: mesh.NoID, Err: fmt.Errorf("%w: %w", ErrUnmatchedInterface, err)}
	}
	if hanging := m.HangingEdges(); len(hanging) > 0 {
		return nil, &DomainConstructionError{EdgeID: hanging[0], Err: fmt.Errorf(
			"%w: root edges %v run through corners of neighboring elements", ErrUnmatchedInterface, hanging)}
	}

	b := &builder{
		d: &Domain{
			Continuity: opts.Continuity,
			Boundary:   opts.Boundary,
			Shape:      opts.Shape,
			mesh:       m,
			elemOffset: make([]int, len(m.Elems)+1),
		},
		m:    m,
		done: make(map[int]bool),
	}
	for _, e := range m.Elems {
		b.d.elemOffset[e.ID] = len(b.d.Specs)
		for k, s := range basis.Specs(e.Orders) {
			b.d.Specs = append(b.d.Specs, BasisSpec{
				ID: len(b.d.Specs), Elem: e.ID, Local: k, Spec: s, DoF: NoDoF,
			})
		}
	}
	b.d.elemOffset[len(m.Elems)] = len(b.d.Specs)

	for _, e := range m.Elems {
		for i := range b.d.ElemSpecs(e.ID) {
			if err := b.classify(e, &b.d.ElemSpecs(e.ID)[i]); err != nil {
				return nil, err
			}
		}
	}
	if len(b.d.DoFs) == 0 {
		return nil, &DomainConstructionError{EdgeID: mesh.NoID, Err: ErrNoDoFs}
	}
	return b.d, nil
}

func (b *builder) classify(e *mesh.Elem, s *BasisSpec) error {
	if s.Mapped() || s.Excluded != NotExcluded {
		return nil // set while matching an earlier edge
	}
	idx := s.Spec.Edge()
	if idx == basis.NoEdge {
		if e.IsLeaf() {
			b.newDoF(s, 1)
		} else {
			s.Excluded = Interior
		}
		return nil
	}

	edge := b.m.Edges[e.Edges[idx]]
	if edge.Boundary {
		side, _ := edge.SideOf(e.ID)
		deepest, _ := edge.Deepest(side)
		switch {
		case b.d.Boundary == PEC:
			s.Excluded = Boundary
		case edge.HasChildren() || deepest != e.ID:
			s.Excluded = Inactive
		default:
			b.newDoF(s, 1)
		}
		return nil
	}

	pair, ok := edge.ActivePair()
	if !ok || (pair[0] != e.ID && pair[1] != e.ID) {
		s.Excluded = Inactive
		return nil
	}
	if b.done[edge.ID] {
		return fmt.Errorf("edge %d: spec %v of elem %d missed by matching", edge.ID, s.Spec, e.ID)
	}
	b.done[edge.ID] = true
	return b.matchEdge(edge, pair)
}

// matchEdge ties the trace functions of the active pair of an interior edge.
func (b *builder) matchEdge(edge *mesh.Edge, pair [2]int) error {
	var (
		traces [2]constraint.Trace
		specs  [2][]*BasisSpec
	)
	for side, id := range pair {
		elem := b.m.Elems[id]
		traces[side] = b.d.trace(elem, edge)
		specs[side] = b.edgeSpecs(elem, mesh.ElemEdgeIndex(side, edge.Dir))
	}

	rel, err := constraint.Match(traces[0], traces[1])
	if err != nil {
		return &DomainConstructionError{EdgeID: edge.ID, Err: fmt.Errorf("%w: %w", ErrUnmatchedInterface, err)}
	}
	links, ok := rel.Links(linkTolerance)
	if !ok {
		return &DomainConstructionError{EdgeID: edge.ID, Err: fmt.Errorf("%w: %v between %v and %v (residual %.3g)",
			ErrUnmatchedInterface, rel.Class, rel.Master, rel.Slave, rel.Residual)}
	}

	master, slave := specs[0], specs[1]
	if rel.Swapped {
		master, slave = slave, master
	}
	linked := make([]bool, len(slave))
	for _, l := range links {
		dof := b.newDoF(master[l.Master], 1)
		b.addTerm(dof, slave[l.Slave], l.Coef)
		linked[l.Slave] = true
	}
	for k, s := range slave {
		if !linked[k] {
			s.Excluded = Unmatched
		}
	}
	return nil
}

func (b *builder) edgeSpecs(elem *mesh.Elem, idx int) []*BasisSpec {
	specs := b.d.ElemSpecs(elem.ID)
	var out []*BasisSpec
	for i := range specs {
		if specs[i].Spec.Edge() == idx {
			out = append(out, &specs[i])
		}
	}
	return out
}

func (b *builder) newDoF(s *BasisSpec, coef float64) int {
	id := len(b.d.DoFs)
	b.d.DoFs = append(b.d.DoFs, DoF{ID: id})
	b.addTerm(id, s, coef)
	return id
}

func (b *builder) addTerm(dof int, s *BasisSpec, coef float64) {
	s.DoF, s.Coef, s.Excluded = dof, coef, NotExcluded
	b.d.DoFs[dof].Terms = append(b.d.DoFs[dof].Terms, Term{Spec: s.ID, Elem: s.Elem, Coef: coef})
}
