package galerkin

import (
	"github.com/notargets/hprbs/basis"
	"github.com/notargets/hprbs/domain"
	"github.com/notargets/hprbs/linalg"
	"github.com/notargets/hprbs/mesh"
)

// plan lists the elements with at least one mapped basis function. Each work
// item integrates its own pairs and its pairs with every descendant.
type plan struct {
	d      *domain.Domain
	m      *mesh.Mesh
	work   []int // element ids
	costs  []float64
	mapped [][]int // per element, local indices of the mapped specs
	descs  [][]int // per work item, descendants with mapped specs
}

// buffer accumulates the triplets of one partition.
type buffer struct {
	a, b  []linalg.Triplet
	pairs int
}

func newPlan(d *domain.Domain) *plan {
	m := d.Mesh()
	p := &plan{d: d, m: m, mapped: make([][]int, len(m.Elems))}
	for _, e := range m.Elems {
		for k, s := range d.ElemSpecs(e.ID) {
			if s.Mapped() {
				p.mapped[e.ID] = append(p.mapped[e.ID], k)
			}
		}
	}
	for _, e := range m.Elems {
		own := len(p.mapped[e.ID])
		if own == 0 {
			continue
		}
		ids, _ := m.Descendants(e.ID, false)
		var descs []int
		inner := own
		for _, id := range ids {
			if n := len(p.mapped[id]); n > 0 {
				descs = append(descs, id)
				inner += n
			}
		}
		p.work = append(p.work, e.ID)
		p.descs = append(p.descs, descs)
		p.costs = append(p.costs, float64(own*inner))
	}
	return p
}

// sampleElem integrates work item k.
func (p *plan) sampleElem(s *basis.Sampler, k int, a, b Integral, buf *buffer) error {
	id := p.work[k]
	elem := p.m.Elems[id]
	mat := elem.Materials()
	specs := p.d.ElemSpecs(id)
	own := p.mapped[id]

	local, err := s.Sample(elem, elem)
	if err != nil {
		return &SamplingError{ElemID: id, Err: err}
	}
	for x, i := range own {
		for _, j := range own[x:] {
			buf.add(specs[i], specs[j], a.Integrate(local[i], local[j], mat), b.Integrate(local[i], local[j], mat), i == j)
		}
	}

	for _, did := range p.descs[k] {
		desc := p.m.Elems[did]
		over, err := s.Sample(elem, desc)
		if err != nil {
			return &SamplingError{ElemID: id, Err: err}
		}
		inner, err := s.Sample(desc, desc)
		if err != nil {
			return &SamplingError{ElemID: did, Err: err}
		}
		dspecs := p.d.ElemSpecs(did)
		for _, i := range own {
			for _, j := range p.mapped[did] {
				buf.add(specs[i], dspecs[j], a.Integrate(over[i], inner[j], mat), b.Integrate(over[i], inner[j], mat), false)
			}
		}
	}
	return nil
}

// add scatters the pair integrals va, vb of two specs onto their DoFs. A
// pair is added to both (I, J) and (J, I) unless it is a spec with itself.
func (buf *buffer) add(s, t domain.BasisSpec, va, vb float64, self bool) {
	buf.pairs++
	c := s.Coef * t.Coef
	i, j := s.DoF, t.DoF
	if va != 0 {
		buf.a = append(buf.a, linalg.Triplet{Row: i, Col: j, Val: c * va})
		if !self {
			buf.a = append(buf.a, linalg.Triplet{Row: j, Col: i, Val: c * va})
		}
	}
	if vb != 0 {
		buf.b = append(buf.b, linalg.Triplet{Row: i, Col: j, Val: c * vb})
		if !self {
			buf.b = append(buf.b, linalg.Triplet{Row: j, Col: i, Val: c * vb})
		}
	}
}
