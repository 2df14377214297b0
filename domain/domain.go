// Package domain turns a refined mesh into a set of degrees of freedom. Every
// local basis function of every element in the forest is either tied to one
// DoF with a coefficient, or excluded and held at zero, such that any
// coefficient vector yields a field with continuous tangential component.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/notargets/hprbs/basis"
	"github.com/notargets/hprbs/internal/logging"
	"github.com/notargets/hprbs/internal/observability"
	"github.com/notargets/hprbs/mesh"
)

// ContinuityCondition selects what must be continuous across interfaces.
type ContinuityCondition uint8

const (
	HCurl ContinuityCondition = iota // tangential component
)

func (c ContinuityCondition) String() string {
	if c == HCurl {
		return "H(curl)"
	}
	return fmt.Sprintf("ContinuityCondition(%d)", uint8(c))
}

// BoundaryCondition selects how traces on the outer boundary are treated.
type BoundaryCondition uint8

const (
	PEC     BoundaryCondition = iota // tangential field fixed at zero
	Natural                          // boundary traces are free
)

func (b BoundaryCondition) String() string {
	switch b {
	case PEC:
		return "pec"
	case Natural:
		return "natural"
	}
	return fmt.Sprintf("BoundaryCondition(%d)", uint8(b))
}

// ParseBoundaryCondition accepts "pec" or "natural". An empty name is PEC.
func ParseBoundaryCondition(s string) (BoundaryCondition, error) {
	switch strings.ToLower(s) {
	case "", "pec":
		return PEC, nil
	case "natural":
		return Natural, nil
	}
	return 0, fmt.Errorf("%q: %w", s, ErrUnsupportedBoundary)
}

// Exclusion is the reason a basis function carries no DoF.
type Exclusion uint8

const (
	NotExcluded Exclusion = iota
	Boundary              // trace on a PEC boundary
	Unmatched             // higher order trace with no master counterpart
	Inactive              // trace on an edge owned by other elements
	Interior              // interior function of a refined element
)

func (e Exclusion) String() string {
	return [...]string{"none", "boundary", "unmatched", "inactive", "interior"}[e]
}

// BasisSpec is one local basis function of one element.
type BasisSpec struct {
	ID       int // index into Domain.Specs
	Elem     int
	Local    int // index into basis.Specs of the element orders
	Spec     basis.Spec
	DoF      int // NoDoF when excluded
	Coef     float64
	Excluded Exclusion
}

// NoDoF is the DoF of an excluded BasisSpec.
const NoDoF = -1

// Mapped reports whether the spec carries a DoF.
func (b BasisSpec) Mapped() bool { return b.DoF != NoDoF }

// Term is one basis function contributing to a DoF.
type Term struct {
	Spec int // BasisSpec id
	Elem int
	Coef float64
}

// DoF is a global unknown and the local functions it drives.
type DoF struct {
	ID    int
	Terms []Term
}

var (
	ErrNoDoFs                = errors.New("domain has no degrees of freedom")
	ErrUnsupportedContinuity = errors.New("unsupported continuity condition")
	ErrUnsupportedBoundary   = errors.New("unsupported boundary condition")
	ErrUnmatchedInterface    = errors.New("interface traces cannot be matched")
	ErrCoefficientCount      = errors.New("coefficient vector length does not match the DoF count")
	ErrAudit                 = errors.New("dof table is inconsistent")
	ErrPointOutsideDomain    = errors.New("point is outside the mesh")
)

// DomainConstructionError reports why a mesh could not be turned into a
// Domain. EdgeID is mesh.NoID when no edge is involved.
type DomainConstructionError struct {
	EdgeID int
	Err    error
}

func (e *DomainConstructionError) Error() string {
	if e.EdgeID == mesh.NoID {
		return fmt.Sprintf("domain construction: %v", e.Err)
	}
	return fmt.Sprintf("domain construction: edge %d: %v", e.EdgeID, e.Err)
}

func (e *DomainConstructionError) Unwrap() error { return e.Err }

// Options configure New. The zero value builds an H(curl) domain with PEC
// boundaries and the MaxOrtho basis.
type Options struct {
	Continuity ContinuityCondition
	Boundary   BoundaryCondition
	Shape      basis.ShapeFn
	Logger     logging.Logger
	Metrics    *observability.Collector
	Tracer     trace.Tracer
}

// Domain is a frozen mesh with its DoF table. It is safe for concurrent
// readers.
type Domain struct {
	Continuity ContinuityCondition
	Boundary   BoundaryCondition
	Shape      basis.ShapeFn
	Specs      []BasisSpec
	DoFs       []DoF

	mesh       *mesh.Mesh
	elemOffset []int // Specs[elemOffset[e]:elemOffset[e+1]] belong to elem e
}

// New builds a Domain from a copy of m. Later refinement of m does not affect
// the Domain.
func New(ctx context.Context, m *mesh.Mesh, opts Options) (*Domain, error) {
	tracer := opts.Tracer
	if tracer == nil {
		tracer = observability.Tracer(nil)
	}
	ctx, span := tracer.Start(ctx, "domain.build", trace.WithAttributes(
		attribute.Int("mesh.elems", len(m.Elems)),
		attribute.String("domain.boundary", opts.Boundary.String()),
	))
	defer span.End()
	log := logging.OrNoop(opts.Logger)

	d, err := build(m.Clone(), opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn(ctx, "domain construction failed", logging.Err(err))
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("domain.specs", len(d.Specs)),
		attribute.Int("domain.dofs", len(d.DoFs)),
	)
	opts.Metrics.SetDoFs(len(d.DoFs))
	log.Info(ctx, "domain built",
		logging.Int("elems", len(m.Elems)),
		logging.Int("specs", len(d.Specs)),
		logging.Int("dofs", len(d.DoFs)),
		logging.String("shape", d.Shape.String()),
		logging.String("boundary", d.Boundary.String()),
	)
	return d, nil
}

// Mesh returns the frozen mesh of the domain. Callers must not refine it.
func (d *Domain) Mesh() *mesh.Mesh { return d.mesh }

// NumDoFs returns the number of global unknowns.
func (d *Domain) NumDoFs() int { return len(d.DoFs) }

// ElemSpecs returns the basis specs of an element in basis.Specs order.
func (d *Domain) ElemSpecs(elemID int) []BasisSpec {
	return d.Specs[d.elemOffset[elemID]:d.elemOffset[elemID+1]]
}

// Excluded counts the excluded specs per reason.
func (d *Domain) Excluded() map[Exclusion]int {
	out := make(map[Exclusion]int)
	for _, s := range d.Specs {
		if !s.Mapped() {
			out[s.Excluded]++
		}
	}
	return out
}

func (d *Domain) String() string {
	ex := d.Excluded()
	return fmt.Sprintf("Domain: %d DoFs from %d specs (excluded: %d boundary, %d unmatched, %d inactive, %d interior)",
		len(d.DoFs), len(d.Specs), ex[Boundary], ex[Unmatched], ex[Inactive], ex[Interior])
}
