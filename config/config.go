// Package config reads the YAML description of a refinement and sampling
// run.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/notargets/hprbs/basis"
	"github.com/notargets/hprbs/domain"
	"github.com/notargets/hprbs/galerkin"
	"github.com/notargets/hprbs/mesh"
	"github.com/notargets/hprbs/partitions"
)

var ErrInvalidRun = errors.New("invalid run configuration")

// Run is one complete run: the mesh to load, the refinements applied to it
// in order, and how the resulting domain is sampled and solved.
type Run struct {
	Mesh        string  `yaml:"mesh"`
	Orders      *Orders `yaml:"orders,omitempty"` // applied to every leaf before the steps
	Refinements []Step  `yaml:"refinements,omitempty"`

	Boundary string `yaml:"boundary,omitempty"` // pec (default) or natural
	Shape    string `yaml:"shape,omitempty"`    // max_ortho (default) or kol

	Points   []int  `yaml:"points,omitempty"` // empty or [nu, nv]
	Workers  int    `yaml:"workers,omitempty"`
	Strategy string `yaml:"strategy,omitempty"`

	// Target requests a dense solve and the eigenvalue closest to it.
	Target *float64 `yaml:"target,omitempty"`
	// Export writes the refined mesh as JSON when set.
	Export string `yaml:"export,omitempty"`
}

type Orders struct {
	Ni int `yaml:"ni"`
	Nj int `yaml:"nj"`
}

func (o Orders) PolyOrders() mesh.PolyOrders { return mesh.PolyOrders{Ni: o.Ni, Nj: o.Nj} }

// StepType is the refinement family of a Step.
type StepType string

const (
	StepH StepType = "h"
	StepP StepType = "p"
)

// Step is one refinement. Without Elems it applies to every eligible leaf.
type Step struct {
	Type  StepType `yaml:"type"`
	Kind  string   `yaml:"kind,omitempty"`  // h: T, U, V, U0, U1, V0 or V1
	Delta [2]int   `yaml:"delta,omitempty"` // p: order change in u and v
	Elems []int    `yaml:"elems,omitempty"`
}

func (s Step) String() string {
	target := "all leaves"
	if len(s.Elems) > 0 {
		target = fmt.Sprintf("elems %v", s.Elems)
	}
	if s.Type == StepP {
		return fmt.Sprintf("p %+d,%+d on %s", s.Delta[0], s.Delta[1], target)
	}
	return fmt.Sprintf("h %s on %s", s.Kind, target)
}

// Load reads and validates a run description. Unknown keys are rejected. A
// relative mesh path is resolved against the directory of the file.
func Load(path string) (*Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open run config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	var r Run
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("decode run config %s: %w", path, err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if !filepath.IsAbs(r.Mesh) {
		r.Mesh = filepath.Join(filepath.Dir(path), r.Mesh)
	}
	return &r, nil
}

// Validate reports every problem of the run at once.
func (r *Run) Validate() error {
	var errs []error
	if r.Mesh == "" {
		errs = append(errs, errors.New("mesh path is required"))
	}
	if r.Orders != nil {
		if err := r.Orders.PolyOrders().Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	for i, s := range r.Refinements {
		if err := s.validate(); err != nil {
			errs = append(errs, fmt.Errorf("refinement %d: %w", i, err))
		}
	}
	if _, err := domain.ParseBoundaryCondition(r.Boundary); err != nil {
		errs = append(errs, err)
	}
	if _, err := basis.ParseShapeFn(r.Shape); err != nil {
		errs = append(errs, err)
	}
	if _, err := partitions.ParseStrategy(r.Strategy); err != nil {
		errs = append(errs, err)
	}
	switch {
	case len(r.Points) != 0 && len(r.Points) != 2:
		errs = append(errs, fmt.Errorf("points needs 2 values, got %d", len(r.Points)))
	case len(r.Points) == 2 && (r.Points[0] < galerkin.MinPoints || r.Points[1] < galerkin.MinPoints):
		errs = append(errs, fmt.Errorf("points %v: %w", r.Points, galerkin.ErrInvalidGLQ))
	}
	if r.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers %d is negative", r.Workers))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRun, errors.Join(errs...))
	}
	return nil
}

func (s Step) validate() error {
	for _, id := range s.Elems {
		if id < 0 {
			return fmt.Errorf("negative elem id %d", id)
		}
	}
	switch s.Type {
	case StepH:
		_, err := mesh.ParseHRef(s.Kind)
		return err
	case StepP:
		if s.Kind != "" {
			return fmt.Errorf("p-refinement takes no kind, got %q", s.Kind)
		}
		if s.Delta == [2]int{} {
			return errors.New("p-refinement with zero delta")
		}
		return nil
	}
	return fmt.Errorf("unknown refinement type %q", s.Type)
}

// Apply sets the global orders and runs each refinement step on m in order.
// It stops at the first failing step; steps already applied are kept.
func (r *Run) Apply(m *mesh.Mesh) error {
	if r.Orders != nil {
		if err := m.SetGlobalExpansionOrders(r.Orders.PolyOrders()); err != nil {
			return fmt.Errorf("global orders: %w", err)
		}
	}
	for i, s := range r.Refinements {
		if err := s.apply(m); err != nil {
			return fmt.Errorf("refinement %d (%v): %w", i, s, err)
		}
	}
	return nil
}

func (s Step) apply(m *mesh.Mesh) error {
	if s.Type == StepP {
		ref := mesh.PRef{Di: s.Delta[0], Dj: s.Delta[1]}
		if len(s.Elems) == 0 {
			return m.GlobalPRefinement(ref)
		}
		return m.PRefineElems(s.Elems, ref)
	}
	ref, err := mesh.ParseHRef(s.Kind)
	if err != nil {
		return err
	}
	if len(s.Elems) == 0 {
		return m.GlobalHRefinement(ref)
	}
	return m.HRefineElems(s.Elems, ref)
}

// DomainOptions returns the domain settings of the run.
func (r *Run) DomainOptions() (domain.Options, error) {
	bc, err := domain.ParseBoundaryCondition(r.Boundary)
	if err != nil {
		return domain.Options{}, err
	}
	shape, err := basis.ParseShapeFn(r.Shape)
	if err != nil {
		return domain.Options{}, err
	}
	return domain.Options{Continuity: domain.HCurl, Boundary: bc, Shape: shape}, nil
}

// SamplingOptions returns the sampler settings of the run.
func (r *Run) SamplingOptions() (galerkin.Options, error) {
	strategy, err := partitions.ParseStrategy(r.Strategy)
	if err != nil {
		return galerkin.Options{}, err
	}
	opts := galerkin.Options{Workers: r.Workers, Strategy: strategy}
	if len(r.Points) == 2 {
		opts.Points = &[2]int{r.Points[0], r.Points[1]}
	}
	return opts, nil
}
