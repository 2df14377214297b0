// Package galerkin assembles the stiffness and mass matrices of a domain by
// integrating every pair of overlapping basis functions, including pairs
// from different refinement layers, with Gauss-Legendre quadrature.
package galerkin

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/notargets/hprbs/basis"
	"github.com/notargets/hprbs/domain"
	"github.com/notargets/hprbs/internal/logging"
	"github.com/notargets/hprbs/internal/observability"
	"github.com/notargets/hprbs/linalg"
	"github.com/notargets/hprbs/mesh"
	"github.com/notargets/hprbs/partitions"
)

// MinPoints is the smallest accepted quadrature size per axis.
const MinPoints = 4

var (
	ErrEmptyDoFSet      = errors.New("domain has no degrees of freedom")
	ErrWrongContinuity  = errors.New("integrals require an H(curl) domain")
	ErrInvalidGLQ       = errors.New("invalid quadrature size")
	ErrSingularDiagonal = errors.New("mass matrix diagonal is zero or not finite")
)

// SamplingError reports a failed sampling pass. ElemID is mesh.NoID when the
// failure is not tied to an element.
type SamplingError struct {
	ElemID int
	Err    error
}

func (e *SamplingError) Error() string {
	if e.ElemID == mesh.NoID {
		return fmt.Sprintf("galerkin sampling: %v", e.Err)
	}
	return fmt.Sprintf("galerkin sampling: elem %d: %v", e.ElemID, e.Err)
}

func (e *SamplingError) Unwrap() error { return e.Err }

// Options configure Sample. The zero value picks the quadrature size from the
// highest expansion order and uses one worker per CPU.
type Options struct {
	Points   *[2]int // nil selects max(MinPoints, max order + 2) per axis
	Workers  int     // 0 selects runtime.GOMAXPROCS(0)
	Strategy partitions.PartitionStrategy
	Logger   logging.Logger
	Metrics  *observability.Collector
	Tracer   trace.Tracer
}

// Sample integrates a and b over every overlapping pair of mapped basis
// functions of d and returns the GEP a(u, v) = lambda b(u, v) over the DoFs.
func Sample(ctx context.Context, d *domain.Domain, a, b Integral, opts Options) (*linalg.GEP, error) {
	if d == nil || d.NumDoFs() == 0 {
		return nil, &SamplingError{ElemID: mesh.NoID, Err: ErrEmptyDoFSet}
	}
	if d.Continuity != domain.HCurl {
		return nil, &SamplingError{ElemID: mesh.NoID, Err: fmt.Errorf("%v: %w", d.Continuity, ErrWrongContinuity)}
	}
	points, err := quadraturePoints(d.Mesh(), opts.Points)
	if err != nil {
		return nil, &SamplingError{ElemID: mesh.NoID, Err: err}
	}
	sampler, err := basis.NewSampler(d.Shape, points)
	if err != nil {
		return nil, &SamplingError{ElemID: mesh.NoID, Err: fmt.Errorf("%w: %w", ErrInvalidGLQ, err)}
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = observability.Tracer(nil)
	}
	ctx, span := tracer.Start(ctx, "galerkin.sample", trace.WithAttributes(
		attribute.Int("domain.dofs", d.NumDoFs()),
		attribute.Int("galerkin.workers", workers),
		attribute.IntSlice("galerkin.points", points[:]),
		attribute.String("galerkin.a", a.String()),
		attribute.String("galerkin.b", b.String()),
	))
	defer span.End()
	log := logging.OrNoop(opts.Logger)

	started := time.Now()
	gep, pairs, err := sample(ctx, tracer, sampler, d, a, b, workers, opts.Strategy)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn(ctx, "galerkin sampling failed", logging.Err(err))
		return nil, err
	}

	elapsed := time.Since(started)
	opts.Metrics.ObserveSampling(a.String(), elapsed, pairs)
	opts.Metrics.ObserveSampling(b.String(), elapsed, pairs)
	span.SetAttributes(
		attribute.Int("galerkin.pairs", pairs),
		attribute.Int("galerkin.nnz_a", gep.A.NNZ()),
		attribute.Int("galerkin.nnz_b", gep.B.NNZ()),
	)
	log.Info(ctx, "galerkin sampling done",
		logging.Int("dofs", d.NumDoFs()),
		logging.Int("pairs", pairs),
		logging.Int("nnz_a", gep.A.NNZ()),
		logging.Int("nnz_b", gep.B.NNZ()),
		logging.Any("elapsed", elapsed),
	)
	return gep, nil
}

func sample(ctx context.Context, tracer trace.Tracer, sampler *basis.Sampler, d *domain.Domain,
	a, b Integral, workers int, strategy partitions.PartitionStrategy) (*linalg.GEP, int, error) {
	p := newPlan(d)
	layout, err := (&partitions.PartitionBuilder{
		Costs:         p.costs,
		NumPartitions: workers,
		Strategy:      strategy,
	}).BuildPartitions()
	if err != nil {
		return nil, 0, &SamplingError{ElemID: mesh.NoID, Err: err}
	}

	bufs := make([]buffer, layout.NumPartitions)
	err = runPartitions(ctx, layout, workers, func(ctx context.Context, part partitions.Partition) error {
		ctx, span := tracer.Start(ctx, "galerkin.partition", trace.WithAttributes(
			attribute.Int("partition.id", part.ID),
			attribute.Int("partition.elems", part.NumElements),
			attribute.Float64("partition.cost", part.Cost),
		))
		defer span.End()

		buf := &bufs[part.ID]
		for _, k := range part.Elements {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := p.sampleElem(sampler, k, a, b, buf); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return err
			}
		}
		span.SetAttributes(attribute.Int("partition.pairs", buf.pairs))
		return nil
	})
	if err != nil {
		var se *SamplingError
		if errors.As(err, &se) {
			return nil, 0, se
		}
		return nil, 0, &SamplingError{ElemID: mesh.NoID, Err: err}
	}

	n := d.NumDoFs()
	aBufs := make([][]linalg.Triplet, len(bufs))
	bBufs := make([][]linalg.Triplet, len(bufs))
	pairs := 0
	for i, buf := range bufs {
		aBufs[i], bBufs[i] = buf.a, buf.b
		pairs += buf.pairs
	}
	A, err := linalg.Assemble(n, aBufs...)
	if err != nil {
		return nil, 0, &SamplingError{ElemID: mesh.NoID, Err: err}
	}
	B, err := linalg.Assemble(n, bBufs...)
	if err != nil {
		return nil, 0, &SamplingError{ElemID: mesh.NoID, Err: err}
	}
	for i, v := range B.Diagonal() {
		if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, 0, &SamplingError{ElemID: mesh.NoID, Err: fmt.Errorf("dof %d: %w", i, ErrSingularDiagonal)}
		}
	}
	return &linalg.GEP{A: A, B: B}, pairs, nil
}

func quadraturePoints(m *mesh.Mesh, explicit *[2]int) ([2]int, error) {
	if explicit != nil {
		if explicit[0] < MinPoints || explicit[1] < MinPoints {
			return [2]int{}, fmt.Errorf("%v points, need at least %d per axis: %w", *explicit, MinPoints, ErrInvalidGLQ)
		}
		return *explicit, nil
	}
	o := m.MaxExpansionOrders()
	return [2]int{max(MinPoints, o.Ni+2), max(MinPoints, o.Nj+2)}, nil
}
