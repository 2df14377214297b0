// Package observability holds the Prometheus collectors and OpenTelemetry
// helpers used by the refinement, domain and sampling layers.
package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector bundles the Prometheus metrics of a refinement/sampling run.
type Collector struct {
	Refinements      *prometheus.CounterVec
	DoFs             prometheus.Gauge
	SamplingDuration *prometheus.HistogramVec
	SampledPairs     *prometheus.CounterVec
}

// NewCollector registers the metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil. Registering twice
// against the same registerer returns the already registered collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	refinements, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hprbs_refinements_total",
		Help: "Number of applied element refinements, labeled by kind (h or p).",
	}, []string{"kind"}), "hprbs_refinements_total")
	if err != nil {
		return nil, err
	}

	dofs, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hprbs_dofs",
		Help: "Number of degrees of freedom of the most recently built domain.",
	}), "hprbs_dofs")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hprbs_sampling_duration_seconds",
		Help:    "Galerkin sampling wall time in seconds, labeled by integral.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	}, []string{"integral"}), "hprbs_sampling_duration_seconds")
	if err != nil {
		return nil, err
	}

	pairs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hprbs_sampled_pairs_total",
		Help: "Number of integrated basis function pairs, labeled by integral.",
	}, []string{"integral"}), "hprbs_sampled_pairs_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		Refinements:      refinements,
		DoFs:             dofs,
		SamplingDuration: duration,
		SampledPairs:     pairs,
	}, nil
}

// AddRefinements counts n applied refinements of the given kind.
func (c *Collector) AddRefinements(kind string, n int) {
	if c == nil || c.Refinements == nil || n <= 0 {
		return
	}
	c.Refinements.WithLabelValues(kind).Add(float64(n))
}

// SetDoFs records the size of the most recent DOF table.
func (c *Collector) SetDoFs(n int) {
	if c == nil || c.DoFs == nil {
		return
	}
	c.DoFs.Set(float64(n))
}

// ObserveSampling records the duration and pair count of one sampling pass.
func (c *Collector) ObserveSampling(integral string, elapsed time.Duration, pairs int) {
	if c == nil {
		return
	}
	if c.SamplingDuration != nil {
		c.SamplingDuration.WithLabelValues(integral).Observe(elapsed.Seconds())
	}
	if c.SampledPairs != nil && pairs > 0 {
		c.SampledPairs.WithLabelValues(integral).Add(float64(pairs))
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
