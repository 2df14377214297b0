// Command hprbs loads a mesh, applies the refinements of a run description,
// builds the H(curl) domain and samples its Galerkin matrices. With a target
// in the run description it also solves the eigenproblem densely and reports
// the eigenvalue closest to the target.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/notargets/hprbs/config"
	"github.com/notargets/hprbs/domain"
	"github.com/notargets/hprbs/galerkin"
	"github.com/notargets/hprbs/internal/logging"
	"github.com/notargets/hprbs/internal/observability"
	"github.com/notargets/hprbs/mesh"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "hprbs:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("hprbs", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to the YAML run description")
	meshPath := fs.String("mesh", "", "mesh JSON file, overrides the run description")
	exportPath := fs.String("export", "", "write the refined mesh as JSON, overrides the run description")
	traceSpans := fs.Bool("trace", false, "print OpenTelemetry spans to stderr")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus /metrics on this address after the run until interrupted")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath == "" {
		return errors.New("-config is required")
	}

	ctx, log := logging.WithRunLogger(ctx, logging.NewFromEnv())

	r, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *meshPath != "" {
		r.Mesh = *meshPath
	}
	if *exportPath != "" {
		r.Export = *exportPath
	}

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     *traceSpans,
		ServiceName: "hprbs",
		Writer:      stderr,
	}, log)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(ctx, shutdown, log)

	reg := prometheus.NewRegistry()
	collector, err := observability.NewCollector(reg)
	if err != nil {
		return err
	}

	m, err := mesh.FromFile(r.Mesh)
	if err != nil {
		return err
	}
	m.SetLogger(log)
	m.SetMetrics(collector)
	if err := r.Apply(m); err != nil {
		return err
	}
	fmt.Fprintln(stdout, m)
	if r.Export != "" {
		if err := exportMesh(m, r.Export); err != nil {
			return err
		}
		log.Info(ctx, "exported refined mesh", logging.String("path", r.Export))
	}

	dopts, err := r.DomainOptions()
	if err != nil {
		return err
	}
	dopts.Logger, dopts.Metrics = log, collector
	d, err := domain.New(ctx, m, dopts)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, d)

	sopts, err := r.SamplingOptions()
	if err != nil {
		return err
	}
	sopts.Logger, sopts.Metrics = log, collector
	gep, err := galerkin.Sample(ctx, d, galerkin.CurlCurl{}, galerkin.L2Inner{}, sopts)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "GEP: %d unknowns, nnz(A) = %d, nnz(B) = %d\n", gep.Dim(), gep.A.NNZ(), gep.B.NNZ())

	if r.Target != nil {
		pair, err := gep.Nearest(*r.Target)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "nearest eigenvalue to %g: %.10g (residual %.3g)\n",
			*r.Target, pair.Value, gep.Residual(pair))
	}

	if *metricsAddr != "" {
		return serveMetrics(ctx, *metricsAddr, reg, log)
	}
	return nil
}

func exportMesh(m *mesh.Mesh, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export mesh: %w", err)
	}
	if err := m.ExportJSON(f); err != nil {
		f.Close()
		return fmt.Errorf("export mesh: %w", err)
	}
	return f.Close()
}

// serveMetrics blocks until ctx is done.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, log logging.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	errc := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	log.Info(ctx, "serving Prometheus metrics", logging.String("addr", addr))

	select {
	case err, ok := <-errc:
		if ok {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
