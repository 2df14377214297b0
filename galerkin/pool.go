package galerkin

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/notargets/hprbs/partitions"
)

// runPartitions calls fn once per partition on at most workers goroutines.
// The first error cancels the context passed to the remaining calls.
func runPartitions(ctx context.Context, layout *partitions.PartitionLayout, workers int,
	fn func(ctx context.Context, p partitions.Partition) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, p := range layout.Partitions {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, p)
		})
	}
	return g.Wait()
}
