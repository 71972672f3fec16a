package engine

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// RunBatch runs independent engines concurrently, at most limit at a time (limit <= 0 means no limit).
// Results are returned in the order of engines. The first failure cancels the remaining runs
// between frames.
func RunBatch(ctx context.Context, limit int, engines ...*Engine) ([]*Result, error) {
	results := make([]*Result, len(engines))

	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, e := range engines {
		g.Go(func() error {
			res, err := e.Run(ctx)
			if err != nil {
				return errors.Wrapf(err, "run %s (%s)", e.strategy.Name(), e.runID)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}

	return results, nil
}
