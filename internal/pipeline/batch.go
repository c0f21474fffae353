package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"melodypath/internal/config"
	"melodypath/internal/source"
)

// RunBatch processes tracks with at most parallel workers and returns the
// results in input order. The first error, or cancellation of ctx, stops new
// tracks from starting; tracks already running finish.
func RunBatch(ctx context.Context, r Runner, cfg config.Config, tracks []source.Track, parallel int) ([]Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if parallel <= 0 {
		parallel = 1
	}
	results := make([]Result, len(tracks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, tr := range tracks {
		i, tr := i, tr
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := r.Run(gctx, cfg, tr)
			if err != nil {
				return fmt.Errorf("track %s: %w", tr.ID, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}
