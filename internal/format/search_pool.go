package format

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/antmicro/verible/internal/syntax"
)

// searchWorklist runs wrapSearchLine for every unwrapped line in worklist.
// Per the concurrency contract, the partition tree and format-token slice
// are read-only by this point, so each line's search is independent; a
// bounded worker pool writes results into a pre-sized slice indexed by
// worklist position, and cooperative cancellation is checked between lines.
func searchWorklist(ctx context.Context, tree *syntax.Tree, fts []formatToken, style Style, maxSearchStates int, worklist []*partitionNode) ([]formattedExcerpt, bool, error) {
	excerpts := make([]formattedExcerpt, len(worklist))
	if len(worklist) == 0 {
		return excerpts, false, nil
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > len(worklist) {
		workers = len(worklist)
	}
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for idx, node := range worklist {
		idx, node := idx, node
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			excerpts[idx] = wrapSearchLine(tree, fts, style, maxSearchStates, node)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, false, &ErrCancelled{Message: err.Error()}
	}

	resourceExhausted := false
	for _, e := range excerpts {
		if !e.CompletedFormatting {
			resourceExhausted = true
			break
		}
	}
	return excerpts, resourceExhausted, nil
}
