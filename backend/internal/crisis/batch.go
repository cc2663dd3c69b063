package crisis

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchConcurrency bounds AnalyzeBatch when the caller passes limit <= 0
const DefaultBatchConcurrency = 8

// Request is one text to analyse together with its caller metadata
type Request struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// AnalyzeBatch analyses reqs concurrently with at most limit workers.
// Results keep the order of reqs. Individual failures surface as failsafe
// results; the only error returned is ctx's once it is cancelled.
func (e *Engine) AnalyzeBatch(ctx context.Context, reqs []Request, limit int) ([]*Result, error) {
	if limit <= 0 {
		limit = DefaultBatchConcurrency
	}

	results := make([]*Result, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, req := range reqs {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.Analyze(req.Text, req.Metadata)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
