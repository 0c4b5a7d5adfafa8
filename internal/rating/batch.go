package rating

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/database/models"
)

// RateBatch rates records for one location with at most the configured
// number of workers. Outcomes are in input order. Only cancellation of ctx
// fails the batch.
func (e *Engine) RateBatch(ctx context.Context, locationID int64, records []*models.CallRecord) ([]Outcome, error) {
	out := make([]Outcome, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, rec := range records {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = e.Rate(gctx, locationID, rec)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("rating batch: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("rating batch: %w", err)
	}
	return out, nil
}
