package accounts

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DeleteFunc removes a single account.
type DeleteFunc func(ctx context.Context, accountID string) error

// Strategy runs deleteOne for every id. The returned slice is aligned with ids:
// errs[i] is the outcome of ids[i], whatever order the calls completed in.
type Strategy interface {
	Run(ctx context.Context, ids []string, deleteOne DeleteFunc) []error
}

// Sequential deletes one id at a time in input order.
type Sequential struct{}

// Run implements Strategy.
func (Sequential) Run(ctx context.Context, ids []string, deleteOne DeleteFunc) []error {
	errs := make([]error, len(ids))
	for index, id := range ids {
		errs[index] = deleteOne(ctx, id)
	}
	return errs
}

// BoundedPool deletes with at most Workers calls in flight. A panic in one
// call is recorded as that id's failure; it cannot reach the caller's
// recovery from a pool goroutine.
type BoundedPool struct {
	Workers int
}

// Run implements Strategy.
func (p BoundedPool) Run(ctx context.Context, ids []string, deleteOne DeleteFunc) []error {
	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	errs := make([]error, len(ids))
	var group errgroup.Group
	group.SetLimit(workers)
	for index, id := range ids {
		index, id := index, id
		group.Go(func() error {
			defer func() {
				if recovered := recover(); recovered != nil {
					errs[index] = fmt.Errorf("accounts: delete %s panicked: %v", id, recovered)
				}
			}()
			errs[index] = deleteOne(ctx, id)
			return nil
		})
	}
	_ = group.Wait()
	return errs
}

// StrategyFor picks the sequential strategy for one worker and a bounded pool otherwise.
func StrategyFor(workers int) Strategy {
	if workers <= 1 {
		return Sequential{}
	}
	return BoundedPool{Workers: workers}
}
