// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	dErrors "pastebin/pkg/domain-errors"
)

// ConcurrentResult tracks outcomes of concurrent test operations.
type ConcurrentResult struct {
	Successes   int32
	RateLimited int32
	Unavailable int32
	Errors      int32
}

// Total returns the total number of operations executed.
func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.RateLimited + r.Unavailable + r.Errors
}

// RunConcurrent executes fn in parallel goroutines and collects results.
// Errors are categorized by domain error code: CodeRateLimited counts as a
// denial, CodeUnavailable as a store outage, anything else as an error.
func RunConcurrent(goroutines int, fn func(idx int) error) *ConcurrentResult {
	var wg sync.WaitGroup
	var successes, limited, unavailable, errs atomic.Int32

	for i := range goroutines {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			err := fn(idx)
			if err == nil {
				successes.Add(1)
				return
			}
			switch code, _ := dErrors.CodeOf(err); code {
			case dErrors.CodeRateLimited:
				limited.Add(1)
			case dErrors.CodeUnavailable:
				unavailable.Add(1)
			default:
				errs.Add(1)
			}
		}(i)
	}

	wg.Wait()

	return &ConcurrentResult{
		Successes:   successes.Load(),
		RateLimited: limited.Load(),
		Unavailable: unavailable.Load(),
		Errors:      errs.Load(),
	}
}

// RunConcurrentCtx executes fn in parallel goroutines with context support.
func RunConcurrentCtx(ctx context.Context, goroutines int, fn func(ctx context.Context, idx int) error) *ConcurrentResult {
	return RunConcurrent(goroutines, func(idx int) error {
		return fn(ctx, idx)
	})
}
