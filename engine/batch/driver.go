// Package batch fans independent submissions out to a bounded worker pool.
package batch

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/castnote/castnote/pkg/logger"
)

// Result is the outcome of one batch item. Index refers to the input
// position, which the result slice preserves regardless of completion
// order.
type Result[T any] struct {
	Index int
	Input string
	Value T
	Err   error
}

// WorkFunc processes one input item.
type WorkFunc[T any] func(ctx context.Context, input string) (T, error)

// Run processes items with at most concurrency workers sharing a single
// cursor over the input list. One item's failure is captured in its slot
// and never cancels or blocks the others; Run returns only after every
// worker has finished.
func Run[T any](ctx context.Context, items []string, concurrency int, work WorkFunc[T]) []Result[T] {
	log := logger.FromContext(ctx)

	results := make([]Result[T], len(items))
	if len(items) == 0 {
		return results
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > len(items) {
		concurrency = len(items)
	}

	var cursor atomic.Int64
	cursor.Store(-1)

	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				idx := int(cursor.Add(1))
				if idx >= len(items) {
					return
				}
				input := items[idx]
				log.Debug("batch worker claimed item", "worker", worker, "index", idx)

				value, err := work(ctx, input)
				results[idx] = Result[T]{Index: idx, Input: input, Value: value, Err: err}
				if err != nil {
					log.Warn("batch item failed", "index", idx, "error", err)
				}
			}
		}(w)
	}
	wg.Wait()

	return results
}

// Failed counts the results that carry an error.
func Failed[T any](results []Result[T]) int {
	failed := 0
	for i := range results {
		if results[i].Err != nil {
			failed++
		}
	}
	return failed
}
