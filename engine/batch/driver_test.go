package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	t.Run("Should preserve input order regardless of completion order", func(t *testing.T) {
		delays := map[string]time.Duration{
			"a": 30 * time.Millisecond,
			"b": time.Millisecond,
			"c": 10 * time.Millisecond,
		}

		results := Run(t.Context(), []string{"a", "b", "c"}, 2, func(_ context.Context, in string) (string, error) {
			time.Sleep(delays[in])
			return "done:" + in, nil
		})

		require.Len(t, results, 3)
		assert.Equal(t, "done:a", results[0].Value)
		assert.Equal(t, "done:b", results[1].Value)
		assert.Equal(t, "done:c", results[2].Value)
	})

	t.Run("Should capture one item's failure without aborting the rest", func(t *testing.T) {
		boom := errors.New("boom")

		results := Run(t.Context(), []string{"ok1", "bad", "ok2"}, 2, func(_ context.Context, in string) (string, error) {
			if in == "bad" {
				return "", boom
			}
			return in, nil
		})

		assert.NoError(t, results[0].Err)
		assert.ErrorIs(t, results[1].Err, boom)
		assert.NoError(t, results[2].Err)
		assert.Equal(t, 1, Failed(results))
	})

	t.Run("Should never run more workers than items", func(t *testing.T) {
		var active, peak atomic.Int64
		var mu sync.Mutex

		Run(t.Context(), []string{"x", "y"}, 10, func(_ context.Context, in string) (string, error) {
			cur := active.Add(1)
			mu.Lock()
			if cur > peak.Load() {
				peak.Store(cur)
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			active.Add(-1)
			return in, nil
		})

		assert.LessOrEqual(t, peak.Load(), int64(2))
	})

	t.Run("Should bound concurrency to the configured limit", func(t *testing.T) {
		var active, peak atomic.Int64
		var mu sync.Mutex
		items := []string{"1", "2", "3", "4", "5", "6"}

		Run(t.Context(), items, 2, func(_ context.Context, in string) (string, error) {
			cur := active.Add(1)
			mu.Lock()
			if cur > peak.Load() {
				peak.Store(cur)
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			active.Add(-1)
			return in, nil
		})

		assert.LessOrEqual(t, peak.Load(), int64(2))
	})

	t.Run("Should process every item exactly once", func(t *testing.T) {
		var mu sync.Mutex
		seen := map[string]int{}
		items := []string{"a", "b", "c", "d", "e"}

		results := Run(t.Context(), items, 3, func(_ context.Context, in string) (string, error) {
			mu.Lock()
			seen[in]++
			mu.Unlock()
			return in, nil
		})

		require.Len(t, results, 5)
		for _, in := range items {
			assert.Equal(t, 1, seen[in], "item %s", in)
		}
	})

	t.Run("Should handle an empty input list", func(t *testing.T) {
		results := Run(t.Context(), nil, 4, func(_ context.Context, in string) (string, error) {
			return in, nil
		})
		assert.Empty(t, results)
	})

	t.Run("Should treat non-positive concurrency as one worker", func(t *testing.T) {
		results := Run(t.Context(), []string{"a", "b"}, 0, func(_ context.Context, in string) (string, error) {
			return in, nil
		})
		require.Len(t, results, 2)
		assert.Equal(t, "a", results[0].Value)
	})
}
