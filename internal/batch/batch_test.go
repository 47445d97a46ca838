package batch

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestForEachIsolatesFailures(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6}
	var seen atomic.Int64

	res := ForEach(context.Background(), items, Options{Name: "test", Workers: 3}, strconv.Itoa,
		func(_ context.Context, n int) error {
			seen.Add(1)
			if n%2 == 0 {
				return errors.New("even")
			}
			return nil
		})

	assert.Equal(t, int64(6), seen.Load())
	assert.Equal(t, 6, res.Processed)
	assert.Equal(t, 3, res.Failed)
}

func TestForEachBoundsConcurrency(t *testing.T) {
	var running, peak atomic.Int64
	items := make([]int, 20)

	ForEach(context.Background(), items, Options{Name: "test", Workers: 4}, strconv.Itoa,
		func(_ context.Context, _ int) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return nil
		})

	assert.LessOrEqual(t, peak.Load(), int64(4))
	assert.Positive(t, peak.Load())
}

func TestForEachItemTimeout(t *testing.T) {
	res := ForEach(context.Background(), []string{"slow", "fast"},
		Options{Name: "test", Workers: 2, ItemTimeout: 20 * time.Millisecond},
		func(s string) string { return s },
		func(ctx context.Context, s string) error {
			if s == "fast" {
				return nil
			}
			<-ctx.Done()
			return ctx.Err()
		})

	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Failed)
}

func TestForEachStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := ForEach(ctx, []int{1, 2, 3}, Options{Name: "test"}, strconv.Itoa,
		func(context.Context, int) error { return nil })

	assert.Equal(t, 0, res.Processed)
}
