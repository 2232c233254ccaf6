package workerspool

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolBounded(t *testing.T) {
	const limit = 3
	const tasks = 20
	pool := New(limit)
	assert.Equal(t, limit, pool.Limit())

	var running, peak, total atomic.Int32
	for range tasks {
		pool.Go(func() {
			now := running.Add(1)
			for {
				old := peak.Load()
				if now <= old || peak.CompareAndSwap(old, now) {
					break
				}
			}
			running.Add(-1)
			total.Add(1)
		})
	}
	pool.Wait()
	assert.Equal(t, int32(tasks), total.Load())
	assert.LessOrEqual(t, peak.Load(), int32(limit))
}

func TestPoolSequential(t *testing.T) {
	pool := New(0)
	var order []int
	for ii := range 5 {
		pool.Go(func() { order = append(order, ii) })
	}
	pool.Wait()
	// Inline execution needs no synchronization and preserves submission order.
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestPoolUnlimited(t *testing.T) {
	pool := New(-1)
	var total atomic.Int32
	for range 50 {
		pool.Go(func() { total.Add(1) })
	}
	pool.Wait()
	assert.Equal(t, int32(50), total.Load())
}
