package workerpool_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/glintd/glint/internal/workerpool"
)

func TestPoolRunsAllTasks(t *testing.T) {
	pool := workerpool.New(4)
	require.Equal(t, 4, pool.NumThreads())

	var count atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		pool.Schedule(func() {
			defer wg.Done()
			count.Add(1)
		})
	}
	wg.Wait()
	require.EqualValues(t, 100, count.Load())
	require.EqualValues(t, 100, pool.Submitted())
	pool.Close()
}

func TestPoolSingleWorkerIsFIFO(t *testing.T) {
	pool := workerpool.New(1)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		pool.Schedule(func() {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	wg.Wait()
	for i, v := range order {
		require.Equal(t, i, v, "single-worker pool must run tasks in submission order")
	}
	pool.Close()
}

func TestPoolClampsSize(t *testing.T) {
	pool := workerpool.New(0)
	require.Equal(t, 1, pool.NumThreads())
	pool.Close()
}

func TestPoolCloseRunsQueuedTasks(t *testing.T) {
	pool := workerpool.New(2)
	var count atomic.Int64
	for i := 0; i < 50; i++ {
		pool.Schedule(func() {
			count.Add(1)
		})
	}
	pool.Close()
	require.EqualValues(t, 50, count.Load())
}
