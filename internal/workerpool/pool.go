package workerpool

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Pool is a fixed-size pool of worker goroutines executing submitted
// closures in FIFO order. The queue is unbounded; Schedule never blocks.
type Pool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	threads int
	closed  bool

	wg        sync.WaitGroup
	submitted atomic.Int64
}

// New spawns a pool with n worker goroutines. n is clamped to at least 1.
func New(n int) *Pool {
	if n < 1 {
		n = 1
	}
	logrus.WithField("threads", n).Debug("spawning worker pool")
	p := &Pool{threads: n}
	p.cond = sync.NewCond(&p.mu)
	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.work()
	}
	return p
}

// Schedule enqueues f for execution by one of the pool's workers.
// Submissions after Close are dropped.
func (p *Pool) Schedule(f func()) {
	p.submitted.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.queue = append(p.queue, f)
	p.cond.Signal()
}

// NumThreads returns the fixed worker count.
func (p *Pool) NumThreads() int {
	return p.threads
}

// Submitted returns the total number of Schedule calls over the pool's
// lifetime. Used by tests to verify that fast paths skip the pool.
func (p *Pool) Submitted() int64 {
	return p.submitted.Load()
}

// Close runs all queued tasks to completion and stops the workers.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) work() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		f := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()
		f()
	}
}

var (
	defaultPool     *Pool
	defaultPoolOnce sync.Once
)

// Init sets up the process-wide pool. Only the first call has any effect;
// every engine created afterwards shares the same pool. With n <= 0 the
// size defaults to twice the core count, capped at 32.
func Init(n int) *Pool {
	defaultPoolOnce.Do(func() {
		if n <= 0 {
			n = 2 * runtime.GOMAXPROCS(0)
			if n > 32 {
				n = 32
			}
		}
		defaultPool = New(n)
	})
	return defaultPool
}

// Default returns the process-wide pool, initializing it with default
// sizing if Init was never called.
func Default() *Pool {
	return Init(0)
}
