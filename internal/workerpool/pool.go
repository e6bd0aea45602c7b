package workerpool

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/tishbian-meshach/scrcpy-control-panel/internal/logging"
)

var log = logging.L("workerpool")

// Task is a unit of background work. Its outcome is never reported back to
// the submitter; tasks log their own failures.
type Task func()

// Pool runs fire-and-forget housekeeping (stale wireless disconnects and
// similar) on a small bounded set of goroutines.
type Pool struct {
	queue     chan namedTask
	wg        sync.WaitGroup
	accepting atomic.Bool
	closeOnce sync.Once
	completed atomic.Int64
	rejected  atomic.Int64
}

type namedTask struct {
	name string
	run  Task
}

// New creates a pool with workers goroutines and a queue of queueSize.
func New(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	p := &Pool{queue: make(chan namedTask, queueSize)}
	p.accepting.Store(true)

	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Submit enqueues a task. It returns false when the pool is shut down or
// the queue is full; the task is then dropped.
func (p *Pool) Submit(name string, task Task) bool {
	if !p.accepting.Load() {
		p.rejected.Add(1)
		return false
	}

	// wg.Add before the send so Drain cannot miss a task in flight.
	p.wg.Add(1)
	select {
	case p.queue <- namedTask{name: name, run: task}:
		return true
	default:
		p.wg.Done()
		p.rejected.Add(1)
		log.Warn("background queue full, task dropped", "task", name)
		return false
	}
}

// Drain waits for queued and running tasks, bounded by ctx. It does not
// stop new submissions.
func (p *Pool) Drain(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		log.Warn("background drain timed out")
		return false
	}
}

// Shutdown stops accepting tasks, drains, and releases the workers.
func (p *Pool) Shutdown(ctx context.Context) {
	p.accepting.Store(false)
	p.Drain(ctx)
	p.closeOnce.Do(func() {
		close(p.queue)
	})
}

// Completed returns how many tasks have finished (including panicked ones).
func (p *Pool) Completed() int64 { return p.completed.Load() }

// Rejected returns how many submissions were dropped.
func (p *Pool) Rejected() int64 { return p.rejected.Load() }

func (p *Pool) worker() {
	for t := range p.queue {
		p.run(t)
	}
}

func (p *Pool) run(t namedTask) {
	defer p.wg.Done()
	defer p.completed.Add(1)
	defer func() {
		if r := recover(); r != nil {
			log.Error("background task panicked", "task", t.name, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	t.run()
}
