package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"lofterscraper/pkg/logger"
)

// ErrClosed is returned by Submit after Close
var ErrClosed = errors.New("worker pool is shutting down")

// Pool runs submitted tasks on a fixed number of long-lived workers. A single
// Pool is shared by every fan-out pass of a crawl, so the worker count bounds
// all in-flight work.
type Pool struct {
	numWorkers int
	taskQueue  chan func()
	group      *errgroup.Group
	logger     logger.Logger

	startOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// New creates a pool with the given number of workers. Fewer than one worker
// is raised to one.
func New(numWorkers int, log logger.Logger) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &Pool{
		numWorkers: numWorkers,
		taskQueue:  make(chan func(), numWorkers*2), // Buffer size = 2x workers
		group:      new(errgroup.Group),
		logger:     log,
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		p.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
			"num_workers": p.numWorkers,
		})
		for i := range p.numWorkers {
			p.group.Go(func() error {
				p.worker(i)
				return nil
			})
		}
	})
}

// Close stops accepting tasks and waits for queued tasks to finish
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.taskQueue)
	p.mu.Unlock()

	p.Start()
	_ = p.group.Wait()
	p.logger.Debug("Worker pool stopped")
}

// Workers returns the configured worker count
func (p *Pool) Workers() int {
	return p.numWorkers
}

// Submit queues a task, blocking while the queue is full
func (p *Pool) Submit(ctx context.Context, task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	select {
	case p.taskQueue <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) worker(id int) {
	for task := range p.taskQueue {
		task()
	}
	p.logger.DebugWithFields("Worker stopping - task queue closed", map[string]interface{}{
		"worker_id": id,
	})
}

// Map applies fn to every item on the pool and returns once all of them have
// completed. Results arrive in completion order, one per item. A task that
// panics contributes the zero value of R; a task that could not be submitted
// is run on the caller's goroutine so that no item is dropped.
func Map[T, R any](ctx context.Context, p *Pool, items []T, fn func(context.Context, T) R) []R {
	p.Start()

	results := make(chan R, len(items))
	run := func(item T) {
		var out R
		defer func() {
			if r := recover(); r != nil {
				p.logger.ErrorWithFields("Task panicked", map[string]interface{}{
					"panic": fmt.Sprint(r),
				})
			}
			results <- out
		}()
		out = fn(ctx, item)
	}

	for _, item := range items {
		if err := p.Submit(ctx, func() { run(item) }); err != nil {
			run(item)
		}
	}

	gathered := make([]R, 0, len(items))
	for range items {
		gathered = append(gathered, <-results)
	}
	return gathered
}
