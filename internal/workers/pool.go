// Package workers provides a fixed-size pool of goroutines fed from a shared
// FIFO queue.
//
// The queue is a slice guarded by a mutex and a condition variable. Posting
// a task appends it and broadcasts; every idle worker wakes, re-checks the
// queue under the lock, pops at most one task and runs it outside the lock.
// The queue is unbounded and tasks have no deadline.
package workers

import (
	"context"
	"fmt"
	"sync"

	"github.com/conneroisu/unchained/internal/errors"
	"github.com/conneroisu/unchained/internal/logging"
)

// Task is a unit of work. A returned error is logged and the worker moves on.
type Task func() error

// Metrics receives pool activity. Implementations must be safe for
// concurrent use.
type Metrics interface {
	QueueDepth(n int)
	TaskExecuted()
	TaskFailed()
}

// ErrPoolClosed is returned by Post after Close.
var ErrPoolClosed = errors.NewInternalError(errors.ErrCodeInternalError, "worker pool is closed", nil)

// DefaultSize is the worker count used when none is configured.
const DefaultSize = 4

// Pool runs posted tasks on a fixed set of goroutines.
type Pool struct {
	// mu guards queue and closed
	mu   sync.Mutex
	cond *sync.Cond
	// queue holds pending tasks in post order
	queue  []Task
	closed bool
	// wg tracks live workers so Close can join them
	wg   sync.WaitGroup
	size int

	logger       logging.Logger
	errorHandler *errors.ErrorHandler
	metrics      Metrics
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger used for task failures.
func WithLogger(logger logging.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics reports queue depth and task outcomes to m.
func WithMetrics(m Metrics) Option {
	return func(p *Pool) {
		p.metrics = m
	}
}

// New starts a pool of size workers. A size below one starts a single
// worker.
func New(size int, opts ...Option) *Pool {
	if size < 1 {
		size = 1
	}

	p := &Pool{
		size:   size,
		logger: logging.Discard(),
	}
	p.cond = sync.NewCond(&p.mu)
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithComponent("workers")
	p.errorHandler = errors.NewErrorHandler(p.logger)

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker(i)
	}

	return p
}

// Post queues task and wakes the workers.
func (p *Pool) Post(task Task) error {
	if task == nil {
		return nil
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()

		return ErrPoolClosed
	}
	p.queue = append(p.queue, task)
	depth := len(p.queue)
	p.mu.Unlock()

	p.cond.Broadcast()
	p.reportDepth(depth)

	return nil
}

// Close stops accepting tasks, lets the workers drain the queue and waits
// for them to exit. It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.cond.Broadcast()
	p.wg.Wait()
}

// Len returns the number of queued tasks not yet picked up.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.queue)
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		task, depth, ok := p.next()
		if !ok {
			return
		}
		p.reportDepth(depth)
		p.run(id, task)
	}
}

// next blocks until a task is available or the pool is closed and drained.
func (p *Pool) next() (Task, int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.queue) == 0 {
		if p.closed {
			return nil, 0, false
		}
		p.cond.Wait()
	}

	task := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	if len(p.queue) == 0 {
		p.queue = nil
	}

	return task, len(p.queue), true
}

func (p *Pool) run(id int, task Task) {
	err := p.safeCall(task)
	if err == nil {
		if p.metrics != nil {
			p.metrics.TaskExecuted()
		}

		return
	}

	if p.metrics != nil {
		p.metrics.TaskFailed()
	}
	p.errorHandler.Handle(context.Background(), err, "worker", id)
	p.logger.Debug(context.Background(), "Continuing work", "worker", id)
}

func (p *Pool) safeCall(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewInternalError(errors.ErrCodeTaskPanicked,
				fmt.Sprintf("task panicked: %v", r), nil)
		}
	}()

	return task()
}

func (p *Pool) reportDepth(depth int) {
	if p.metrics != nil {
		p.metrics.QueueDepth(depth)
	}
}
