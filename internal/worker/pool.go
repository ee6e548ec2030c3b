// Package worker runs fire-and-forget callbacks off the hook and poll
// goroutines with a bound on how many may run at once.
package worker

import (
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	defaultMaxConcurrent = 4
	defaultQueueSize     = 256
)

type task struct {
	name string
	fn   func()
}

// Pool executes submitted tasks with at most maxConcurrent running at a
// time. Tasks beyond that wait in a bounded queue. Submit never blocks; a
// task is only dropped when the queue itself is full.
type Pool struct {
	sem    *semaphore.Weighted
	queue  chan task
	wg     sync.WaitGroup
	logger *zap.Logger
}

// Option configures a Pool.
type Option func(*Pool)

// WithQueueSize sets how many tasks may wait for a free worker.
func WithQueueSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.queue = make(chan task, n)
		}
	}
}

// NewPool creates a pool. maxConcurrent <= 0 falls back to the default.
func NewPool(maxConcurrent int, logger *zap.Logger, opts ...Option) *Pool {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{
		sem:    semaphore.NewWeighted(int64(maxConcurrent)),
		queue:  make(chan task, defaultQueueSize),
		logger: logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit queues fn and starts a worker if a slot is free. It returns false
// only when the queue is full and the task was dropped.
func (p *Pool) Submit(name string, fn func()) bool {
	p.wg.Add(1)
	select {
	case p.queue <- task{name: name, fn: fn}:
	default:
		p.wg.Done()
		p.logger.Warn("Worker queue full, dropping task",
			zap.String("task", name),
			zap.Int("queue_size", cap(p.queue)))
		return false
	}

	if p.sem.TryAcquire(1) {
		go p.work()
	}
	return true
}

// Wait blocks until every task submitted so far, queued or running, has
// finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// work drains the queue while holding one slot.
func (p *Pool) work() {
	for {
		select {
		case t := <-p.queue:
			if err := p.run(t.fn); err != nil {
				p.logger.Error("Task failed", zap.String("task", t.name), zap.Error(err))
			}
			p.wg.Done()
			continue
		default:
		}

		p.sem.Release(1)
		// A task queued after the empty check but before the release found
		// no free slot; pick it up here.
		if len(p.queue) == 0 || !p.sem.TryAcquire(1) {
			return
		}
	}
}

func (p *Pool) run(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Debug("Recovered task panic", zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	fn()
	return nil
}
