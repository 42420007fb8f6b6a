// Package workerpool implements the bounded FIFO thread pool every
// orchestrated workflow submits its per-file/per-tablespace work to
// (spec.md §4.3). It is the only parallelism point in pgbackup; everything
// else in the orchestrator runs single-threaded.
//
// Grounded on the original tool's struct workers/struct queue (workers.h):
// a fixed number of worker threads pop tasks off a FIFO queue and block
// when it's empty. Here that's a buffered channel plus a WaitGroup instead
// of pthread mutex/condvar, the idiomatic Go translation of the same
// contract.
package workerpool

import (
	"sync"

	"github.com/cuemby/pgbackup/pkg/log"
)

// Task is a unit of work submitted to the pool.
type Task func()

// Config holds worker pool configuration.
type Config struct {
	Size int // number of worker goroutines
}

// Pool is a bounded pool of goroutines draining a FIFO task queue.
type Pool struct {
	tasks  chan Task
	wg     sync.WaitGroup
	active sync.WaitGroup
	stopCh chan struct{}
	once   sync.Once
}

// New starts a Pool with cfg.Size worker goroutines. Size <= 0 is treated as 1.
func New(cfg Config) *Pool {
	size := cfg.Size
	if size <= 0 {
		size = 1
	}

	p := &Pool{
		tasks:  make(chan Task, 1024),
		stopCh: make(chan struct{}),
	}

	logger := log.WithComponent("workerpool")
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case task, ok := <-p.tasks:
					if !ok {
						return
					}
					func() {
						defer p.active.Done()
						defer func() {
							if r := recover(); r != nil {
								logger.Error().Interface("panic", r).Int("worker", id).Msg("task panicked")
							}
						}()
						task()
					}()
				case <-p.stopCh:
					return
				}
			}
		}(i)
	}

	return p
}

// Submit enqueues a task. It blocks if the internal queue is full.
func (p *Pool) Submit(t Task) {
	p.active.Add(1)
	p.tasks <- t
}

// WaitIdle blocks until every submitted task has completed. It does not
// prevent new submissions from racing with the wait; callers that need a
// clean quiescent point should stop submitting before calling WaitIdle.
func (p *Pool) WaitIdle() {
	p.active.Wait()
}

// Stop signals all workers to exit after their current task and waits for
// them to finish. Submit must not be called after Stop.
func (p *Pool) Stop() {
	p.once.Do(func() {
		close(p.stopCh)
	})
	p.wg.Wait()
}
