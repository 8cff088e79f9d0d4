// Package promise provides a bounded worker pool and a generic future type.
// Submitted work always runs to completion; abandoning a future does not
// cancel the work behind it.
package promise

import (
	"context"
	"sync"

	"github.com/metastack/metastore/internal/common/apperrors"
)

// ErrPoolClosed is returned by futures submitted after Shutdown.
var ErrPoolClosed = apperrors.New("worker pool is shut down")

// Pool executes submitted functions on a fixed set of worker goroutines.
type Pool struct {
	tasks chan func()
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewPool creates a pool with the given number of workers and queue capacity.
func NewPool(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	p := &Pool{
		tasks: make(chan func(), queueSize),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				task()
			}
		}()
	}
	return p
}

// Shutdown stops accepting work and blocks until queued tasks finish.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) submit(task func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.tasks <- task
	return true
}

// Future holds the eventual result of a submitted function. Wait may be
// called any number of times.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Submit enqueues fn on the pool and returns a future for its result. If the
// pool has been shut down the future fails with ErrPoolClosed.
func Submit[T any](p *Pool, fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	ok := p.submit(func() {
		f.val, f.err = fn()
		close(f.done)
	})
	if !ok {
		f.err = ErrPoolClosed
		close(f.done)
	}
	return f
}

// Resolved returns a future already completed with the given result. Used for
// failures detected before any work is enqueued.
func Resolved[T any](val T, err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), val: val, err: err}
	close(f.done)
	return f
}

// Wait blocks until the result is available or the context is done. A context
// cancellation abandons the wait only; the submitted function still runs to
// completion.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
