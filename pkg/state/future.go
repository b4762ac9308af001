package state

import (
	"context"
	"sync"
)

// Pending is a value that may not be available yet.
type Pending[T any] interface {
	Await(ctx context.Context) (T, error)
}

// Future is a Pending completed exactly once by Resolve or Reject.
type Future[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

// NewFuture returns an unresolved future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns a future already holding value.
func Resolved[T any](value T) *Future[T] {
	f := NewFuture[T]()
	f.Resolve(value)
	return f
}

// Rejected returns a future already failed with err.
func Rejected[T any](err error) *Future[T] {
	f := NewFuture[T]()
	f.Reject(err)
	return f
}

// Go runs fn on a new goroutine and returns a future for its result.
func Go[T any](fn func() (T, error)) *Future[T] {
	f := NewFuture[T]()
	go func() {
		value, err := fn()
		f.complete(value, err)
	}()
	return f
}

// Resolve completes the future with value. Later calls are ignored.
func (f *Future[T]) Resolve(value T) {
	f.complete(value, nil)
}

// Reject completes the future with err. Later calls are ignored.
func (f *Future[T]) Reject(err error) {
	var zero T
	f.complete(zero, err)
}

func (f *Future[T]) complete(value T, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}

// Await blocks until the future completes or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done is closed once the future completes.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}
