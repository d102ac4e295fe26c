package fhirmodel

import (
	"context"
	"sync"
)

// Future is the pending result of an asynchronous operation.
//
// Once Cancel has been called the future completes with context.Canceled
// and any value produced afterwards by the operation is discarded.
type Future[T any] struct {
	done   chan struct{}
	once   sync.Once
	cancel context.CancelFunc

	value T
	err   error
}

// Go runs fn in a new goroutine and returns its future. The context passed
// to fn is cancelled by Cancel or when ctx is done.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	ctx, cancel := context.WithCancel(ctx)
	f := &Future[T]{done: make(chan struct{}), cancel: cancel}
	go func() {
		defer cancel()
		v, err := fn(ctx)
		if ctx.Err() != nil {
			var zero T
			f.complete(zero, ctx.Err())
			return
		}
		f.complete(v, err)
	}()
	return f
}

// Completed returns a future that is already done.
func Completed[T any](v T, err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), cancel: func() {}}
	f.complete(v, err)
	return f
}

func (f *Future[T]) complete(v T, err error) {
	f.once.Do(func() {
		f.value, f.err = v, err
		close(f.done)
	})
}

// Done is closed when the future completes or is cancelled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Cancel aborts the operation. It is safe to call more than once and after
// completion, in which case it has no effect on the stored result.
func (f *Future[T]) Cancel() {
	var zero T
	f.complete(zero, context.Canceled)
	f.cancel()
}

// Wait blocks until the future completes or ctx is done. If ctx ends first
// the future is cancelled and ctx's error is returned.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		f.Cancel()
		var zero T
		return zero, ctx.Err()
	}
}
