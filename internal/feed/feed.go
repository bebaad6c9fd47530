package feed

import (
	"context"
	"errors"
	"sync"
)

// Producer runs a live query until ctx is done, handing every full result
// set to emit in order. emit returns false once the subscription is cancelled.
type Producer[T any] func(ctx context.Context, emit func(T) bool) error

// Subscription is a cancellable live feed of ordered snapshots.
type Subscription[T any] struct {
	ch     chan T
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Start runs producer in its own goroutine and returns the subscription.
func Start[T any](ctx context.Context, bufSize int, producer Producer[T]) *Subscription[T] {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription[T]{
		ch:     make(chan T, bufSize),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		defer close(s.ch)
		err := producer(ctx, func(v T) bool {
			if ctx.Err() != nil {
				return false
			}
			select {
			case s.ch <- v:
				return true
			case <-ctx.Done():
				return false
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
		}
	}()

	return s
}

// C returns the snapshot channel. It is closed when the producer returns.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Cancel stops the producer and blocks until it has returned. Snapshots
// still buffered are discarded. Safe to call more than once and on nil.
func (s *Subscription[T]) Cancel() {
	if s == nil {
		return
	}
	s.cancel()
	<-s.done
	for range s.ch {
	}
}

// Done is closed once the producer has returned.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Err returns the error that ended the producer, if any.
func (s *Subscription[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
