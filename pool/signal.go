package pool

import (
	"context"
	"sync"
)

// signal is a one-shot wakeup: created in the not-released state, moved to
// released by exactly one producer, observed by exactly one consumer. It
// backs waiters in the acquisition queue — closing a channel is the
// idiomatic Go stand-in for the single-release semaphore described by the
// pool's concurrency contract.
type signal struct {
	ch   chan struct{}
	once sync.Once
}

func newSignal() *signal {
	return &signal{ch: make(chan struct{})}
}

// release wakes the waiter. Safe to call at most once in spirit; guarded by
// sync.Once so a defensive double-release never panics.
func (s *signal) release() {
	s.once.Do(func() { close(s.ch) })
}

// wait blocks until release is called or ctx is done, whichever comes first.
// A ctx that is already done when wait is called is reported even if
// release has also happened; fired tells the caller about that case.
func (s *signal) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-s.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fired reports whether release has already happened. Used on the
// ctx.Done() path of wait: select chooses pseudo-randomly among ready
// cases, so a waiter can observe ctx.Done() even though it was
// concurrently released — fired lets the caller detect that and forward
// the wakeup instead of swallowing it.
func (s *signal) fired() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}
