package pool

import (
	"context"

	"github.com/go-i2p/logger"
	"github.com/panjf2000/ants/v2"
)

var log = logger.GetGoI2PLogger().WithField("component", "Caqti_platform.Pool")

// scope is the pool's lifecycle handle: it bounds the lifetime of the
// background tasks the pool spawns (free() calls that must not block a
// release, and the idle-age alarm). Dropping the scope cancels its
// context, which is how the alarm adapter learns to stop firing.
//
// Background work runs on a small ants worker pool rather than one
// goroutine per task, so a pool under churn doesn't turn every release
// into an unbounded goroutine spawn.
type scope struct {
	ctx     context.Context
	cancel  context.CancelFunc
	workers *ants.Pool
}

func newScope(parent context.Context, concurrency int) (*scope, error) {
	if concurrency <= 0 {
		concurrency = 4
	}
	ctx, cancel := context.WithCancel(parent)

	workers, err := ants.NewPool(concurrency,
		ants.WithNonblocking(false),
		ants.WithPanicHandler(func(v any) {
			log.WithField("panic", v).Warn("pool background task panicked")
		}),
	)
	if err != nil {
		cancel()
		return nil, err
	}

	return &scope{ctx: ctx, cancel: cancel, workers: workers}, nil
}

// Context returns the scope's lifetime context, used to attach the alarm.
func (s *scope) Context() context.Context {
	return s.ctx
}

// Go runs fn on the scope's worker pool. If the pool can't accept the
// task (shutting down), fn runs inline so a free() is never dropped.
func (s *scope) Go(fn func()) {
	if err := s.workers.Submit(fn); err != nil {
		fn()
	}
}

// Close cancels the scope's context (cancelling any pending alarm) and
// releases its worker pool.
func (s *scope) Close() {
	s.cancel()
	s.workers.Release()
}
