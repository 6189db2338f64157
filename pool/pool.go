// Package pool implements the generic, bounded, concurrent resource pool
// at the core of this database client: acquisition, release, validation,
// health-check hand-off, reuse accounting, idle-age expiry, and a
// priority-ordered waiter queue, all behind a small mutex-protected state
// machine.
//
// Everything that creates or destroys the pooled resource itself — a
// database driver, a socket, anything expensive — is supplied by the
// caller as a Factory/Destructor pair. The pool only ever sees an opaque
// type parameter R.
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/chizy7/ocaml-caqti/caqtierr"
)

// Pool mediates between callers of Use and a bounded population of
// resources of type R. See the package doc for the shape of the contract.
type Pool[R any] struct {
	cfg      resolvedConfig
	name     string
	factory  Factory[R]
	destroy  Destructor[R]
	check    HealthCheck[R]
	validate Validator[R]
	alarm    Alarm
	env      any

	scope *scope
	now   func() time.Time

	mu          sync.Mutex
	curSize     int
	idle        idleQueue[R]
	waiters     waiterQueue
	alarmHandle Handle
	attempts    uint64
}

// New constructs a Pool. It validates cfg and returns caqtierr.ErrInvalidConfig
// (wrapped) if MaxSize, MaxIdleSize, or MaxUseCount are out of range.
func New[R any](factory Factory[R], destroy Destructor[R], cfg Config[R]) (*Pool[R], error) {
	resolved, err := resolveConfig(cfg)
	if err != nil {
		return nil, err
	}

	check := cfg.Check
	if check == nil {
		check = func(_ R, done func(bool)) { done(true) }
	}
	validate := cfg.Validate
	if validate == nil {
		validate = func(R) bool { return true }
	}
	alarm := cfg.Alarm
	if alarm == nil {
		alarm = NewTimeAlarm()
	}

	sc, err := newScope(context.Background(), cfg.Concurrency)
	if err != nil {
		return nil, caqtierr.WrapInternal(err)
	}

	p := &Pool[R]{
		cfg:      resolved,
		name:     cfg.Name,
		factory:  factory,
		destroy:  destroy,
		check:    check,
		validate: validate,
		alarm:    alarm,
		env:      cfg.Env,
		scope:    sc,
		now:      time.Now,
	}

	log.WithField("pool", p.name).
		WithField("max_size", resolved.maxSize).
		WithField("max_idle_size", resolved.maxIdleSize).
		Debug("pool created")

	return p, nil
}

// Size returns the pool's current accounting size (idle + in-use +
// being-created; a slot reserved for a pending factory call is already
// counted). It is advisory: the value is read under the mutex but can be
// stale by the time the caller sees it under concurrent acquire/release.
func (p *Pool[R]) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.curSize
}

// Stats is a point-in-time snapshot of pool occupancy, exposed for the
// metrics package to scrape.
type Stats struct {
	Size      int
	Idle      int
	InUse     int
	Waiting   int
	MaxSize   int
	MaxIdle   int
}

// Stats returns a snapshot of the pool's current state.
func (p *Pool[R]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	idle := p.idle.len()
	return Stats{
		Size:    p.curSize,
		Idle:    idle,
		InUse:   p.curSize - idle,
		Waiting: p.waiters.Len(),
		MaxSize: p.cfg.maxSize,
		MaxIdle: p.cfg.maxIdleSize,
	}
}

// Use acquires an entry at the given priority, runs f on its resource
// exactly once, and releases the entry on every exit path of f —
// including a panic, via the deferred release below, and including
// context cancellation surfaced through ctx inside f itself. If
// acquisition fails, f is never called and the factory's error is
// returned.
func Use[R any, T any](ctx context.Context, p *Pool[R], priority float64, f func(R) (T, error)) (T, error) {
	var zero T

	e, err := p.acquire(ctx, priority)
	if err != nil {
		return zero, err
	}
	defer p.release(e)

	return f(e.resource)
}

// Checkout is a resource on loan from the pool, returned by the lower-level
// Acquire. Most callers should prefer Use; Checkout exists for callers who
// need the resource to outlive a single closure call (e.g. streaming a
// result set).
type Checkout[R any] struct {
	pool  *Pool[R]
	entry *entry[R]
}

// Resource returns the checked-out resource.
func (c *Checkout[R]) Resource() R { return c.entry.resource }

// Acquire checks out an entry at the given priority without running any
// work on it. Every successful Acquire must be paired with exactly one
// call to Release.
func (p *Pool[R]) Acquire(ctx context.Context, priority float64) (*Checkout[R], error) {
	e, err := p.acquire(ctx, priority)
	if err != nil {
		return nil, err
	}
	return &Checkout[R]{pool: p, entry: e}, nil
}

// Release returns a Checkout's resource to the pool, running the same
// accounting, health-check, and repool-or-destroy logic as Use's implicit
// release.
func (p *Pool[R]) Release(c *Checkout[R]) {
	if c == nil {
		return
	}
	c.pool.release(c.entry)
}

// acquire implements the algorithm of spec §4.A: try the idle queue,
// else grow the pool if under max_size, else queue behind existing
// waiters. A woken waiter restarts from the top — spurious wakes are
// tolerated by design.
func (p *Pool[R]) acquire(ctx context.Context, priority float64) (*entry[R], error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p.mu.Lock()
		if e, ok := p.idle.popFront(); ok {
			p.mu.Unlock()

			if p.validate(e.resource) {
				return e, nil
			}

			log.WithField("pool", p.name).WithField("entry", e.id).Warn("validator rejected idle entry, recreating")
			p.destroy(e.resource)
			return p.realloc(ctx)
		}

		if p.curSize < p.cfg.maxSize {
			p.curSize++
			p.mu.Unlock()

			return p.realloc(ctx)
		}

		w := p.waiters.push(priority)
		p.mu.Unlock()

		if err := w.sig.wait(ctx); err != nil {
			p.mu.Lock()
			p.waiters.remove(w)
			// wait's select can land on ctx.Done() even though release
			// already fired w.sig concurrently; if that happened, the
			// slot/entry handed to this waiter must be forwarded to the
			// next one instead of being silently dropped.
			if w.sig.fired() {
				p.wakeOneLocked()
			}
			p.mu.Unlock()
			return nil, err
		}
		// Woken: loop back and re-check state from the top.
	}
}

// realloc calls the factory with the mutex released. On failure it
// returns the reserved slot and wakes one waiter so the slot isn't
// silently lost.
func (p *Pool[R]) realloc(ctx context.Context) (*entry[R], error) {
	p.mu.Lock()
	p.attempts++
	attempt := p.attempts
	p.mu.Unlock()

	r, err := p.factory(ctx, p.env)
	if err != nil {
		p.mu.Lock()
		p.curSize--
		p.wakeOneLocked()
		p.mu.Unlock()

		log.WithField("pool", p.name).WithError(err).Warn("resource factory failed")
		return nil, caqtierr.NewCreateError(p.name, attempt, err)
	}

	return newEntry(r, p.now()), nil
}

// release implements spec §4.A's release algorithm: account the use,
// destroy the entry if it has exceeded max_idle_size or max_use_count,
// otherwise hand it to the health check and repool it on success.
func (p *Pool[R]) release(e *entry[R]) {
	p.mu.Lock()
	e.usedCount++

	overIdleCap := p.curSize > p.cfg.maxIdleSize
	overUseCount := p.cfg.maxUseCount > 0 && e.usedCount >= p.cfg.maxUseCount

	if overIdleCap || overUseCount {
		p.curSize--
		p.mu.Unlock()

		p.destroy(e.resource)

		p.mu.Lock()
		p.wakeOneLocked()
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.check(e.resource, func(ok bool) {
		if ok {
			p.mu.Lock()
			e.usedLatest = p.now()
			p.idle.pushBack(e)
			expired := p.disposeExpiringLocked()
			p.wakeOneLocked()
			p.mu.Unlock()

			for _, dead := range expired {
				p.scope.Go(func() { p.destroy(dead) })
			}
			return
		}

		p.mu.Lock()
		p.curSize--
		p.wakeOneLocked()
		p.mu.Unlock()

		log.WithField("pool", p.name).WithField("entry", e.id).Warn("health check failed, dropping entry")
		p.destroy(e.resource)
	})
}

// wakeOneLocked wakes the single highest-priority waiter, if any. Must be
// called with p.mu held.
func (p *Pool[R]) wakeOneLocked() {
	if w := p.waiters.popHighest(); w != nil {
		w.sig.release()
	}
}

// Drain requests graceful shutdown: it destroys idle entries immediately,
// waits for in-flight checkouts to be released and destroys those too,
// and returns once the pool's accounted size reaches zero. Callers must
// not call Use/Acquire concurrently with a Drain that is converging.
// Repeated calls after convergence are no-ops.
func (p *Pool[R]) Drain(ctx context.Context) error {
	for {
		p.mu.Lock()
		if p.curSize == 0 {
			if p.alarmHandle != nil {
				p.alarm.Unschedule(p.alarmHandle)
				p.alarmHandle = nil
			}
			p.mu.Unlock()
			return nil
		}

		if e, ok := p.idle.popFront(); ok {
			p.curSize--
			p.mu.Unlock()
			p.destroy(e.resource)
			continue
		}

		w := p.waiters.push(0.0)
		p.mu.Unlock()

		if err := w.sig.wait(ctx); err != nil {
			p.mu.Lock()
			p.waiters.remove(w)
			if w.sig.fired() {
				p.wakeOneLocked()
			}
			p.mu.Unlock()
			return err
		}
	}
}

// Close drains the pool and then releases its background worker scope.
// It is the convenience entry point for a process shutting down for
// good; Drain alone leaves the scope alive so a pool can, in principle,
// be drained and then reused.
func (p *Pool[R]) Close(ctx context.Context) error {
	if err := p.Drain(ctx); err != nil {
		return err
	}
	p.scope.Close()
	return nil
}

// disposeExpiringLocked reconciles the idle-age alarm with the head of
// the idle queue, per spec §4.A. Must be called with p.mu held. It
// returns the resources that aged out so the caller can free them after
// releasing the mutex — freeing must never happen while the lock is held.
func (p *Pool[R]) disposeExpiringLocked() []R {
	if p.cfg.maxIdleAge <= 0 {
		if p.alarmHandle != nil {
			p.alarm.Unschedule(p.alarmHandle)
			p.alarmHandle = nil
		}
		return nil
	}

	var expired []R
	for {
		head, ok := p.idle.peekFront()
		if !ok {
			return expired
		}

		expiry, overflowed := addDuration(head.usedLatest, p.cfg.maxIdleAge)
		if overflowed {
			log.WithField("pool", p.name).WithField("entry", head.id).
				Warn("idle-age expiry overflowed the monotonic clock, leaving entry unexpired")
			return expired
		}

		if !expiry.After(p.now()) {
			p.idle.popFront()
			p.curSize--
			expired = append(expired, head.resource)
			continue
		}

		if p.alarmHandle == nil {
			handle, err := p.alarm.Schedule(p.scope.Context(), expiry, p.onAlarm)
			if err != nil {
				log.WithField("pool", p.name).WithError(err).Warn("failed to schedule idle-age alarm")
				return expired
			}
			p.alarmHandle = handle
		}
		return expired
	}
}

func (p *Pool[R]) onAlarm() {
	p.mu.Lock()
	p.alarmHandle = nil
	expired := p.disposeExpiringLocked()
	p.mu.Unlock()

	for _, dead := range expired {
		p.scope.Go(func() { p.destroy(dead) })
	}
}

// addDuration adds d to t, reporting overflow the way spec §4.A requires:
// a benign degradation rather than a panic or wraparound.
func addDuration(t time.Time, d time.Duration) (time.Time, bool) {
	result := t.Add(d)
	if d > 0 && result.Before(t) {
		return t, true
	}
	return result, false
}
