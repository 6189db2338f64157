package pool

import (
	"context"
	"time"
)

// Handle identifies a scheduled alarm callback so it can later be
// unscheduled. Its concrete type is private to the Alarm implementation
// that produced it.
type Handle any

// Alarm schedules a single pending callback at a wall-clock instant. The
// pool only ever has at most one alarm in flight; a conforming
// implementation needs no internal queueing.
type Alarm interface {
	// Schedule arranges for cb to run once at or after at. The callback
	// runs off the caller's goroutine; if ctx is done before it fires,
	// the alarm is cancelled without calling cb.
	Schedule(ctx context.Context, at time.Time, cb func()) (Handle, error)

	// Unschedule cancels a previously scheduled alarm. It is idempotent
	// and, once it returns, guarantees no further call to cb — unless cb
	// had already started, in which case it is not interrupted.
	Unschedule(h Handle)
}

// TimeAlarm is the default Alarm, backed by time.AfterFunc. It is the
// right choice for any runtime with real timers.
type TimeAlarm struct{}

// NewTimeAlarm returns the default timer-backed Alarm.
func NewTimeAlarm() TimeAlarm { return TimeAlarm{} }

type timeHandle struct {
	timer *time.Timer
}

func (TimeAlarm) Schedule(ctx context.Context, at time.Time, cb func()) (Handle, error) {
	d := time.Until(at)
	if d < 0 {
		d = 0
	}
	t := time.AfterFunc(d, func() {
		if ctx.Err() != nil {
			return
		}
		cb()
	})
	return &timeHandle{timer: t}, nil
}

func (TimeAlarm) Unschedule(h Handle) {
	th, ok := h.(*timeHandle)
	if !ok || th == nil {
		return
	}
	th.timer.Stop()
}

// NoopAlarm is the degraded fallback for runtimes without timers. Idle-age
// expiry becomes opportunistic: entries only get reaped when a later
// release happens to re-run the expiry check.
type NoopAlarm struct{}

func (NoopAlarm) Schedule(ctx context.Context, at time.Time, cb func()) (Handle, error) {
	return nil, nil
}

func (NoopAlarm) Unschedule(h Handle) {}
