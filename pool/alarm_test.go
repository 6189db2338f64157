package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestTimeAlarmFires(t *testing.T) {
	a := NewTimeAlarm()
	ctx := context.Background()

	fired := make(chan struct{})
	_, err := a.Schedule(ctx, time.Now().Add(10*time.Millisecond), func() { close(fired) })
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("alarm did not fire")
	}
}

func TestTimeAlarmUnscheduleStopsCallback(t *testing.T) {
	a := NewTimeAlarm()
	ctx := context.Background()

	var fired atomic.Bool
	h, err := a.Schedule(ctx, time.Now().Add(50*time.Millisecond), func() { fired.Store(true) })
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	a.Unschedule(h)

	time.Sleep(100 * time.Millisecond)
	if fired.Load() {
		t.Fatal("callback ran after Unschedule")
	}
}

func TestTimeAlarmSkipsCallbackAfterContextCancel(t *testing.T) {
	a := NewTimeAlarm()
	ctx, cancel := context.WithCancel(context.Background())

	var fired atomic.Bool
	_, err := a.Schedule(ctx, time.Now().Add(30*time.Millisecond), func() { fired.Store(true) })
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	cancel()
	time.Sleep(80 * time.Millisecond)
	if fired.Load() {
		t.Fatal("callback ran despite cancelled context")
	}
}

func TestTimeAlarmPastDeadlineFiresImmediately(t *testing.T) {
	a := NewTimeAlarm()
	ctx := context.Background()

	fired := make(chan struct{})
	_, err := a.Schedule(ctx, time.Now().Add(-time.Hour), func() { close(fired) })
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("alarm scheduled in the past never fired")
	}
}

func TestNoopAlarmNeverFires(t *testing.T) {
	a := NoopAlarm{}
	ctx := context.Background()

	var fired atomic.Bool
	h, err := a.Schedule(ctx, time.Now(), func() { fired.Store(true) })
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if h != nil {
		t.Fatalf("expected a nil handle from NoopAlarm, got %v", h)
	}

	a.Unschedule(h) // must not panic on a nil handle

	time.Sleep(20 * time.Millisecond)
	if fired.Load() {
		t.Fatal("NoopAlarm must never invoke its callback")
	}
}
