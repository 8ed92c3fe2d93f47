package worker

import (
	"sync/atomic"
	"testing"
	"time"

	xerrors "github.com/wator-sim/parwator/internal/errors"
)

func TestRunInlineDrainsQueueInOrder(t *testing.T) {
	w := New()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		w.Push(func() { order = append(order, i) })
	}
	w.RunInline()

	if len(order) != 5 {
		t.Fatalf("len(order) = %d, want 5", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("order[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestPushAndWaitIdle(t *testing.T) {
	w := New()
	if err := w.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Close()

	var count int32
	for i := 0; i < 100; i++ {
		w.Push(func() { atomic.AddInt32(&count, 1) })
	}
	w.WaitIdle()

	if got := atomic.LoadInt32(&count); got != 100 {
		t.Fatalf("count = %d, want 100", got)
	}
}

func TestTaskPanicIsSwallowed(t *testing.T) {
	w := New()
	var panicked int32
	w.OnPanic = func(err *xerrors.StandardError) { atomic.AddInt32(&panicked, 1) }

	w.Push(func() { panic("boom") })
	var ran int32
	w.Push(func() { atomic.AddInt32(&ran, 1) })
	w.RunInline()

	if atomic.LoadInt32(&ran) != 1 {
		t.Fatal("tasks after a panicking task must still run")
	}
}

func TestCloseWithoutStartIsNoop(t *testing.T) {
	w := New()
	if err := w.Close(); err != nil {
		t.Fatalf("Close on a never-started worker: %v", err)
	}
}

func TestClearStatsResetsDurations(t *testing.T) {
	w := New()
	w.Push(func() { time.Sleep(time.Millisecond) })
	w.RunInline()
	if w.RunDuration() == 0 {
		t.Skip("timer resolution too coarse on this platform")
	}
	w.ClearStats()
	if w.RunDuration() != 0 {
		t.Fatalf("RunDuration() after ClearStats = %v, want 0", w.RunDuration())
	}
}
