package workerpool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubmitAndDrain(t *testing.T) {
	p := New(2, 10)
	var count atomic.Int32

	for i := 0; i < 5; i++ {
		if !p.Submit("count", func() { count.Add(1) }) {
			t.Fatalf("Submit %d failed", i)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if !p.Drain(ctx) {
		t.Fatal("Drain timed out")
	}
	if got := count.Load(); got != 5 {
		t.Fatalf("count = %d, want 5", got)
	}
	if got := p.Completed(); got != 5 {
		t.Fatalf("Completed = %d, want 5", got)
	}
	p.Shutdown(ctx)
}

func TestSubmitAfterShutdownReturnsFalse(t *testing.T) {
	p := New(1, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p.Shutdown(ctx)

	if p.Submit("late", func() {}) {
		t.Fatal("Submit after Shutdown should return false")
	}
	if p.Rejected() != 1 {
		t.Fatalf("Rejected = %d, want 1", p.Rejected())
	}
}

func TestQueueFullReturnsFalse(t *testing.T) {
	p := New(1, 1)
	blocker := make(chan struct{})
	started := make(chan struct{})
	p.Submit("block", func() {
		close(started)
		<-blocker
	})
	<-started

	p.Submit("fill", func() {})
	if p.Submit("overflow", func() {}) {
		t.Fatal("Submit should return false when queue is full")
	}

	close(blocker)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p.Shutdown(ctx)
}

func TestPanickingTaskDoesNotKillWorker(t *testing.T) {
	p := New(1, 4)
	var ran atomic.Bool

	p.Submit("boom", func() { panic("boom") })
	p.Submit("after", func() { ran.Store(true) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p.Shutdown(ctx)

	if !ran.Load() {
		t.Fatal("task after panic should still run")
	}
}

func TestDrainRespectsDeadline(t *testing.T) {
	p := New(1, 1)
	blocker := make(chan struct{})
	defer close(blocker)
	p.Submit("block", func() { <-blocker })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if p.Drain(ctx) {
		t.Fatal("Drain should report timeout while a task is blocked")
	}
}
