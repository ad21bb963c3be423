package uiloop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestJobsRunInOrderOnOneGoroutine(t *testing.T) {
	l := New(nil)
	defer l.Close()

	var (
		mu      sync.Mutex
		order   []int
		running atomic.Int32
		overlap atomic.Bool
	)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		i := i
		if err := l.Submit(func() {
			defer wg.Done()
			if running.Add(1) > 1 {
				overlap.Store(true)
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			running.Add(-1)
		}); err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()

	if overlap.Load() {
		t.Error("jobs overlapped")
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("order[%d] = %d", i, v)
		}
	}
}

func TestDoReturnsResult(t *testing.T) {
	l := New(nil)
	defer l.Close()
	want := errors.New("nope")
	if err := l.Do(context.Background(), func() error { return want }); err != want {
		t.Errorf("Do = %v", err)
	}
}

func TestJobMaySubmitFollowUp(t *testing.T) {
	l := New(nil)
	defer l.Close()
	done := make(chan struct{})
	_ = l.Submit(func() {
		_ = l.Submit(func() { close(done) })
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("follow-up job never ran")
	}
}

func TestPanicDoesNotKillLoop(t *testing.T) {
	l := New(nil)
	defer l.Close()
	_ = l.Submit(func() { panic("boom") })
	if err := l.Drain(context.Background()); err != nil {
		t.Fatalf("Drain after panic: %v", err)
	}
}

func TestCloseRunsQueuedThenRejects(t *testing.T) {
	l := New(nil)
	var ran atomic.Int32
	block := make(chan struct{})
	_ = l.Submit(func() { <-block })
	for i := 0; i < 5; i++ {
		_ = l.Submit(func() { ran.Add(1) })
	}
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(block)
	}()
	l.Close()
	if ran.Load() != 5 {
		t.Errorf("queued jobs run = %d, want 5", ran.Load())
	}
	if err := l.Submit(func() {}); !errors.Is(err, ErrClosed) {
		t.Errorf("Submit after Close = %v", err)
	}
	l.Close()
}

func TestDoHonoursContext(t *testing.T) {
	l := New(nil)
	defer l.Close()
	block := make(chan struct{})
	defer close(block)
	_ = l.Submit(func() { <-block })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Do(ctx, func() error { return nil }); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Do = %v", err)
	}
}
