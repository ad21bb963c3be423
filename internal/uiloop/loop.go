// Package uiloop is a single-goroutine cooperative executor. Work that reads
// live view or document state is submitted here so it never interleaves.
package uiloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fakeyudi/gazetrace/internal/logging"
)

// ErrClosed is returned when submitting to a closed Loop.
var ErrClosed = errors.New("uiloop: closed")

// Loop runs submitted jobs one at a time, in submission order.
type Loop struct {
	log *slog.Logger

	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

// New starts a Loop.
func New(l *slog.Logger) *Loop {
	lp := &Loop{
		log:  logging.OrDiscard(l).With("component", "uiloop"),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go lp.run()
	return lp
}

// Submit queues fn without waiting for it. It never blocks, so jobs may
// submit follow-up work.
func (l *Loop) Submit(fn func()) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.queue = append(l.queue, fn)
	select {
	case l.wake <- struct{}{}:
	default:
	}
	l.mu.Unlock()
	return nil
}

// Do runs fn on the loop and waits for its result. If ctx ends first, Do
// returns ctx.Err() and fn may still run later.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	res := make(chan error, 1)
	if err := l.Submit(func() { res <- fn() }); err != nil {
		return err
	}
	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain waits until every job submitted before the call has run.
func (l *Loop) Drain(ctx context.Context) error {
	return l.Do(ctx, func() error { return nil })
}

// Close stops accepting work, runs what is already queued, and waits for
// the loop goroutine to exit.
func (l *Loop) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.wake)
	}
	l.mu.Unlock()
	<-l.done
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		closed := l.closed
		l.mu.Unlock()

		for _, fn := range batch {
			l.exec(fn)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-l.wake
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("job panicked", "panic", fmt.Sprint(r))
		}
	}()
	fn()
}
