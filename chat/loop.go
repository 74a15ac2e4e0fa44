package chat

import (
	"context"
	"errors"
)

// ErrLoopStopped is returned by Call once Run has returned.
var ErrLoopStopped = errors.New("chat loop stopped")

// Loop runs every state mutation of a client on one goroutine. Channel
// pumps and HTTP queries run elsewhere and hand their results back as
// closures, so handlers never run concurrently with each other.
type Loop struct {
	tasks chan func()
	done  chan struct{}
	ctx   context.Context
}

// NewLoop returns an idle loop; tasks run once Run is called.
func NewLoop() *Loop {
	return &Loop{
		tasks: make(chan func(), 256),
		done:  make(chan struct{}),
		ctx:   context.Background(),
	}
}

// Run processes tasks until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	l.ctx = ctx
	defer close(l.done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Post queues fn. It must not be called from the loop goroutine itself.
func (l *Loop) Post(fn func()) bool {
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Call runs fn on the loop and waits for its result.
func (l *Loop) Call(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	task := func() { errc <- fn() }

	select {
	case l.tasks <- task:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrLoopStopped
	}

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrLoopStopped
	}
}

// Go runs fn off the loop; the closure it returns, if any, is applied on
// the loop. Only call Go from a loop task.
func (l *Loop) Go(fn func(ctx context.Context) func()) {
	ctx := l.ctx
	go func() {
		if apply := fn(ctx); apply != nil {
			l.Post(apply)
		}
	}()
}
