package delegate

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// Timeout bounds of a getter or setter call.
const (
	DefaultTimeout = time.Second
	MinTimeout     = 500 * time.Millisecond
	MaxTimeout     = 5 * time.Second
)

func clampTimeout(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return DefaultTimeout
	case d < MinTimeout:
		return MinTimeout
	case d > MaxTimeout:
		return MaxTimeout
	}
	return d
}

// outcome is what a getter or setter returned.
type outcome struct {
	value any
	err   error
}

// token settles an exchange exactly once: either the callback completes
// first and its outcome goes to the host, or the deadline wins and the
// outcome is handed to late.
type token struct {
	settled atomic.Bool
}

func (t *token) settle() bool {
	return t.settled.CompareAndSwap(false, true)
}

// guard runs fn with the delegate lifetime context under timeout. It returns
// fn's outcome when fn completes within the deadline; otherwise it returns
// an error (ErrTimeout, or ctx.Err() when the host gave up first) and calls
// late with fn's eventual outcome.
func guard(ctx, lifetime context.Context, timeout time.Duration, fn func(context.Context) (any, error), late func(outcome)) (outcome, error) {
	tok := &token{}
	done := make(chan outcome, 1)
	go func() {
		o := call(lifetime, fn)
		if tok.settle() {
			done <- o
			return
		}
		late(o)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	var err error
	select {
	case o := <-done:
		return o, nil
	case <-timer.C:
		err = fmt.Errorf("%w after %v", ErrTimeout, timeout)
	case <-ctx.Done():
		err = ctx.Err()
	}
	if tok.settle() {
		return outcome{}, err
	}
	// fn settled between the deadline and here.
	return <-done, nil
}

func call(ctx context.Context, fn func(context.Context) (any, error)) (o outcome) {
	defer func() {
		if r := recover(); r != nil {
			o = outcome{err: fmt.Errorf("panic: %v", r)}
		}
	}()
	v, err := fn(ctx)
	return outcome{value: v, err: err}
}
