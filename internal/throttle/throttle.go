// Package throttle limits how often a high-frequency callback runs. It is
// used to thin pointer-movement events down to a fixed sampling rate before
// they reach the interaction buffer.
package throttle

import (
	"sync"
	"time"

	"github.com/coder/quartz"
)

// Limiter wraps a callback so it executes at most once per interval. The
// first call in a quiet period runs immediately; calls arriving inside the
// interval are coalesced into one trailing execution carrying the most
// recent call's argument. Older coalesced arguments are discarded.
type Limiter[T any] struct {
	clock    quartz.Clock
	interval time.Duration
	fn       func(T)

	mu      sync.Mutex
	last    time.Time
	started bool
	pending *T
	timer   *quartz.Timer
}

// New returns a Limiter invoking fn at most once per interval. A nil clock
// uses real time.
func New[T any](clock quartz.Clock, interval time.Duration, fn func(T)) *Limiter[T] {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Limiter[T]{
		clock:    clock,
		interval: interval,
		fn:       fn,
	}
}

// Call requests an execution of the wrapped callback with arg. It either
// runs fn synchronously (leading edge), or records arg for the trailing
// execution already scheduled for the end of the current interval.
func (l *Limiter[T]) Call(arg T) {
	l.mu.Lock()
	now := l.clock.Now()
	if l.timer == nil && (!l.started || now.Sub(l.last) >= l.interval) {
		l.started = true
		l.last = now
		l.mu.Unlock()
		l.fn(arg)
		return
	}
	l.pending = &arg
	if l.timer == nil {
		l.timer = l.clock.AfterFunc(l.interval-now.Sub(l.last), l.fire)
	}
	l.mu.Unlock()
}

func (l *Limiter[T]) fire() {
	l.mu.Lock()
	arg := l.pending
	l.pending = nil
	l.timer = nil
	l.last = l.clock.Now()
	l.mu.Unlock()
	if arg != nil {
		l.fn(*arg)
	}
}

// Stop cancels any scheduled trailing execution and drops its pending
// argument. Further calls behave as if the Limiter were fresh.
func (l *Limiter[T]) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.pending = nil
	l.started = false
}
