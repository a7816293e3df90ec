package throttle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"
)

const testInterval = 50 * time.Millisecond

type recorder struct {
	mu   sync.Mutex
	args []int
}

func (r *recorder) record(v int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.args = append(r.args, v)
}

func (r *recorder) get() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.args...)
}

func TestLimiterLeadingEdge(t *testing.T) {
	mClock := quartz.NewMock(t)
	rec := &recorder{}
	lim := New(mClock, testInterval, rec.record)

	lim.Call(1)
	require.Equal(t, []int{1}, rec.get())
}

func TestLimiterCoalescesToMostRecent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	mClock := quartz.NewMock(t)
	rec := &recorder{}
	lim := New(mClock, testInterval, rec.record)

	lim.Call(1)
	lim.Call(2)
	lim.Call(3)
	// only the leading call has run; 2 was discarded in favor of 3
	require.Equal(t, []int{1}, rec.get())

	mClock.Advance(testInterval).MustWait(ctx)
	require.Equal(t, []int{1, 3}, rec.get())

	// nothing further is pending
	mClock.Advance(testInterval).MustWait(ctx)
	require.Equal(t, []int{1, 3}, rec.get())
}

func TestLimiterQuietPeriodRunsImmediately(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	mClock := quartz.NewMock(t)
	rec := &recorder{}
	lim := New(mClock, testInterval, rec.record)

	lim.Call(1)
	mClock.Advance(2 * testInterval).MustWait(ctx)
	lim.Call(2)
	require.Equal(t, []int{1, 2}, rec.get())
}

func TestLimiterBoundPerInterval(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	mClock := quartz.NewMock(t)
	rec := &recorder{}
	lim := New(mClock, testInterval, rec.record)

	// a burst of calls every 10ms for 200ms of simulated time
	arg := 0
	for step := 0; step < 20; step++ {
		for i := 0; i < 5; i++ {
			arg++
			lim.Call(arg)
		}
		mClock.Advance(10 * time.Millisecond).MustWait(ctx)
	}

	// 200ms at one execution per 50ms, plus the leading edge
	require.LessOrEqual(t, len(rec.get()), 5)
	require.GreaterOrEqual(t, len(rec.get()), 4)
}

func TestLimiterStopDropsPending(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	mClock := quartz.NewMock(t)
	rec := &recorder{}
	lim := New(mClock, testInterval, rec.record)

	lim.Call(1)
	lim.Call(2)
	lim.Stop()

	mClock.Advance(testInterval).MustWait(ctx)
	require.Equal(t, []int{1}, rec.get())

	// a stopped limiter behaves as if fresh
	lim.Call(3)
	require.Equal(t, []int{1, 3}, rec.get())
}
