package poller

import (
	"context"
	"sync"
	"time"
)

// Scheduler invokes a function repeatedly until cancelled.
type Scheduler interface {
	// Start begins invoking fn. It returns immediately.
	Start(ctx context.Context, interval time.Duration, fn func(context.Context))
	// Cancel stops the schedule. No new invocation starts after Cancel.
	Cancel()
	// Done is closed once the schedule has stopped and fn has returned.
	Done() <-chan struct{}
}

// IntervalScheduler runs fn immediately, then again interval after each
// invocation returns. Invocations never overlap, so a slow cycle pushes the
// next one back instead of stacking up.
type IntervalScheduler struct {
	mu       sync.Mutex
	started  bool
	canceled bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewIntervalScheduler creates an idle scheduler.
func NewIntervalScheduler() *IntervalScheduler {
	return &IntervalScheduler{done: make(chan struct{})}
}

func (s *IntervalScheduler) Start(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	if s.canceled {
		close(s.done)
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx, interval, fn)
}

func (s *IntervalScheduler) loop(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	defer close(s.done)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		fn(ctx)
		timer.Reset(interval)
	}
}

func (s *IntervalScheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canceled = true
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *IntervalScheduler) Done() <-chan struct{} {
	return s.done
}
