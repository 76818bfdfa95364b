// Package retry wraps a sink in an outbound queue that retries failed
// deliveries in the background. Retrying happens after the poller has
// already marked the record seen, so a flaky sink delays a notification
// instead of dropping it, without ever causing a duplicate report.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/crimson-sun/tribewatch/internal/notify"
)

const (
	defaultBufferSize   = 256
	defaultMaxAttempts  = 5
	defaultBackoff      = 2 * time.Second
	defaultSendTimeout  = 10 * time.Second
	defaultDrainTimeout = 5 * time.Second
)

// ErrQueueFull is returned by Send when the queue cannot accept a message.
var ErrQueueFull = errors.New("retry queue full")

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("retry queue closed")

// Option configures a Queue.
type Option func(*Queue)

// WithBufferSize sets the queue capacity. Default: 256.
func WithBufferSize(n int) Option {
	return func(q *Queue) { q.bufSize = n }
}

// WithMaxAttempts sets how many times a message is tried before it is
// given up. Default: 5.
func WithMaxAttempts(n int) Option {
	return func(q *Queue) { q.maxAttempts = n }
}

// WithBackoff sets the delay after the first failure; later delays double.
// Default: 2s.
func WithBackoff(d time.Duration) Option {
	return func(q *Queue) { q.backoff = d }
}

// WithSendTimeout bounds each delivery attempt. Default: 10s.
func WithSendTimeout(d time.Duration) Option {
	return func(q *Queue) { q.sendTimeout = d }
}

// WithOnDrop sets the callback invoked when a message is abandoned after
// its last attempt. Default: logs an error via slog.
func WithOnDrop(f func(text string, err error)) Option {
	return func(q *Queue) { q.dropFunc = f }
}

// WithOnResult sets a callback invoked once per message with its final
// outcome: true when delivered, false when abandoned.
func WithOnResult(f func(delivered bool)) Option {
	return func(q *Queue) { q.resultFunc = f }
}

// Queue decouples notification from delivery via a buffered channel.
// A background goroutine drains it to the wrapped sink, retrying each
// message with exponential backoff.
type Queue struct {
	inner       notify.Sink
	ch          chan string
	done        chan struct{}
	ctx         context.Context
	cancel      context.CancelFunc
	dropFunc    func(string, error)
	resultFunc  func(bool)
	bufSize     int
	maxAttempts int
	backoff     time.Duration
	sendTimeout time.Duration

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// New wraps inner in a retrying queue. The drain goroutine starts immediately.
func New(inner notify.Sink, opts ...Option) *Queue {
	q := &Queue{
		inner:       inner,
		bufSize:     defaultBufferSize,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
		sendTimeout: defaultSendTimeout,
		dropFunc: func(text string, err error) {
			slog.Error("notification dropped after retries", "text", text, "error", err)
		},
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.maxAttempts < 1 {
		q.maxAttempts = 1
	}
	q.ch = make(chan string, q.bufSize)
	q.done = make(chan struct{})
	q.ctx, q.cancel = context.WithCancel(context.Background())
	go q.drain()
	return q
}

// Send enqueues text without blocking. It fails only when the queue is full
// or closed; delivery errors are handled in the background and reported
// through WithOnResult.
func (q *Queue) Send(_ context.Context, text string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return &notify.SendError{Sink: "retry", Err: ErrClosed}
	}
	select {
	case q.ch <- text:
		return nil
	default:
		return &notify.SendError{Sink: "retry", Err: ErrQueueFull}
	}
}

// Pending returns the number of queued messages not yet picked up.
func (q *Queue) Pending() int {
	return len(q.ch)
}

// Close stops accepting messages, waits up to the drain timeout for queued
// messages to be delivered, then abandons the rest and closes the inner sink.
func (q *Queue) Close() error {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.ch)
		q.mu.Unlock()

		select {
		case <-q.done:
		case <-time.After(defaultDrainTimeout):
			slog.Warn("retry queue drain timed out", "pending", len(q.ch))
			q.cancel()
			<-q.done
		}
		q.cancel()
		q.closeErr = q.inner.Close()
	})
	return q.closeErr
}

func (q *Queue) drain() {
	defer close(q.done)
	for text := range q.ch {
		err := q.deliver(text)
		if err != nil {
			q.dropFunc(text, err)
		}
		if q.resultFunc != nil {
			q.resultFunc(err == nil)
		}
	}
}

// deliver tries text up to maxAttempts times.
func (q *Queue) deliver(text string) error {
	var err error
	for attempt := 0; attempt < q.maxAttempts; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(q.backoff << (attempt - 1))
			select {
			case <-q.ctx.Done():
				t.Stop()
				return errors.Join(err, q.ctx.Err())
			case <-t.C:
			}
		}
		ctx, cancel := context.WithTimeout(q.ctx, q.sendTimeout)
		err = q.inner.Send(ctx, text)
		cancel()
		if err == nil {
			return nil
		}
		slog.Warn("notification attempt failed", "attempt", attempt+1, "error", err)
	}
	return err
}
