// Package notify defines the destination for event notifications.
package notify

import (
	"context"
	"fmt"
)

// Sink delivers one notification text per Send call.
type Sink interface {
	Send(ctx context.Context, text string) error
	Close() error
}

// SendError reports that a sink failed to deliver a message.
type SendError struct {
	Sink string
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s send: %v", e.Sink, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Nop discards every message.
type Nop struct{}

func (Nop) Send(context.Context, string) error { return nil }
func (Nop) Close() error                       { return nil }
