package multi

import (
	"context"
	"errors"

	"github.com/crimson-sun/tribewatch/internal/notify"
)

// Multi fans out messages to multiple sinks.
// Each Send call delivers the message to every wrapped sink sequentially.
// If one sink fails, the remaining sinks still receive the message.
type Multi struct {
	sinks []notify.Sink
}

// New creates a Multi that fans out to the given sinks.
func New(sinks ...notify.Sink) *Multi {
	return &Multi{sinks: sinks}
}

// Send delivers text to every wrapped sink. Errors are collected
// but do not prevent delivery to subsequent sinks.
func (m *Multi) Send(ctx context.Context, text string) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Send(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close calls Close on every wrapped sink, collecting errors.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
