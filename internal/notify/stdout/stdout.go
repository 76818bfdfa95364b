// Package stdout prints notifications instead of delivering them, for
// dry runs against a live server.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Sink writes one line per message, prefixed with a UTC timestamp.
type Sink struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// New creates a sink writing to stdout.
func New() *Sink {
	return NewWriter(os.Stdout)
}

// NewWriter creates a sink writing to w.
func NewWriter(w io.Writer) *Sink {
	return &Sink{w: w, now: time.Now}
}

func (s *Sink) Send(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "%s %s\n", s.now().UTC().Format(time.RFC3339), text); err != nil {
		return fmt.Errorf("stdout sink: %w", err)
	}
	return nil
}

func (s *Sink) Close() error {
	return nil
}
