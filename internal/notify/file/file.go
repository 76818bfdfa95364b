// Package file appends notifications to a local journal file, one line per
// message.
package file

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

// Sink appends timestamped lines to a file and flushes after every message
// so the journal survives a crash.
type Sink struct {
	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	path string
	now  func() time.Time
}

// New opens (or creates) path for appending.
func New(path string) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("file sink: open %s: %w", path, err)
	}
	return &Sink{f: f, w: bufio.NewWriter(f), path: path, now: time.Now}, nil
}

func (s *Sink) Send(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprintf(s.w, "%s\t%s\n", s.now().UTC().Format(time.RFC3339), text); err != nil {
		return fmt.Errorf("file sink: write: %w", err)
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("file sink: flush: %w", err)
	}
	return nil
}

// Close flushes the buffer and closes the file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.Flush(); err != nil {
		s.f.Close()
		return fmt.Errorf("file sink: flush: %w", err)
	}
	return s.f.Close()
}
