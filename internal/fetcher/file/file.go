// Package file reads the state file from the local filesystem, for servers
// whose save directory is mounted on the watcher host.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/crimson-sun/tribewatch/internal/fetcher"
)

func init() {
	fetcher.Register("file", func(cfg fetcher.Config) (fetcher.Fetcher, error) {
		return New(cfg)
	})
}

// Fetcher reads a local path in full on every call.
type Fetcher struct {
	path     string
	maxBytes int64
}

// New creates a local file fetcher. Path is required.
func New(cfg fetcher.Config) (*Fetcher, error) {
	if cfg.Path == "" {
		return nil, errors.New("file fetcher: missing path")
	}
	return &Fetcher{path: cfg.Path, maxBytes: cfg.MaxBytes}, nil
}

func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, f.wrap(err)
	}
	fh, err := os.Open(f.path)
	if err != nil {
		return nil, f.wrap(err)
	}
	defer fh.Close()

	data, err := readLimited(fh, f.maxBytes)
	if err != nil {
		return nil, f.wrap(err)
	}
	return data, nil
}

func (f *Fetcher) Name() string {
	return "file:" + f.path
}

func (f *Fetcher) wrap(err error) error {
	return &fetcher.TransferError{Provider: "file", Path: f.path, Err: err}
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, &fetcher.ErrTooLarge{Limit: maxBytes}
	}
	return data, nil
}
