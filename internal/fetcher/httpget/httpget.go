// Package httpget fetches the state file over HTTP(S), for servers that
// expose their save directory through a file browser or panel API.
package httpget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/crimson-sun/tribewatch/internal/fetcher"
	"github.com/crimson-sun/tribewatch/internal/httpclient"
)

const defaultTimeout = 30 * time.Second

func init() {
	fetcher.Register("http", func(cfg fetcher.Config) (fetcher.Fetcher, error) {
		return New(cfg)
	})
}

// Fetcher GETs Endpoint+Path, retrying on 429 and 5xx.
type Fetcher struct {
	client   *httpclient.Client
	endpoint string
	path     string
	maxBytes int64
}

// New creates an HTTP fetcher. Endpoint is required; Secret, when set, is
// sent as a Bearer token.
func New(cfg fetcher.Config, opts ...httpclient.Option) (*Fetcher, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("http fetcher: missing endpoint")
	}
	opts = append([]httpclient.Option{httpclient.WithTimeout(defaultTimeout)}, opts...)
	return &Fetcher{
		client:   httpclient.New(cfg.Endpoint, cfg.Secret, opts...),
		endpoint: cfg.Endpoint,
		path:     cfg.Path,
		maxBytes: cfg.MaxBytes,
	}, nil
}

func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	data, err := f.client.Get(ctx, f.path, nil, f.maxBytes)
	if err != nil {
		var tooLarge *httpclient.TooLargeError
		if errors.As(err, &tooLarge) {
			err = &fetcher.ErrTooLarge{Limit: tooLarge.Limit}
		}
		return nil, &fetcher.TransferError{Provider: "http", Path: f.path, Err: err}
	}
	return data, nil
}

func (f *Fetcher) Name() string {
	return fmt.Sprintf("http:%s%s", f.endpoint, f.path)
}
