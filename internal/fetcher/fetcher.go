// Package fetcher defines the transport that retrieves the current full
// contents of the remote state file, and a registry of providers.
package fetcher

import (
	"context"
	"fmt"
)

// Fetcher retrieves the full current contents of one remote object.
type Fetcher interface {
	// Fetch returns the object's bytes. Failures are returned as
	// *TransferError. Fetch must honour ctx cancellation.
	Fetch(ctx context.Context) ([]byte, error)

	// Name identifies the provider and target for logging.
	Name() string
}

// Config holds provider-specific connection settings.
type Config struct {
	Provider string
	Endpoint string // host:port for sftp, base URL for http
	Path     string // remote object path
	User     string
	Secret   string // password or bearer token
	MaxBytes int64  // 0 means unlimited
	Extra    map[string]string
}

// TransferError reports that the remote object could not be obtained.
type TransferError struct {
	Provider string
	Path     string
	Err      error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s fetch %s: %v", e.Provider, e.Path, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// ErrTooLarge is wrapped when the remote object exceeds Config.MaxBytes.
type ErrTooLarge struct {
	Limit int64
}

func (e *ErrTooLarge) Error() string {
	return fmt.Sprintf("object exceeds %d byte limit", e.Limit)
}
