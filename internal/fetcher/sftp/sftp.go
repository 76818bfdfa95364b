// Package sftp fetches the state file from the game server over SFTP.
// A new SSH session is opened for every fetch, so a dropped connection
// never outlives the cycle that hit it.
package sftp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/crimson-sun/tribewatch/internal/fetcher"
)

const (
	defaultPort        = "22"
	defaultDialTimeout = 15 * time.Second
)

func init() {
	fetcher.Register("sftp", func(cfg fetcher.Config) (fetcher.Fetcher, error) {
		return New(cfg)
	})
}

// Fetcher downloads one remote path per call.
//
// Recognised Extra keys: "key_file", "key_passphrase", "known_hosts".
type Fetcher struct {
	addr     string
	path     string
	maxBytes int64
	client   *ssh.ClientConfig
}

// New validates cfg and prepares the SSH client configuration. Endpoint is
// host or host:port, User and Path are required, and at least one of Secret
// (password) or Extra["key_file"] must be set.
func New(cfg fetcher.Config) (*Fetcher, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("sftp fetcher: missing endpoint")
	}
	if cfg.User == "" {
		return nil, errors.New("sftp fetcher: missing user")
	}
	if cfg.Path == "" {
		return nil, errors.New("sftp fetcher: missing path")
	}

	auth, err := authMethods(cfg)
	if err != nil {
		return nil, fmt.Errorf("sftp fetcher: %w", err)
	}
	hostKey, err := hostKeyCallback(cfg.Extra["known_hosts"])
	if err != nil {
		return nil, fmt.Errorf("sftp fetcher: %w", err)
	}

	return &Fetcher{
		addr:     withDefaultPort(cfg.Endpoint),
		path:     cfg.Path,
		maxBytes: cfg.MaxBytes,
		client: &ssh.ClientConfig{
			User:            cfg.User,
			Auth:            auth,
			HostKeyCallback: hostKey,
			Timeout:         defaultDialTimeout,
		},
	}, nil
}

// Fetch dials, authenticates, reads the remote file in full, and closes the
// session. Cancelling ctx closes the underlying connection, aborting any
// transfer in progress.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	data, err := f.fetch(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, &fetcher.TransferError{Provider: "sftp", Path: f.path, Err: err}
	}
	return data, nil
}

func (f *Fetcher) fetch(ctx context.Context) ([]byte, error) {
	dialer := net.Dialer{Timeout: f.client.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", f.addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", f.addr, err)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, f.addr, f.client)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake: %w", err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()

	sc, err := sftp.NewClient(client)
	if err != nil {
		return nil, fmt.Errorf("sftp session: %w", err)
	}
	defer sc.Close()

	return readRemote(sc, f.path, f.maxBytes)
}

func (f *Fetcher) Name() string {
	return fmt.Sprintf("sftp:%s@%s%s", f.client.User, f.addr, f.path)
}

// readRemote reads path in full. A positive maxBytes rejects larger files
// before transferring them.
func readRemote(sc *sftp.Client, path string, maxBytes int64) ([]byte, error) {
	fh, err := sc.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer fh.Close()

	if maxBytes <= 0 {
		var buf bytes.Buffer
		if _, err := fh.WriteTo(&buf); err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		return buf.Bytes(), nil
	}

	info, err := fh.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	if info.Size() > maxBytes {
		return nil, &fetcher.ErrTooLarge{Limit: maxBytes}
	}
	// The file may grow between Stat and read.
	data, err := io.ReadAll(io.LimitReader(fh, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, &fetcher.ErrTooLarge{Limit: maxBytes}
	}
	return data, nil
}

func authMethods(cfg fetcher.Config) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if keyFile := cfg.Extra["key_file"]; keyFile != "" {
		pem, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		var signer ssh.Signer
		if pass := cfg.Extra["key_passphrase"]; pass != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, []byte(pass))
		} else {
			signer, err = ssh.ParsePrivateKey(pem)
		}
		if err != nil {
			return nil, fmt.Errorf("parse key file: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if cfg.Secret != "" {
		methods = append(methods, ssh.Password(cfg.Secret))
	}
	if len(methods) == 0 {
		return nil, errors.New("no credentials: set a password or key file")
	}
	return methods, nil
}

func hostKeyCallback(knownHostsPath string) (ssh.HostKeyCallback, error) {
	if knownHostsPath == "" {
		slog.Warn("sftp host key verification disabled; set a known_hosts file to enable it")
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("load known_hosts: %w", err)
	}
	return cb, nil
}

func withDefaultPort(endpoint string) string {
	if _, _, err := net.SplitHostPort(endpoint); err == nil {
		return endpoint
	}
	return net.JoinHostPort(endpoint, defaultPort)
}
