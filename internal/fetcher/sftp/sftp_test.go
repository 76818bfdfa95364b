package sftp

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/crimson-sun/tribewatch/internal/fetcher"
)

// newMemClient connects an SFTP client to an in-memory server over a pipe.
func newMemClient(t *testing.T) *sftp.Client {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	server := sftp.NewRequestServer(serverConn, sftp.InMemHandler())
	go server.Serve()

	client, err := sftp.NewClientPipe(clientConn, clientConn)
	require.NoError(t, err)
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client
}

func putFile(t *testing.T, c *sftp.Client, path string, data []byte) {
	t.Helper()
	fh, err := c.Create(path)
	require.NoError(t, err)
	_, err = fh.Write(data)
	require.NoError(t, err)
	require.NoError(t, fh.Close())
}

func TestReadRemote(t *testing.T) {
	c := newMemClient(t)
	payload := []byte{0x06, 0, 0, 0, 'h', 'e', 'l', 'l', 'o', 0}
	putFile(t, c, "/1234.arktribe", payload)

	data, err := readRemote(c, "/1234.arktribe", 0)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	data, err = readRemote(c, "/1234.arktribe", int64(len(payload)))
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestReadRemoteTooLarge(t *testing.T) {
	c := newMemClient(t)
	putFile(t, c, "/big.arktribe", make([]byte, 128))

	_, err := readRemote(c, "/big.arktribe", 64)
	var tooLarge *fetcher.ErrTooLarge
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, int64(64), tooLarge.Limit)
}

func TestReadRemoteMissing(t *testing.T) {
	c := newMemClient(t)
	_, err := readRemote(c, "/missing.arktribe", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open")
}

func TestNewValidation(t *testing.T) {
	base := fetcher.Config{Endpoint: "ark.example.com", User: "container", Path: "/saves/1.arktribe", Secret: "pw"}

	tests := []struct {
		name   string
		mutate func(*fetcher.Config)
		want   string
	}{
		{"missing endpoint", func(c *fetcher.Config) { c.Endpoint = "" }, "missing endpoint"},
		{"missing user", func(c *fetcher.Config) { c.User = "" }, "missing user"},
		{"missing path", func(c *fetcher.Config) { c.Path = "" }, "missing path"},
		{"no credentials", func(c *fetcher.Config) { c.Secret = "" }, "no credentials"},
		{"bad key file", func(c *fetcher.Config) { c.Extra = map[string]string{"key_file": "/does/not/exist"} }, "read key file"},
		{"bad known_hosts", func(c *fetcher.Config) { c.Extra = map[string]string{"known_hosts": "/does/not/exist"} }, "known_hosts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			_, err := New(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewDefaultsPort(t *testing.T) {
	f, err := New(fetcher.Config{Endpoint: "ark.example.com", User: "container", Path: "/a", Secret: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "ark.example.com:22", f.addr)
	assert.Equal(t, "sftp:container@ark.example.com:22/a", f.Name())

	f, err = New(fetcher.Config{Endpoint: "10.0.0.5:2022", User: "u", Path: "/a", Secret: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5:2022", f.addr)
}

func TestKeyFileAndKnownHosts(t *testing.T) {
	dir := t.TempDir()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)
	keyPath := filepath.Join(dir, "id_ed25519")
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(block), 0o600))

	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	khPath := filepath.Join(dir, "known_hosts")
	line := knownhosts.Line([]string{"ark.example.com:22"}, sshPub) + "\n"
	require.NoError(t, os.WriteFile(khPath, []byte(line), 0o600))

	f, err := New(fetcher.Config{
		Endpoint: "ark.example.com",
		User:     "container",
		Path:     "/a",
		Extra:    map[string]string{"key_file": keyPath, "known_hosts": khPath},
	})
	require.NoError(t, err)
	assert.Len(t, f.client.Auth, 1)

	addr := &net.TCPAddr{IP: net.ParseIP("10.0.0.5"), Port: 22}
	assert.NoError(t, f.client.HostKeyCallback("ark.example.com:22", addr, sshPub))

	_, otherPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	otherSigner, err := ssh.NewSignerFromKey(otherPriv)
	require.NoError(t, err)
	assert.Error(t, f.client.HostKeyCallback("ark.example.com:22", addr, otherSigner.PublicKey()))
}

func TestFetchCancelled(t *testing.T) {
	f, err := New(fetcher.Config{Endpoint: "127.0.0.1:1", User: "u", Path: "/a", Secret: "pw"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = f.Fetch(ctx)
	var te *fetcher.TransferError
	require.ErrorAs(t, err, &te)
	assert.True(t, errors.Is(err, context.Canceled))
}
