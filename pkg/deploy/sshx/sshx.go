// Package sshx provides the SSH transport of the deploy pipeline:
// remote command execution and file upload over the authenticated
// encrypted channel.
package sshx

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Client is an SSH client with lazy connection. Safe for sequential
// use by pipeline stages; the caller closes it after the run.
type Client struct {
	// Addr is the host:port of the target.
	Addr string

	// User is the login name.
	User string

	// Key is the PEM-encoded private key.
	Key []byte

	// Passphrase decrypts the key, may be empty for unencrypted keys.
	Passphrase string

	// KnownHosts is the path to a known_hosts file. When empty, host
	// key verification is disabled, which is logged loudly.
	KnownHosts string

	// Timeout bounds the connection handshake.
	Timeout time.Duration

	mu   sync.Mutex
	conn *ssh.Client
}

// Run executes the command on the target host.
func (c *Client) Run(ctx context.Context, cmd string) error {
	conn, err := c.connect(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	sess, err := conn.NewSession()
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer sess.Close()

	out := &bytes.Buffer{}
	sess.Stdout = out
	sess.Stderr = out

	slog.DebugContext(ctx, "running remote command",
		slog.String("addr", c.Addr), slog.String("cmd", cmd))

	if err = c.await(ctx, sess, func() error { return sess.Run(cmd) }); err != nil {
		return fmt.Errorf("%q: %w: %s", cmd, err, strings.TrimSpace(out.String()))
	}

	return nil
}

// Upload copies the local file to the remote path, creating the
// remote directory if needed.
func (c *Client) Upload(ctx context.Context, local, remote string) error {
	conn, err := c.connect(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	f, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("open local file: %w", err)
	}
	defer f.Close()

	sess, err := conn.NewSession()
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer sess.Close()

	sess.Stdin = f

	dir, q := quote(path.Dir(remote)), quote(remote)
	cmd := fmt.Sprintf("mkdir -p %s && cat > %s", dir, q)

	slog.DebugContext(ctx, "uploading file",
		slog.String("addr", c.Addr),
		slog.String("local", local),
		slog.String("remote", remote))

	if err = c.await(ctx, sess, func() error { return sess.Run(cmd) }); err != nil {
		return fmt.Errorf("upload to %s: %w", remote, err)
	}

	return nil
}

// Close tears the connection down.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) connect(ctx context.Context) (*ssh.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return c.conn, nil
	}

	signer, err := c.signer()
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	hostKeys := ssh.InsecureIgnoreHostKey() //nolint:gosec // opted in explicitly, warned below
	if c.KnownHosts != "" {
		if hostKeys, err = knownhosts.New(c.KnownHosts); err != nil {
			return nil, fmt.Errorf("load known hosts: %w", err)
		}
	} else {
		slog.WarnContext(ctx, "host key verification is disabled", slog.String("addr", c.Addr))
	}

	timeout := c.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	cfg := &ssh.ClientConfig{
		User:            c.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeys,
		Timeout:         timeout,
	}

	dialer := &net.Dialer{Timeout: timeout}
	tcp, err := dialer.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(tcp, c.Addr, cfg)
	if err != nil {
		_ = tcp.Close()
		return nil, fmt.Errorf("handshake: %w", err)
	}

	c.conn = ssh.NewClient(sshConn, chans, reqs)
	return c.conn, nil
}

func (c *Client) signer() (ssh.Signer, error) {
	if c.Passphrase != "" {
		return ssh.ParsePrivateKeyWithPassphrase(c.Key, []byte(c.Passphrase))
	}
	return ssh.ParsePrivateKey(c.Key)
}

// await runs fn and aborts the session when the context is cancelled
// first; ssh sessions don't take contexts themselves.
func (c *Client) await(ctx context.Context, sess *ssh.Session, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case <-ctx.Done():
		_ = sess.Close()
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
