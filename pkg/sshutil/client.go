package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"net"

	"github.com/rileyhilliard/teleop/internal/errors"
	"golang.org/x/crypto/ssh"
)

// Client is an established SSH connection.
type Client struct {
	conn    *ssh.Client
	host    string
	address string
}

var _ Remote = (*Client)(nil)

// Dial connects to host, which may be an SSH config alias, a hostname,
// user@hostname, or hostname:port. Cancelling ctx aborts the TCP connect
// and the handshake.
func Dial(ctx context.Context, host string) (*Client, error) {
	settings := resolveSettings(host)

	config, err := clientConfig(settings)
	if err != nil {
		var structured *errors.Error
		if stderrors.As(err, &structured) {
			return nil, err
		}
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Couldn't set up SSH for '%s'", host),
			"Check your keys are loaded: ssh-add -l")
	}

	address := settings.address()
	var dialer net.Dialer
	tcp, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Can't reach '%s' at %s", host, address),
			dialSuggestion(err))
	}

	// The handshake has no context of its own; closing the socket unblocks it.
	stop := context.AfterFunc(ctx, func() { _ = tcp.Close() })
	sshConn, chans, reqs, err := ssh.NewClientConn(tcp, address, config)
	stop()
	if err != nil {
		_ = tcp.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var mismatch *HostKeyMismatchError
		if stderrors.As(err, &mismatch) {
			return nil, errors.New(errors.ErrSSH, mismatch.Error(), mismatch.Suggestion())
		}
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("SSH handshake with '%s' didn't go through", host),
			handshakeSuggestion(err, settings.encryptedKeys))
	}

	return &Client{
		conn:    ssh.NewClient(sshConn, chans, reqs),
		host:    host,
		address: address,
	}, nil
}

// DialFirst tries each target in order and returns the first that connects.
// The error of the last attempt is returned when none do.
func DialFirst(ctx context.Context, targets []string) (*Client, error) {
	if len(targets) == 0 {
		return nil, errors.New(errors.ErrSSH, "No SSH targets to try",
			"Add at least one entry under the host's 'ssh' list")
	}
	var lastErr error
	for _, target := range targets {
		client, err := Dial(ctx, target)
		if err == nil {
			return client, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}
	return nil, lastErr
}

// Host returns the alias or address that was dialed.
func (c *Client) Host() string {
	return c.host
}

// Address returns the resolved host:port.
func (c *Client) Address() string {
	return c.address
}

// DialUnix opens a direct-streamlocal channel to a Unix socket on the
// remote host.
func (c *Client) DialUnix(path string) (net.Conn, error) {
	conn, err := c.conn.Dial("unix", path)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Can't open %s on '%s'", path, c.host),
			"Check the socket exists and AllowStreamLocalForwarding is enabled in sshd_config")
	}
	return conn, nil
}

// Exec runs cmd in a fresh session. Cancelling ctx closes the session.
func (c *Client) Exec(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error) {
	session, err := c.conn.NewSession()
	if err != nil {
		return nil, nil, -1, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}
	defer session.Close()
	stop := context.AfterFunc(ctx, func() { _ = session.Close() })
	defer stop()

	var outBuf, errBuf bytes.Buffer
	session.Stdout = &outBuf
	session.Stderr = &errBuf

	if err := session.Run(cmd); err != nil {
		var exitErr *ssh.ExitError
		if stderrors.As(err, &exitErr) {
			return outBuf.Bytes(), errBuf.Bytes(), exitErr.ExitStatus(), nil
		}
		if ctx.Err() != nil {
			return nil, nil, -1, ctx.Err()
		}
		return nil, nil, -1, errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Failed to execute command: %s", cmd),
			"Check if the command exists on the remote host.")
	}
	return outBuf.Bytes(), errBuf.Bytes(), 0, nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
