package sshutil

import (
	"context"
	"net"
)

// Remote is the part of a Client the transport layer uses. The mock in
// sshutil/testing satisfies it too.
type Remote interface {
	// Exec runs cmd and returns its output. A non-zero exit code with a nil
	// error means the command ran and failed; -1 means it never ran.
	Exec(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error)

	// DialUnix opens a stream to a Unix socket on the remote host.
	DialUnix(path string) (net.Conn, error)

	// Host returns the alias or address that was dialed.
	Host() string

	Close() error
}
