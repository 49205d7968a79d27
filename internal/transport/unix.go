package transport

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/rileyhilliard/teleop/internal/errors"
	"github.com/rileyhilliard/teleop/internal/lock"
	"github.com/rileyhilliard/teleop/internal/logger"
	"golang.org/x/sys/unix"
)

// DefaultPollEvery is how often the attach handshake checks for the socket.
const DefaultPollEvery = 100 * time.Millisecond

// UnixDialer reaches processes on this machine.
type UnixDialer struct {
	Dir           string
	AttachTimeout time.Duration
	PollEvery     time.Duration

	signal func(pid int, sig unix.Signal) error
	log    logger.Logger
}

var _ Dialer = (*UnixDialer)(nil)

// NewUnixDialer creates a dialer for sockets in dir.
func NewUnixDialer(dir string, attachTimeout time.Duration, log logger.Logger) *UnixDialer {
	if log == nil {
		log = logger.Noop()
	}
	return &UnixDialer{
		Dir:           dir,
		AttachTimeout: attachTimeout,
		PollEvery:     DefaultPollEvery,
		signal:        unix.Kill,
		log:           log,
	}
}

// Dial connects to the socket of pid, running the attach handshake first
// when the socket does not exist yet.
func (d *UnixDialer) Dial(ctx context.Context, pid int) (io.ReadWriteCloser, error) {
	if err := validPID(pid); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConnect, "Can't attach", "Pass the pid of a running pipeline process")
	}

	socket := SocketPath(d.Dir, pid)
	if _, err := os.Stat(socket); err != nil {
		if err := d.attach(ctx, pid, socket); err != nil {
			return nil, err
		}
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", socket)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.WrapWithCode(err, errors.ErrConnect,
			fmt.Sprintf("Can't connect to process %d", pid),
			"Check the process is still running: teleop list")
	}
	d.log.Debug("connected to %s", socket)
	return conn, nil
}

func (d *UnixDialer) attach(ctx context.Context, pid int, socket string) error {
	if err := d.signal(pid, 0); err != nil && !stderrors.Is(err, unix.EPERM) {
		return errors.WrapWithCode(err, errors.ErrConnect,
			fmt.Sprintf("Process %d is not running", pid),
			"Run 'teleop list' to see running pipeline processes")
	}

	held, err := lock.Acquire(ctx, d.Dir, pid, lock.Config{Timeout: d.AttachTimeout, Stale: lock.DefaultStale})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	defer held.Release()

	// Another instance may have finished the handshake while we waited.
	if _, err := os.Stat(socket); err == nil {
		return nil
	}

	marker := AttachPath(d.Dir, pid)
	f, err := os.OpenFile(marker, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConnect,
			fmt.Sprintf("Can't create attach marker %s", marker),
			"Check transport.socket_dir is writable")
	}
	_ = f.Close()
	defer os.Remove(marker)

	d.log.Debug("attaching to pid %d", pid)
	if err := d.signal(pid, unix.SIGQUIT); err != nil {
		return errors.WrapWithCode(err, errors.ErrConnect,
			fmt.Sprintf("Can't signal process %d", pid),
			"Check you own the process")
	}

	if err := waitForFile(ctx, socket, d.AttachTimeout, d.pollEvery()); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.WrapWithCode(err, errors.ErrConnect,
			fmt.Sprintf("Process %d did not open its socket", pid),
			"Make sure the process was started with remote observation enabled")
	}
	return nil
}

func (d *UnixDialer) pollEvery() time.Duration {
	if d.PollEvery <= 0 {
		return DefaultPollEvery
	}
	return d.PollEvery
}

// waitForFile polls until path exists, ctx ends or timeout elapses.
func waitForFile(ctx context.Context, path string, timeout, every time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%s did not appear within %s", path, timeout)
		case <-ticker.C:
		}
	}
}
