package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rileyhilliard/teleop/internal/errors"
	"github.com/rileyhilliard/teleop/internal/logger"
	"github.com/rileyhilliard/teleop/internal/util"
	"github.com/rileyhilliard/teleop/pkg/sshutil"
)

// Connector opens an SSH connection to the first reachable target.
type Connector func(ctx context.Context, targets []string) (sshutil.Remote, error)

// DialSSH is the Connector backed by real SSH connections.
func DialSSH(ctx context.Context, targets []string) (sshutil.Remote, error) {
	client, err := sshutil.DialFirst(ctx, targets)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// SSHDialer reaches processes on a remote host by forwarding their Unix
// socket over SSH. Every Dial opens its own SSH connection, which the
// returned stream closes.
type SSHDialer struct {
	Name          string
	Targets       []string
	Dir           string
	AttachTimeout time.Duration

	connect Connector
	log     logger.Logger
}

var _ Dialer = (*SSHDialer)(nil)

// NewSSHDialer creates a dialer for the host called name, reachable through
// targets, with sockets in dir on the remote side.
func NewSSHDialer(name string, targets []string, dir string, attachTimeout time.Duration, connect Connector, log logger.Logger) *SSHDialer {
	if connect == nil {
		connect = DialSSH
	}
	if log == nil {
		log = logger.Noop()
	}
	return &SSHDialer{
		Name:          name,
		Targets:       targets,
		Dir:           dir,
		AttachTimeout: attachTimeout,
		connect:       connect,
		log:           log,
	}
}

// Dial forwards the socket of pid, attaching first if it is missing.
func (d *SSHDialer) Dial(ctx context.Context, pid int) (io.ReadWriteCloser, error) {
	if err := validPID(pid); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConnect, "Can't attach", "Pass the pid of a running pipeline process")
	}

	remote, err := d.connect(ctx, d.Targets)
	if err != nil {
		return nil, err
	}

	socket := SocketPath(d.Dir, pid)
	conn, err := remote.DialUnix(socket)
	if err != nil {
		d.log.Debug("%s: %v, attaching", d.Name, err)
		if err := d.attach(ctx, remote, pid); err != nil {
			_ = remote.Close()
			return nil, err
		}
		conn, err = remote.DialUnix(socket)
		if err != nil {
			_ = remote.Close()
			return nil, errors.WrapWithCode(err, errors.ErrConnect,
				fmt.Sprintf("Can't connect to process %d on %s", pid, d.Name),
				"Check the process is still running: teleop list --host "+d.Name)
		}
	}

	return &remoteStream{Conn: conn, remote: remote}, nil
}

// attachScript runs the handshake remotely. Exit codes: 2 marker not
// writable, 3 signal failed, 4 timed out.
func attachScript(dir string, pid int, timeout time.Duration) string {
	tries := int(timeout / DefaultPollEvery)
	if tries < 1 {
		tries = 1
	}
	socket := util.ShellQuote(SocketPath(dir, pid))
	marker := util.ShellQuote(AttachPath(dir, pid))
	return fmt.Sprintf(
		`[ -S %[1]s ] && exit 0; touch %[2]s || exit 2; `+
			`kill -QUIT %[3]d || { rm -f %[2]s; exit 3; }; `+
			`i=0; while [ $i -lt %[4]d ]; do [ -S %[1]s ] && { rm -f %[2]s; exit 0; }; sleep 0.1; i=$((i+1)); done; `+
			`rm -f %[2]s; exit 4`,
		socket, marker, pid, tries)
}

func (d *SSHDialer) attach(ctx context.Context, remote sshutil.Remote, pid int) error {
	_, stderr, code, err := remote.Exec(ctx, attachScript(d.Dir, pid, d.AttachTimeout))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}

	var reason string
	switch code {
	case 0:
		return nil
	case 2:
		reason = "Can't create the attach marker in " + d.Dir
	case 3:
		reason = fmt.Sprintf("Process %d is not running or can't be signalled", pid)
	case 4:
		reason = fmt.Sprintf("Process %d did not open its socket", pid)
	default:
		reason = fmt.Sprintf("Attach script exited with status %d", code)
	}
	return errors.WrapWithCode(fmt.Errorf("%s", strings.TrimSpace(string(stderr))), errors.ErrConnect,
		reason+" on "+d.Name, "Run 'teleop list --host "+d.Name+"' to see running pipeline processes")
}

// discoverScript prints "<pid>\t<cmdline>" for every live socket.
func discoverScript(dir string) string {
	return fmt.Sprintf(
		`for f in %s/%s*; do [ -e "$f" ] || continue; p=${f##*%s}; `+
			`kill -0 "$p" 2>/dev/null || continue; `+
			`printf '%%s\t%%s\n' "$p" "$(tr '\0' ' ' < /proc/$p/cmdline 2>/dev/null)"; done`,
		util.ShellQuote(dir), socketPrefix, socketPrefix)
}

// Discover lists live processes on the remote host.
func (d *SSHDialer) Discover(ctx context.Context) ([]Process, error) {
	remote, err := d.connect(ctx, d.Targets)
	if err != nil {
		return nil, err
	}
	defer remote.Close()

	stdout, stderr, code, err := remote.Exec(ctx, discoverScript(d.Dir))
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, errors.New(errors.ErrExec,
			fmt.Sprintf("Listing processes on %s failed (exit %d): %s", d.Name, code, strings.TrimSpace(string(stderr))),
			"Check transport.socket_dir for this host")
	}
	return parseRemoteListing(d.Name, d.Dir, stdout), nil
}

func parseRemoteListing(host, dir string, out []byte) []Process {
	var procs []Process
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		pidText, command, _ := strings.Cut(scanner.Text(), "\t")
		pid, err := strconv.Atoi(strings.TrimSpace(pidText))
		if err != nil || pid <= 0 {
			continue
		}
		procs = append(procs, Process{
			PID:     pid,
			Socket:  SocketPath(dir, pid),
			Command: strings.TrimSpace(command),
			Host:    host,
		})
	}
	return procs
}

// remoteStream closes the SSH connection together with the forwarded socket.
type remoteStream struct {
	net.Conn
	remote sshutil.Remote
	once   sync.Once
}

func (s *remoteStream) Close() error {
	err := s.Conn.Close()
	s.once.Do(func() {
		if cerr := s.remote.Close(); err == nil {
			err = cerr
		}
	})
	return err
}
