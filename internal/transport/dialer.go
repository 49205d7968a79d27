// Package transport opens byte streams to observed pipeline processes.
//
// A process listens on a Unix socket named .teleop_pid<pid> in a shared
// directory. If the socket is missing, the process is asked to open it: an
// .attach_pid<pid> marker is created next to where the socket will appear
// and the process receives SIGQUIT. Processes can be reached on this
// machine (UnixDialer) or on a remote one through SSH (SSHDialer).
package transport

import (
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
)

const (
	socketPrefix = ".teleop_pid"
	attachPrefix = ".attach_pid"
)

// Dialer opens the RPC stream of a pipeline process.
type Dialer interface {
	Dial(ctx context.Context, pid int) (io.ReadWriteCloser, error)
}

// Process is a discovered pipeline process.
type Process struct {
	PID     int
	Socket  string
	Command string
	Host    string // empty for local processes
}

// Title is the one-line label used by pickers and listings.
func (p Process) Title() string {
	return fmt.Sprintf("%d", p.PID)
}

// Description is the command line, or the socket path when unknown.
func (p Process) Description() string {
	if p.Command != "" {
		return p.Command
	}
	return p.Socket
}

// SocketPath is where process pid listens inside dir.
func SocketPath(dir string, pid int) string {
	return path.Join(dir, socketPrefix+strconv.Itoa(pid))
}

// AttachPath is the marker that asks process pid to open its socket.
func AttachPath(dir string, pid int) string {
	return path.Join(dir, attachPrefix+strconv.Itoa(pid))
}

// ParseSocketName returns the pid encoded in a socket file name.
func ParseSocketName(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, socketPrefix)
	if !ok || rest == "" {
		return 0, false
	}
	pid, err := strconv.Atoi(rest)
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

func validPID(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}
	return nil
}
