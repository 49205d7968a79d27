package doctor

import (
	"context"
	"fmt"
	"os"

	"github.com/rileyhilliard/teleop/internal/transport"
	"github.com/rileyhilliard/teleop/internal/util"
	"golang.org/x/sys/unix"
)

// SocketDirCheck verifies the local socket directory is usable and reports
// how many processes are observable in it.
type SocketDirCheck struct {
	Dir string

	discover func(dir string) ([]transport.Process, error)
}

// NewSocketDirCheck checks dir.
func NewSocketDirCheck(dir string) *SocketDirCheck {
	return &SocketDirCheck{Dir: dir, discover: transport.Discover}
}

func (c *SocketDirCheck) Name() string     { return "socket_dir" }
func (c *SocketDirCheck) Category() string { return CategoryTransport }

func (c *SocketDirCheck) Run(context.Context) CheckResult {
	info, err := os.Stat(c.Dir)
	if err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    fmt.Sprintf("Socket directory %s: %v", c.Dir, err),
			Suggestion: "Set transport.socket_dir to the directory pipeline processes use",
		}
	}
	if !info.IsDir() {
		return CheckResult{
			Status:     StatusFail,
			Message:    fmt.Sprintf("Socket directory %s is not a directory", c.Dir),
			Suggestion: "Set transport.socket_dir to the directory pipeline processes use",
		}
	}

	procs, err := c.discover(c.Dir)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("Can't list %s: %v", c.Dir, err),
		}
	}

	// The attach handshake creates a trigger file next to the sockets.
	if err := unix.Access(c.Dir, unix.W_OK); err != nil {
		return CheckResult{
			Status:     StatusWarn,
			Message:    fmt.Sprintf("%s is not writable; only already attached processes can be watched", c.Dir),
			Suggestion: "Fix the directory permissions or choose another transport.socket_dir",
		}
	}

	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s: %s", c.Dir, util.Count(len(procs), "observable process", "observable processes")),
	}
}

