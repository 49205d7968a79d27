package transport

import (
	"bytes"
	stderrors "errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rileyhilliard/teleop/internal/errors"
	"golang.org/x/sys/unix"
)

// Discover lists processes with a live socket in dir. Sockets left behind
// by processes that exited are skipped.
func Discover(dir string) ([]Process, error) {
	return discover(dir, processAlive, processCommand)
}

func discover(dir string, alive func(int) bool, command func(int) string) ([]Process, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConnect,
			"Can't read socket directory "+dir,
			"Check transport.socket_dir in your .teleop.yaml")
	}

	var procs []Process
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		pid, ok := ParseSocketName(e.Name())
		if !ok || !alive(pid) {
			continue
		}
		procs = append(procs, Process{
			PID:     pid,
			Socket:  filepath.Join(dir, e.Name()),
			Command: command(pid),
		})
	}

	sort.Slice(procs, func(i, j int) bool { return procs[i].PID < procs[j].PID })
	return procs, nil
}

func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || stderrors.Is(err, unix.EPERM)
}

// processCommand reads /proc/<pid>/cmdline. It returns "" where procfs is
// not available.
func processCommand(pid int) string {
	raw, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "cmdline"))
	if err != nil {
		return ""
	}
	return formatCmdline(raw)
}

func formatCmdline(raw []byte) string {
	raw = bytes.TrimRight(raw, "\x00")
	return strings.TrimSpace(string(bytes.ReplaceAll(raw, []byte{0}, []byte{' '})))
}
