package lock

import (
	"os"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"golang.org/x/sys/unix"
)

// LockInfo describes the teleop process holding an attach lock.
type LockInfo struct {
	User     string    `json:"user"`
	Hostname string    `json:"hostname"`
	Started  time.Time `json:"started"`
	PID      int       `json:"pid"`
	Target   int       `json:"target"`
}

// NewLockInfo describes the current process attaching to target.
func NewLockInfo(target int) *LockInfo {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	user := os.Getenv("USER")
	if user == "" {
		user = "unknown"
	}
	return &LockInfo{
		User:     user,
		Hostname: hostname,
		Started:  time.Now(),
		PID:      os.Getpid(),
		Target:   target,
	}
}

// Age returns how long ago the lock was taken.
func (i *LockInfo) Age() time.Duration {
	return time.Since(i.Started)
}

// Alive reports whether the holder process still exists on this machine.
// A holder on another host is assumed alive.
func (i *LockInfo) Alive() bool {
	if i.PID <= 0 {
		return false
	}
	if hostname, err := os.Hostname(); err == nil && i.Hostname != hostname {
		return true
	}
	err := unix.Kill(i.PID, 0)
	return err == nil || err == unix.EPERM
}

// Stale reports whether the lock can be broken: the holder is gone, or it
// has been held longer than threshold. A zero threshold disables the age
// check.
func (i *LockInfo) Stale(threshold time.Duration) bool {
	if !i.Alive() {
		return true
	}
	return threshold > 0 && i.Age() > threshold
}

// Marshal encodes the info as JSON.
func (i *LockInfo) Marshal() ([]byte, error) {
	return sonic.Marshal(i)
}

// ParseLockInfo decodes JSON written by Marshal.
func ParseLockInfo(data []byte) (*LockInfo, error) {
	var info LockInfo
	if err := sonic.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (i *LockInfo) String() string {
	return i.User + "@" + i.Hostname + " (pid " + strconv.Itoa(i.PID) + ")"
}
