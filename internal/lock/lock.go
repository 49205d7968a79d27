// Package lock serializes attach handshakes against the same process.
//
// Two teleop instances signalling one process at the same time would both
// wait on a socket that only one handshake opens. The lock is a file created
// with O_EXCL next to the process socket; it carries a LockInfo so a lock
// left behind by a crashed holder can be recognized and broken.
package lock

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rileyhilliard/teleop/internal/errors"
)

const (
	// DefaultStale is how long a lock may be held before it is broken even
	// though the holder is alive.
	DefaultStale = time.Minute

	// DefaultRetryEvery is how often Acquire rechecks a held lock.
	DefaultRetryEvery = 50 * time.Millisecond
)

// Config controls Acquire.
type Config struct {
	Timeout    time.Duration
	Stale      time.Duration
	RetryEvery time.Duration
}

func (c Config) retryEvery() time.Duration {
	if c.RetryEvery <= 0 {
		return DefaultRetryEvery
	}
	return c.RetryEvery
}

// Lock is a held attach lock.
type Lock struct {
	Path string
	Info *LockInfo
}

// Path returns the lock file for target inside dir.
func Path(dir string, target int) string {
	return filepath.Join(dir, fmt.Sprintf(".attach_pid%d.lock", target))
}

// Acquire takes the attach lock for target in dir, waiting up to
// cfg.Timeout for another holder to release it. Stale locks are removed.
// Cancelling ctx ends the wait with ctx.Err().
func Acquire(ctx context.Context, dir string, target int, cfg Config) (*Lock, error) {
	path := Path(dir, target)
	deadline := time.Now().Add(cfg.Timeout)
	retry := time.NewTicker(cfg.retryEvery())
	defer retry.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		l, err := TryAcquire(dir, target, cfg.Stale)
		if err == nil {
			return l, nil
		}
		if !stderrors.Is(err, ErrLocked) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, errors.New(errors.ErrConnect,
				fmt.Sprintf("Timed out waiting for the attach lock on process %d", target),
				fmt.Sprintf("Lock held by %s. Remove %s if that process is gone", Holder(path), path))
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-retry.C:
		}
	}
}

// TryAcquire takes the lock without waiting. It returns ErrLocked when a
// live holder owns it.
func TryAcquire(dir string, target int, stale time.Duration) (*Lock, error) {
	path := Path(dir, target)
	info := NewLockInfo(target)
	data, err := info.Marshal()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConnect, "Failed to encode lock info", "")
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			_, werr := f.Write(data)
			cerr := f.Close()
			if werr == nil {
				werr = cerr
			}
			if werr != nil {
				_ = os.Remove(path)
				return nil, errors.WrapWithCode(werr, errors.ErrConnect,
					fmt.Sprintf("Failed to write attach lock %s", path),
					"Check transport.socket_dir is writable")
			}
			return &Lock{Path: path, Info: info}, nil
		}
		if !stderrors.Is(err, fs.ErrExist) {
			return nil, errors.WrapWithCode(err, errors.ErrConnect,
				fmt.Sprintf("Can't create attach lock %s", path),
				"Check transport.socket_dir is writable")
		}
		if !isStale(path, stale) {
			return nil, ErrLocked
		}
		_ = os.Remove(path)
	}
	return nil, ErrLocked
}

// Release removes the lock file. Releasing a nil lock is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.Path == "" {
		return nil
	}
	if err := os.Remove(l.Path); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Holder describes who holds the lock at path.
func Holder(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "unknown"
	}
	info, err := ParseLockInfo(data)
	if err != nil {
		return "unknown"
	}
	return info.String()
}

// isStale treats an unreadable lock as stale only once it is older than
// threshold, so a holder still writing its info is not broken.
func isStale(path string, threshold time.Duration) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return stderrors.Is(err, fs.ErrNotExist)
	}
	info, err := ParseLockInfo(data)
	if err != nil {
		st, serr := os.Stat(path)
		return serr == nil && threshold > 0 && time.Since(st.ModTime()) > threshold
	}
	return info.Stale(threshold)
}
