package lock

import "errors"

// ErrLocked is returned by TryAcquire when another live process holds the
// lock.
var ErrLocked = errors.New("lock is held by another process")
