package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

const (
	// defaultLockTimeout bounds the total wait for an advisory lock.
	defaultLockTimeout = 5 * time.Second

	lockMaxRetries   = 3
	lockBackoffStart = 100 * time.Millisecond
	lockBackoffCap   = 500 * time.Millisecond

	// lockPollInterval is the retry cadence of the final blocking attempt.
	lockPollInterval = 50 * time.Millisecond
)

// ErrLockTimeout reports that an advisory lock could not be acquired within
// the timeout. It is distinct from decode failures so callers can choose to
// retry or degrade.
var ErrLockTimeout = errors.New("file lock timeout")

// acquireLock acquires an advisory lock on path. It first makes
// lockMaxRetries non-blocking attempts with capped exponential backoff,
// then one blocking attempt bounded by whatever remains of the timeout.
// The caller must Unlock the returned lock on every exit path.
func acquireLock(path string, exclusive bool, timeout time.Duration) (*flock.Flock, error) {
	if timeout <= 0 {
		timeout = defaultLockTimeout
	}

	fl := flock.New(path)
	try := fl.TryRLock
	if exclusive {
		try = fl.TryLock
	}

	start := time.Now()
	for attempt := 0; attempt < lockMaxRetries; attempt++ {
		locked, err := try()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLockTimeout, err)
		}
		if locked {
			return fl, nil
		}

		if time.Since(start) >= timeout {
			return nil, fmt.Errorf("%w: %s after %s", ErrLockTimeout, path, timeout)
		}
		wait := lockBackoffStart << attempt
		if wait > lockBackoffCap {
			wait = lockBackoffCap
		}
		time.Sleep(wait)
	}

	remaining := timeout - time.Since(start)
	if remaining <= 0 {
		return nil, fmt.Errorf("%w: %s after %s", ErrLockTimeout, path, timeout)
	}

	ctx, cancel := context.WithTimeout(context.Background(), remaining)
	defer cancel()

	tryCtx := fl.TryRLockContext
	if exclusive {
		tryCtx = fl.TryLockContext
	}
	locked, err := tryCtx(ctx, lockPollInterval)
	if err != nil || !locked {
		return nil, fmt.Errorf("%w: %s after %d retries", ErrLockTimeout, path, lockMaxRetries)
	}
	return fl, nil
}
