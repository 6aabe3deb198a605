package executor

import (
	"fmt"

	"github.com/gofrs/flock"

	"offload/internal/services"
)

// RunLock is the advisory file lock that keeps executions single-writer.
type RunLock struct {
	fl *flock.Flock
}

// AcquireRunLock takes the run lock without blocking. A held lock means
// another process is already executing against the same ledger.
func AcquireRunLock(path string) (*RunLock, error) {
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "execute", "run lock", fmt.Sprintf("acquire %s", path), err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrTransient, "execute", "run lock", "another run holds the lock", nil)
	}
	return &RunLock{fl: fl}, nil
}

// Release drops the lock.
func (l *RunLock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
