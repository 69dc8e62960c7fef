package daemon

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// AcquireLock takes an advisory lock on .pensa/pensa.lock so a second
// `pn daemon` invocation against the same project detects the live
// daemon and exits cleanly instead of racing to bind the same port.
func AcquireLock(projectDir string) (*flock.Flock, error) {
	lockPath := filepath.Join(projectDir, ".pensa", "pensa.lock")
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire daemon lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("a daemon is already running for this project (%s is locked)", lockPath)
	}
	return lock, nil
}
