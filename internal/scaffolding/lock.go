package scaffolding

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/conneroisu/peek/internal/errors"
)

// LockFile is the name of the single-instance lock inside the state directory.
const LockFile = "peek.lock"

// Lock guards a project against concurrent peek sessions.
type Lock struct {
	path string
	lock *flock.Flock
}

// LockPath returns the lock file used for the project at root.
func LockPath(root string) string {
	return filepath.Join(root, ".peek", LockFile)
}

// Acquire takes the project lock without blocking. It fails with
// ErrCodeLocked when another session holds it.
func Acquire(root string) (*Lock, error) {
	path := LockPath(root)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.FileOperationError("MKDIR", filepath.Dir(path), "creating state directory", err)
	}

	l := &Lock{path: path, lock: flock.New(path)}
	ok, err := l.lock.TryLock()
	if err != nil {
		return nil, errors.FileOperationError("LOCK", path, "acquiring lock", err)
	}
	if !ok {
		return nil, errors.BootstrapError(errors.ErrCodeLocked,
			"another peek session is already running for this project", nil).
			WithLocation(path, 0, 0)
	}
	return l, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release drops the lock.
func (l *Lock) Release() error {
	return l.lock.Unlock()
}
