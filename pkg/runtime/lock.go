package runtime

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// Lock guards against concurrent executions of the process. Two harness
// instances manipulating the same network interface would corrupt each
// other's rules, so only the lock owner may run.
type Lock interface {
	// Acquire tries to acquire the execution lock.
	// Returns false if the lock is already held by another live process.
	Acquire() (bool, error)
	// Release releases the execution lock
	Release() error
	// Owner returns the pid of the process holding the lock, or -1 if
	// the lock is not held
	Owner() int
}

// filelock maintains the state of a file based lock
type filelock struct {
	path string
}

// DefaultLock creates a Lock for the currently running process, named after
// the binary and placed in the user's runtime directory.
func DefaultLock() Lock {
	name := filepath.Base(os.Args[0])

	lockDir := os.Getenv("XDG_RUNTIME_DIR")
	if lockDir == "" {
		lockDir = os.TempDir()
	}

	return &filelock{
		path: filepath.Join(lockDir, name),
	}
}

// NewFileLock returns a file lock for the given path
func NewFileLock(path string) Lock {
	return &filelock{
		path: path,
	}
}

// Acquire creates a temporary file holding the pid and links it to the lock
// path. The hard link fails atomically if another process got there first;
// a stale lock left by a dead owner is removed and acquisition retried once.
func (l *filelock) Acquire() (bool, error) {
	tempLock, err := createTempLock(l.path)
	if err != nil {
		return false, err
	}

	defer func() {
		tempLockFile, errDefer := os.Stat(tempLock)
		if os.IsNotExist(errDefer) {
			return
		}
		if errDefer != nil {
			panic("unexpected error cleaning up lock file")
		}

		lockFile, errDefer := os.Stat(l.path)
		// if the lock was not created or we did not acquire the lock, remove the temp lock
		if os.IsNotExist(errDefer) || !os.SameFile(lockFile, tempLockFile) {
			_ = os.Remove(tempLock)
		}
	}()

	err = os.Link(tempLock, l.path)

	// some other process already owns the lock, check it is a legit one
	if os.IsExist(err) {
		owner, errOwner := getOwner(l.path)
		if errOwner != nil {
			return false, fmt.Errorf("could not get lock owner: %w", errOwner)
		}

		if owner == os.Getpid() {
			return true, nil
		}

		if isAlive(owner) {
			return false, nil
		}

		// owner is not alive, remove the stale lock and try again
		err = os.Remove(l.path)
		if err != nil {
			return false, err
		}
		err = os.Link(tempLock, l.path)
	}

	if err != nil {
		return false, err
	}

	return true, nil
}

// Release releases the ownership of the lock.
// Returns an error if the invoking process is not the current owner.
func (l *filelock) Release() error {
	owner, err := getOwner(l.path)
	if err != nil {
		return err
	}

	if owner != os.Getpid() {
		return fmt.Errorf("process is not owner of lock file")
	}

	return os.Remove(l.path)
}

// Owner returns the pid recorded in the lock file, or -1 if the lock does
// not exist or holds no valid pid.
func (l *filelock) Owner() int {
	owner, err := getOwner(l.path)
	if err != nil {
		return -1
	}

	return owner
}

// getOwner returns the owner of the lockfile.
// Returns -1 if the owner is invalid (e.g. the file is empty)
func getOwner(path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return -1, err
	}

	if len(content) == 0 {
		return -1, nil
	}

	var pid int
	_, err = fmt.Sscanf(string(content), "%d", &pid)
	if err != nil {
		//nolint:nilerr  // return value -1 covers the case of an unparsable pid
		return -1, nil
	}

	return pid, nil
}

// isAlive checks if the process with the given pid is running.
// A non-existing process (-1) is considered not running.
func isAlive(pid int) bool {
	if pid == -1 {
		return false
	}
	// get process, ignore error it is always nil
	process, _ := os.FindProcess(pid)

	// send fake signal just to check if process exists
	err := process.Signal(syscall.Signal(0))

	return err == nil
}

// createTempLock creates a temporary lock file holding the current pid
func createTempLock(path string) (string, error) {
	pid := os.Getpid()
	tempLockFile := fmt.Sprintf("%s.%d", path, pid)
	tempLock, err := os.Create(tempLockFile)
	if err != nil {
		return "", err
	}

	_, err = io.WriteString(tempLock, fmt.Sprintf("%d", pid))
	if err != nil {
		_ = tempLock.Close()
		_ = os.Remove(tempLockFile)
		return "", err
	}

	if err := tempLock.Close(); err != nil {
		_ = os.Remove(tempLockFile)
		return "", err
	}

	return tempLockFile, nil
}
