package runtime

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// execute a shell and return its pid. On return, the child should had finished
func getDeadProcessPid() string {
	ls := exec.Command("sh", "-c", "cat /proc/self/stat | cut -d' ' -f 1")
	pid, err := ls.Output()
	if err != nil {
		panic("")
	}

	return string(pid)
}

// writeLockFile creates a lock file at the given path holding the given owner pid
func writeLockFile(t *testing.T, path string, ownerPid string) {
	t.Helper()

	lockFile, err := os.Create(path)
	if err != nil {
		t.Fatalf("error in test setup: %v", err)
	}

	_, err = lockFile.WriteString(ownerPid)
	if err != nil {
		t.Fatalf("error in test setup: %v", err)
	}
}

func Test_Acquire(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		title       string
		createLock  bool
		ownerPid    string
		expectError bool
		acquired    bool
	}{
		{
			title:       "lock does not exist",
			createLock:  false,
			ownerPid:    "",
			expectError: false,
			acquired:    true,
		},
		{
			title:       "lock with empty owner",
			createLock:  true,
			ownerPid:    "",
			expectError: false,
			acquired:    true,
		},
		{
			title:       "process is already owner",
			createLock:  true,
			ownerPid:    fmt.Sprintf("%d", os.Getpid()),
			expectError: false,
			acquired:    true,
		},
		{
			title:       "lock with other running owner",
			createLock:  true,
			ownerPid:    fmt.Sprintf("%d", os.Getppid()),
			expectError: false,
			acquired:    false,
		},
		{
			title:       "lock with owner not running",
			createLock:  true,
			ownerPid:    getDeadProcessPid(),
			expectError: false,
			acquired:    true,
		},
	}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.title, func(t *testing.T) {
			t.Parallel()

			testLock := filepath.Join(t.TempDir(), "test-lockfile")
			if tc.createLock {
				writeLockFile(t, testLock, tc.ownerPid)
			}

			lock := NewFileLock(testLock)

			acquired, err := lock.Acquire()
			if err != nil && !tc.expectError {
				t.Fatalf("failed: %v", err)
			}

			if tc.expectError && err == nil {
				t.Fatalf("should had failed")
			}

			if acquired != tc.acquired {
				t.Errorf("expected acquired %t got %t", tc.acquired, acquired)
			}
		})
	}
}

func Test_Release(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		title       string
		createLock  bool
		ownerPid    string
		expectError bool
	}{
		{
			title:       "process is owner",
			createLock:  true,
			ownerPid:    fmt.Sprintf("%d", os.Getpid()),
			expectError: false,
		},
		{
			title:       "lock does not exist",
			createLock:  false,
			ownerPid:    "",
			expectError: true,
		},
		{
			title:       "lock with empty owner",
			createLock:  true,
			ownerPid:    "",
			expectError: true,
		},
		{
			title:       "lock with other owner",
			createLock:  true,
			ownerPid:    fmt.Sprintf("%d", os.Getppid()),
			expectError: true,
		},
	}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.title, func(t *testing.T) {
			t.Parallel()

			testLock := filepath.Join(t.TempDir(), "test-lockfile")
			if tc.createLock {
				writeLockFile(t, testLock, tc.ownerPid)
			}

			lock := NewFileLock(testLock)

			err := lock.Release()
			if tc.expectError && err == nil {
				t.Fatalf("should had failed")
			}

			if !tc.expectError && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func Test_Owner(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		title      string
		createLock bool
		ownerPid   string
		expected   int
	}{
		{
			title:      "process is owner",
			createLock: true,
			ownerPid:   fmt.Sprintf("%d", os.Getpid()),
			expected:   os.Getpid(),
		},
		{
			title:      "lock does not exist",
			createLock: false,
			ownerPid:   "",
			expected:   -1,
		},
		{
			title:      "lock with empty owner",
			createLock: true,
			ownerPid:   "",
			expected:   -1,
		},
		{
			title:      "lock with other owner",
			createLock: true,
			ownerPid:   fmt.Sprintf("%d", os.Getppid()),
			expected:   os.Getppid(),
		},
	}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.title, func(t *testing.T) {
			t.Parallel()

			testLock := filepath.Join(t.TempDir(), "test-lockfile")
			if tc.createLock {
				writeLockFile(t, testLock, tc.ownerPid)
			}

			lock := NewFileLock(testLock)

			owner := lock.Owner()
			if owner != tc.expected {
				t.Errorf("expected %d got: %d", tc.expected, owner)
			}
		})
	}
}
