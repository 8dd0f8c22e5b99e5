package io

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// FileLock is an exclusive advisory lock guarding a single output file, so two
// processes never write the same blob at the same time. The lock lives in a
// sibling file named "<file>.lock".
type FileLock struct {
	lockFile *flock.Flock
	path     string
}

// NewFileLock creates a lock for the given file. The lock is not acquired yet.
func NewFileLock(file string) *FileLock {
	lockPath := file + ".lock"
	return &FileLock{
		lockFile: flock.New(lockPath),
		path:     lockPath,
	}
}

// Lock acquires the lock without blocking. It fails if another process holds it.
func (fl *FileLock) Lock() error {
	dir := filepath.Dir(fl.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory for lock file %s: %w", fl.path, err)
	}

	locked, err := fl.lockFile.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire file lock at %s: %w", fl.path, err)
	}
	if !locked {
		return fmt.Errorf("cannot acquire exclusive lock on %s: another process is writing the same file", fl.path)
	}
	return nil
}

// Unlock releases the lock. The lock file stays, removing it would let a
// waiting process lock an unlinked file while a third one creates a new one.
func (fl *FileLock) Unlock() error {
	if err := fl.lockFile.Unlock(); err != nil {
		return fmt.Errorf("failed to release file lock at %s: %w", fl.path, err)
	}
	return nil
}

// Path returns the path to the lock file.
func (fl *FileLock) Path() string {
	return fl.path
}

// IsLocked returns true if another process currently holds the lock.
func (fl *FileLock) IsLocked() bool {
	probe := flock.New(fl.path)
	locked, err := probe.TryLock()
	if err != nil {
		return true
	}
	if locked {
		_ = probe.Unlock()
		return false
	}
	return true
}

// RemoveLockFile removes the lock file guarding file, if it exists. Only call
// it when no process can hold or be waiting for the lock.
func RemoveLockFile(file string) error {
	lockPath := file + ".lock"
	if !FileExists(lockPath) {
		return nil
	}
	return os.Remove(lockPath)
}
