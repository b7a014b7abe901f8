package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

var ErrAlreadyRunning = errors.New("another boothqr instance is already running")

const lockFileName = "boothqr.lock"

// instanceLock keeps two daemons from sharing one state dir (and so one
// watch folder and history file).
type instanceLock struct {
	path string
	fl   *flock.Flock
}

func newInstanceLock(stateDir string) *instanceLock {
	path := filepath.Join(stateDir, lockFileName)
	return &instanceLock{path: path, fl: flock.New(path)}
}

func (l *instanceLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	ok, err := l.fl.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, l.path)
	}
	return nil
}

func (l *instanceLock) Release() error {
	if !l.fl.Locked() {
		return nil
	}
	return l.fl.Unlock()
}
