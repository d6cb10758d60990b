package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"
)

// ErrAlreadyRunning is returned by CreateMutex while another live instance holds the lock
var ErrAlreadyRunning = errors.New("another instance of obsdeck is running")

// Mutex is a pid lockfile guarding against a second instance
type Mutex struct {
	path string
}

// CreateMutex takes <dir>/<name>.lock. A lockfile left behind by a dead process
// is taken over.
func CreateMutex(dir, name string) (*Mutex, error) {
	lockFile := filepath.Join(dir, name+".lock")
	currentPid := os.Getpid()

	lockContent, err := os.ReadFile(lockFile)
	if err == nil {
		lockPid, convErr := strconv.Atoi(strings.TrimSpace(string(lockContent)))
		if convErr == nil && lockPid != currentPid {
			process, findErr := ps.FindProcess(lockPid)
			if findErr == nil && process != nil {
				return nil, fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, lockPid)
			}
		}
	}

	if err := os.WriteFile(lockFile, []byte(strconv.Itoa(currentPid)), 0664); err != nil {
		return nil, fmt.Errorf("write lockfile: %w", err)
	}

	return &Mutex{path: lockFile}, nil
}

// Release removes the lockfile
func (m *Mutex) Release() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lockfile: %w", err)
	}

	return nil
}
