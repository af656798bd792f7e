// Package lockfile keeps two servers from sharing one data directory.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrLocked is returned by TryAcquire while a live process holds the lock.
var ErrLocked = errors.New("data directory is in use")

// Holder describes the process recorded in a lock file.
type Holder struct {
	PID   int
	Owner string // free-form, e.g. the listen address
	Since time.Time
}

func (h Holder) String() string {
	s := fmt.Sprintf("pid %d", h.PID)
	if h.Owner != "" {
		s += " (" + h.Owner + ")"
	}
	if !h.Since.IsZero() {
		s += " since " + h.Since.Format(time.RFC3339)
	}
	return s
}

// Lockfile represents a file-based lock
type Lockfile struct {
	path   string
	file   *os.File
	holder Holder
	locked bool
}

// New creates a new lockfile instance
func New(path string) *Lockfile {
	return &Lockfile{path: path}
}

// TryAcquire takes the lock for this process, recording owner in the file.
// A lock left behind by a process that no longer runs is replaced.
func (l *Lockfile) TryAcquire(owner string) error {
	if l.locked {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lockfile directory: %w", err)
	}

	file, err := l.create()
	if os.IsExist(err) {
		held, readErr := Read(l.path)
		if readErr == nil && isProcessRunning(held.PID) {
			return fmt.Errorf("%w: held by %s", ErrLocked, held)
		}
		// Unreadable or dead holder.
		if removeErr := os.Remove(l.path); removeErr != nil && !os.IsNotExist(removeErr) {
			return fmt.Errorf("failed to remove stale lockfile: %w", removeErr)
		}
		file, err = l.create()
	}
	if err != nil {
		return fmt.Errorf("failed to create lockfile: %w", err)
	}

	l.file = file
	l.locked = true
	l.holder = Holder{PID: os.Getpid(), Owner: owner, Since: time.Now().Truncate(time.Second)}

	content := fmt.Sprintf("%d\n%s\n%s\n", l.holder.PID, l.holder.Since.Format(time.RFC3339), owner)
	if _, err := l.file.WriteString(content); err != nil {
		l.Release()
		return fmt.Errorf("failed to write to lockfile: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		l.Release()
		return fmt.Errorf("failed to sync lockfile: %w", err)
	}
	return nil
}

func (l *Lockfile) create() (*os.File, error) {
	return os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
}

// Read parses the lock file at path.
func Read(path string) (Holder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Holder{}, err
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil || pid <= 0 {
		return Holder{}, fmt.Errorf("invalid PID in lockfile %s", path)
	}

	h := Holder{PID: pid}
	if len(lines) > 1 {
		h.Since, _ = time.Parse(time.RFC3339, strings.TrimSpace(lines[1]))
	}
	if len(lines) > 2 {
		h.Owner = strings.TrimSpace(lines[2])
	}
	return h, nil
}

// Release releases the lock
func (l *Lockfile) Release() error {
	if !l.locked {
		return nil
	}

	var errs []error
	if l.file != nil {
		errs = append(errs, l.file.Close())
		l.file = nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("failed to remove lockfile: %w", err))
	}

	l.locked = false
	return errors.Join(errs...)
}

// Holder returns this process's lock record while the lock is held.
func (l *Lockfile) Holder() Holder {
	return l.holder
}

// Locked returns true if the lock is held
func (l *Lockfile) Locked() bool {
	return l.locked
}

// Path returns the lockfile path
func (l *Lockfile) Path() string {
	return l.path
}
