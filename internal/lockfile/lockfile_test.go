package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLockfile_AcquireRelease(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "data", ".bookshelf.lock")
	lock := New(lockPath)

	if err := lock.TryAcquire("127.0.0.1:7777"); err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	if !lock.Locked() {
		t.Error("Lock should be locked")
	}
	if lock.Holder().PID != os.Getpid() {
		t.Errorf("Expected PID %d, got %d", os.Getpid(), lock.Holder().PID)
	}

	held, err := Read(lockPath)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if held.PID != os.Getpid() || held.Owner != "127.0.0.1:7777" || held.Since.IsZero() {
		t.Errorf("unexpected holder %+v", held)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Failed to release lock: %v", err)
	}
	if lock.Locked() {
		t.Error("Lock should not be locked after release")
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Errorf("lockfile should be removed, stat err = %v", err)
	}

	if err := lock.TryAcquire(""); err != nil {
		t.Fatalf("Failed to acquire lock after release: %v", err)
	}
	lock.Release()
}

func TestLockfile_AlreadyLocked(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "test.lock")

	lock1 := New(lockPath)
	if err := lock1.TryAcquire(":7777"); err != nil {
		t.Fatalf("Failed to acquire first lock: %v", err)
	}
	defer lock1.Release()

	lock2 := New(lockPath)
	err := lock2.TryAcquire(":7778")
	if err == nil {
		lock2.Release()
		t.Fatal("Expected error when acquiring already held lock")
	}
	if !errors.Is(err, ErrLocked) {
		t.Errorf("Expected ErrLocked, got: %v", err)
	}
	if !strings.Contains(err.Error(), ":7777") {
		t.Errorf("error should name the holder: %v", err)
	}
}

func TestLockfile_AcquireTwiceIsNoop(t *testing.T) {
	lock := New(filepath.Join(t.TempDir(), "test.lock"))
	if err := lock.TryAcquire(""); err != nil {
		t.Fatal(err)
	}
	defer lock.Release()
	if err := lock.TryAcquire(""); err != nil {
		t.Errorf("second TryAcquire on the same instance: %v", err)
	}
}

func TestLockfile_Stale(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"dead process", fmt.Sprintf("%d\n%s\n", 99999999, time.Now().Format(time.RFC3339))},
		{"garbage", "not a pid\n"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lockPath := filepath.Join(t.TempDir(), "test.lock")
			if err := os.WriteFile(lockPath, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to create fake lockfile: %v", err)
			}

			lock := New(lockPath)
			if err := lock.TryAcquire(""); err != nil {
				t.Fatalf("Failed to acquire stale lock: %v", err)
			}
			defer lock.Release()

			held, err := Read(lockPath)
			if err != nil || held.PID != os.Getpid() {
				t.Errorf("lockfile not rewritten: %+v, %v", held, err)
			}
		})
	}
}

func TestLockfile_OldLockOfLiveProcessHolds(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "test.lock")
	content := fmt.Sprintf("%d\n%s\n", os.Getpid(), time.Now().Add(-48*time.Hour).Format(time.RFC3339))
	if err := os.WriteFile(lockPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if err := New(lockPath).TryAcquire(""); !errors.Is(err, ErrLocked) {
		t.Errorf("Expected ErrLocked for a long-running holder, got: %v", err)
	}
}

func TestLockfile_ReleaseNotLocked(t *testing.T) {
	lock := New(filepath.Join(t.TempDir(), "test.lock"))
	if err := lock.Release(); err != nil {
		t.Errorf("Expected no error when releasing unlocked lock, got: %v", err)
	}
}

func TestHolderString(t *testing.T) {
	since := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	got := Holder{PID: 42, Owner: ":7777", Since: since}.String()
	if got != "pid 42 (:7777) since 2024-05-01T12:00:00Z" {
		t.Errorf("String() = %q", got)
	}
	if got := (Holder{PID: 7}).String(); got != "pid 7" {
		t.Errorf("String() = %q", got)
	}
}
