package pidfile

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func TestWriteReadRemove(t *testing.T) {
	p := New(filepath.Join(t.TempDir(), "run", "bookshelf.pid"))

	if err := p.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}
	pid, err := p.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("Read() = %d, want %d", pid, os.Getpid())
	}

	if err := p.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(p.Path()); !os.IsNotExist(err) {
		t.Errorf("pid file still present: %v", err)
	}
	if err := p.Remove(); err != nil {
		t.Errorf("second Remove: %v", err)
	}
}

func TestReadMissing(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "none.pid")).Read()
	if !errors.Is(err, ErrNoPidfile) {
		t.Errorf("expected ErrNoPidfile, got %v", err)
	}
}

func TestReadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pid")
	if err := os.WriteFile(path, []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(path).Read(); err == nil {
		t.Error("expected error for invalid pid")
	}
}

func TestRemoveKeepsForeignPid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.pid")
	if err := os.WriteFile(path, []byte("1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := New(path).Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("foreign pid file removed: %v", err)
	}
}

func TestSignalSelf(t *testing.T) {
	p := New(filepath.Join(t.TempDir(), "self.pid"))
	if err := p.Write(); err != nil {
		t.Fatal(err)
	}
	pid, err := p.Signal(syscall.Signal(0))
	if err != nil {
		t.Fatalf("Signal: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("Signal() pid = %d", pid)
	}
}
