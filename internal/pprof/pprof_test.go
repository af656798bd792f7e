package pprof

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/julienschmidt/httprouter"
)

func TestRegisterRoutes(t *testing.T) {
	r := httprouter.New()
	Register(r)

	for _, path := range []string{"/debug/pprof/", "/debug/pprof/heap", "/debug/pprof/goroutine", "/debug/pprof/cmdline"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d", path, rec.Code)
		}
	}
}

func TestConfigEnabled(t *testing.T) {
	if (Config{}).Enabled() {
		t.Error("empty config should be disabled")
	}
	if !(Config{HeapProfile: "heap.out"}).Enabled() {
		t.Error("heap profile should enable")
	}
}

func TestProfilerWritesFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		CPUProfile:   filepath.Join(dir, "cpu", "cpu.out"),
		HeapProfile:  filepath.Join(dir, "heap.out"),
		MutexProfile: filepath.Join(dir, "mutex.out"),
	}

	p := NewProfiler(cfg)
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}

	for _, path := range []string{cfg.CPUProfile, cfg.HeapProfile, cfg.MutexProfile} {
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("missing profile %s: %v", path, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("empty profile %s", path)
		}
	}
}
