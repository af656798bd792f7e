// Package pprof exposes Go runtime profiles, either as admin HTTP routes or
// as files written around a server's lifetime.
package pprof

import (
	"errors"
	"fmt"
	"net/http"
	netpprof "net/http/pprof"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"sync"

	"github.com/julienschmidt/httprouter"
)

// namedProfiles are served under /debug/pprof/<name>.
var namedProfiles = []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"}

// Register mounts the /debug/pprof endpoints on r.
func Register(r *httprouter.Router) {
	r.HandlerFunc(http.MethodGet, "/debug/pprof/", netpprof.Index)
	r.HandlerFunc(http.MethodGet, "/debug/pprof/cmdline", netpprof.Cmdline)
	r.HandlerFunc(http.MethodGet, "/debug/pprof/profile", netpprof.Profile)
	r.HandlerFunc(http.MethodGet, "/debug/pprof/symbol", netpprof.Symbol)
	r.HandlerFunc(http.MethodGet, "/debug/pprof/trace", netpprof.Trace)
	for _, name := range namedProfiles {
		r.Handler(http.MethodGet, "/debug/pprof/"+name, netpprof.Handler(name))
	}
}

// Config names the profile files to write; empty paths are skipped.
type Config struct {
	CPUProfile   string // recorded from Start to Stop
	HeapProfile  string // written at Stop
	MutexProfile string // written at Stop; enables mutex sampling while running
}

// Enabled reports whether any profile file is configured.
func (c Config) Enabled() bool {
	return c.CPUProfile != "" || c.HeapProfile != "" || c.MutexProfile != ""
}

// Profiler writes file profiles
type Profiler struct {
	config  Config
	cpuFile *os.File

	mu      sync.Mutex
	stopped bool
}

// NewProfiler creates a profiler for config
func NewProfiler(config Config) *Profiler {
	return &Profiler{config: config}
}

// Start begins CPU recording and mutex sampling as configured.
func (p *Profiler) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.config.CPUProfile != "" {
		f, err := create(p.config.CPUProfile)
		if err != nil {
			return err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return fmt.Errorf("failed to start CPU profiling: %w", err)
		}
		p.cpuFile = f
	}

	if p.config.MutexProfile != "" {
		runtime.SetMutexProfileFraction(1)
	}
	return nil
}

// Stop finishes the CPU profile and writes the snapshot profiles. Only the
// first call has an effect.
func (p *Profiler) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}
	p.stopped = true

	var errs []error
	if p.cpuFile != nil {
		pprof.StopCPUProfile()
		if err := p.cpuFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close CPU profile: %w", err))
		}
		p.cpuFile = nil
	}

	if p.config.HeapProfile != "" {
		runtime.GC()
		errs = append(errs, writeProfile("heap", p.config.HeapProfile))
	}

	if p.config.MutexProfile != "" {
		errs = append(errs, writeProfile("mutex", p.config.MutexProfile))
		runtime.SetMutexProfileFraction(0)
	}

	return errors.Join(errs...)
}

func create(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile file: %w", err)
	}
	return f, nil
}

// writeProfile writes a named profile to a file
func writeProfile(name, path string) error {
	prof := pprof.Lookup(name)
	if prof == nil {
		return fmt.Errorf("profile %q not found", name)
	}
	f, err := create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := prof.WriteTo(f, 0); err != nil {
		return fmt.Errorf("failed to write %s profile: %w", name, err)
	}
	return nil
}
