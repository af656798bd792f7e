package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/codefionn/bookshelf/internal/consts"
	"github.com/codefionn/bookshelf/internal/logger"
	"github.com/codefionn/bookshelf/internal/metrics"
	"github.com/codefionn/bookshelf/internal/store"
)

// Snapshot results reported to metrics.
const (
	resultSaved     = "saved"
	resultUnchanged = "unchanged"
	resultFailed    = "failed"
)

// Load rebuilds a Store from the two artifacts. Absent artifacts yield an
// empty Store.
func Load(ctx context.Context, users, lists Artifact, opts ...store.Option) (*store.Store, error) {
	usersData, err := users.Load(ctx)
	if err != nil {
		return nil, err
	}
	listsData, err := lists.Load(ctx)
	if err != nil {
		return nil, err
	}

	accounts, err := DecodeAccounts(usersData)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", users.Name(), err)
	}
	shelves, err := DecodeShelves(listsData)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", lists.Name(), err)
	}
	return store.Restore(accounts, shelves, opts...)
}

// Persister periodically writes the store to its artifacts.
type Persister struct {
	store        *store.Store
	users        Artifact
	lists        Artifact
	initialDelay time.Duration
	interval     time.Duration
	metrics      *metrics.Metrics
	log          *logger.Logger

	flushMu  sync.Mutex
	lastHash map[string]uint64

	mu       sync.Mutex
	started  bool
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a Persister.
type Option func(*Persister)

// WithSchedule sets the delay before the first snapshot and the period after it.
func WithSchedule(initialDelay, interval time.Duration) Option {
	return func(p *Persister) {
		p.initialDelay = initialDelay
		p.interval = interval
	}
}

// WithMetrics records snapshot outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Persister) {
		p.metrics = m
	}
}

// New creates a Persister for s writing accounts to users and shelves to lists.
func New(s *store.Store, users, lists Artifact, opts ...Option) *Persister {
	p := &Persister{
		store:        s,
		users:        users,
		lists:        lists,
		initialDelay: consts.DefaultSaveInitialDelay,
		interval:     consts.DefaultSaveInterval,
		log:          logger.Global().WithPrefix("persist"),
		lastHash:     make(map[string]uint64),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the snapshot loop. It runs until ctx is cancelled or Stop
// is called.
func (p *Persister) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.loop(ctx)
	p.log.Debug("Persister started: first snapshot in %v, then every %v", p.initialDelay, p.interval)
}

func (p *Persister) loop(ctx context.Context) {
	defer close(p.done)

	timer := time.NewTimer(p.initialDelay)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			if err := p.Flush(ctx); err != nil {
				p.log.Warn("Snapshot failed, retrying in %v: %v", p.interval, err)
			}
			timer.Reset(p.interval)
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends the loop and writes one final snapshot. Calling it again is a no-op.
func (p *Persister) Stop() error {
	var err error
	p.stopOnce.Do(func() {
		close(p.stop)

		p.mu.Lock()
		started := p.started
		p.mu.Unlock()
		if started {
			<-p.done
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err = p.Flush(ctx)
		if err != nil {
			p.log.Error("Final snapshot failed: %v", err)
		} else {
			p.log.Info("Final snapshot written")
		}
	})
	return err
}

// Flush writes one snapshot now. Both artifacts are attempted even when one
// fails; the returned error joins every failure.
func (p *Persister) Flush(ctx context.Context) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	accounts, shelves := p.store.Snapshot()

	var errs []error
	usersData, err := EncodeAccounts(accounts)
	if err != nil {
		errs = append(errs, err)
	} else if err := p.write(ctx, p.users, usersData); err != nil {
		errs = append(errs, err)
	}

	listsData, err := EncodeShelves(shelves)
	if err != nil {
		errs = append(errs, err)
	} else if err := p.write(ctx, p.lists, listsData); err != nil {
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		p.metrics.SnapshotCompleted(time.Now())
	}
	return errors.Join(errs...)
}

func (p *Persister) write(ctx context.Context, a Artifact, payload []byte) error {
	name := a.Name()
	sum := xxhash.Sum64(payload)
	if last, ok := p.lastHash[name]; ok && last == sum {
		p.metrics.Snapshot(name, resultUnchanged)
		return nil
	}

	if err := a.Save(ctx, payload); err != nil {
		p.metrics.Snapshot(name, resultFailed)
		p.log.Error("Failed to save %s: %v", name, err)
		return fmt.Errorf("%s: %w", name, err)
	}

	p.lastHash[name] = sum
	p.metrics.Snapshot(name, resultSaved)
	p.log.Debug("Saved %s (%d bytes)", name, len(payload))
	return nil
}
