package catalog

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/codefionn/bookshelf/internal/book"
	"github.com/codefionn/bookshelf/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// Cached fronts a Catalog with a bounded, least-recently-used cache of
// Details keyed by book id. Concurrent misses for one id share a single
// upstream request. Failed lookups are not cached. Search is passed through.
type Cached struct {
	Catalog

	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List // front = most recently used
	maxEntries int
	ttl        time.Duration
	now        func() time.Time

	group   singleflight.Group
	metrics *metrics.Metrics
}

type cacheEntry struct {
	id       string
	details  book.Details
	storedAt time.Time
}

// NewCached wraps inner. maxEntries <= 0 disables the size bound and
// ttl <= 0 disables expiry, which together reproduce a cache that never evicts.
func NewCached(inner Catalog, maxEntries int, ttl time.Duration, m *metrics.Metrics) *Cached {
	return &Cached{
		Catalog:    inner,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
		metrics:    m,
	}
}

// Details returns the cached record for id or fetches and caches it.
func (c *Cached) Details(ctx context.Context, id string) (book.Details, error) {
	if d, ok := c.lookup(id); ok {
		c.metrics.CacheLookup(true)
		return d, nil
	}
	c.metrics.CacheLookup(false)

	v, err, _ := c.group.Do(id, func() (interface{}, error) {
		d, err := c.Catalog.Details(ctx, id)
		if err != nil {
			return nil, err
		}
		c.store(id, d)
		return d, nil
	})
	if err != nil {
		return book.Details{}, err
	}
	return v.(book.Details), nil
}

// Len returns the number of cached records.
func (c *Cached) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cached) lookup(id string) (book.Details, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[id]
	if !ok {
		return book.Details{}, false
	}
	entry := elem.Value.(*cacheEntry)
	if c.ttl > 0 && c.now().Sub(entry.storedAt) > c.ttl {
		c.removeElement(elem)
		return book.Details{}, false
	}
	c.order.MoveToFront(elem)
	return entry.details, true
}

func (c *Cached) store(id string, d book.Details) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[id]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.details = d
		entry.storedAt = c.now()
		c.order.MoveToFront(elem)
		return
	}

	c.entries[id] = c.order.PushFront(&cacheEntry{id: id, details: d, storedAt: c.now()})
	for c.maxEntries > 0 && c.order.Len() > c.maxEntries {
		c.removeElement(c.order.Back())
	}
}

func (c *Cached) removeElement(elem *list.Element) {
	entry := c.order.Remove(elem).(*cacheEntry)
	delete(c.entries, entry.id)
}
