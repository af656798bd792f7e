package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/codefionn/bookshelf/internal/book"
	"github.com/codefionn/bookshelf/internal/catalog/catalogtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(ids ...string) *catalogtest.Catalog {
	inner := catalogtest.New()
	for _, id := range ids {
		inner.AddBook(book.Book{ID: id, Title: "Title " + id}, nil)
	}
	return inner
}

func TestCachedServesRepeatLookupsLocally(t *testing.T) {
	inner := seeded("a")
	c := NewCached(inner, 10, 0, nil)

	for i := 0; i < 3; i++ {
		d, err := c.Details(context.Background(), "a")
		require.NoError(t, err)
		assert.Equal(t, "Title a", d.Title)
	}

	assert.Equal(t, []string{"a"}, inner.DetailsCalls())
}

func TestCachedEvictsLeastRecentlyUsed(t *testing.T) {
	inner := seeded("a", "b", "c")
	c := NewCached(inner, 2, 0, nil)
	ctx := context.Background()

	_, _ = c.Details(ctx, "a")
	_, _ = c.Details(ctx, "b")
	_, _ = c.Details(ctx, "a") // a is now most recent
	_, _ = c.Details(ctx, "c") // evicts b

	assert.Equal(t, 2, c.Len())

	_, _ = c.Details(ctx, "a")
	_, _ = c.Details(ctx, "b")
	assert.Equal(t, []string{"a", "b", "c", "b"}, inner.DetailsCalls())
}

func TestCachedUnboundedWhenMaxIsZero(t *testing.T) {
	inner := seeded("a", "b", "c")
	c := NewCached(inner, 0, 0, nil)

	for _, id := range []string{"a", "b", "c"} {
		_, err := c.Details(context.Background(), id)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, c.Len())
}

func TestCachedExpiresAfterTTL(t *testing.T) {
	inner := seeded("a")
	c := NewCached(inner, 10, time.Minute, nil)
	now := time.Now()
	c.now = func() time.Time { return now }

	_, _ = c.Details(context.Background(), "a")
	now = now.Add(2 * time.Minute)
	_, _ = c.Details(context.Background(), "a")

	assert.Len(t, inner.DetailsCalls(), 2)
}

func TestCachedDoesNotCacheFailures(t *testing.T) {
	inner := seeded("a")
	inner.SetErr(errors.New("upstream down"))
	c := NewCached(inner, 10, 0, nil)

	_, err := c.Details(context.Background(), "a")
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())

	inner.SetErr(nil)
	d, err := c.Details(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "a", d.ID)
}

func TestCachedConcurrentLookups(t *testing.T) {
	inner := seeded("a")
	c := NewCached(inner, 10, 0, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Details(context.Background(), "a")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// singleflight collapses overlapping misses; later callers hit the cache.
	assert.LessOrEqual(t, len(inner.DetailsCalls()), 16)
	assert.Equal(t, 1, c.Len())
}

func TestCachedPassesSearchThrough(t *testing.T) {
	inner := catalogtest.New()
	req, _ := book.NewSearchRequest("dune", "")
	inner.AddPages(req, []book.Book{{ID: "a", Title: "Dune"}})
	c := NewCached(inner, 10, 0, nil)

	books, err := c.Search(context.Background(), req, 0)
	require.NoError(t, err)
	assert.Len(t, books, 1)
	assert.Equal(t, "catalogtest", c.Name())
}
