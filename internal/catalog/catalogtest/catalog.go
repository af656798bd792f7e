// Package catalogtest provides an in-memory catalog.Catalog for tests.
package catalogtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/codefionn/bookshelf/internal/book"
)

// Catalog serves fixed pages and details and counts every call.
type Catalog struct {
	mu sync.Mutex

	// Pages maps a query (SearchRequest.Query) to its result pages.
	Pages map[string][][]book.Book
	// Volumes maps a book id to its details.
	Volumes map[string]book.Details
	// Err, when set, is returned by every call.
	Err error

	searchCalls  []SearchCall
	detailsCalls []string
}

// SearchCall records the arguments of one Search.
type SearchCall struct {
	Query string
	Page  int
}

// New returns an empty Catalog.
func New() *Catalog {
	return &Catalog{
		Pages:   make(map[string][][]book.Book),
		Volumes: make(map[string]book.Details),
	}
}

// AddPages registers the result pages for a query.
func (c *Catalog) AddPages(req book.SearchRequest, pages ...[]book.Book) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Pages[req.Query()] = pages
}

// AddBook registers details for b, deriving them from b when d is nil.
func (c *Catalog) AddBook(b book.Book, d *book.Details) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d == nil {
		d = &book.Details{ID: b.ID, Title: b.Title, Authors: b.Authors}
	}
	c.Volumes[b.ID] = *d
}

// SetErr makes every subsequent call fail with err (nil restores normal answers).
func (c *Catalog) SetErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Err = err
}

func (c *Catalog) Search(_ context.Context, req book.SearchRequest, page int) ([]book.Book, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.searchCalls = append(c.searchCalls, SearchCall{Query: req.Query(), Page: page})
	if c.Err != nil {
		return nil, c.Err
	}
	pages := c.Pages[req.Query()]
	if page < 0 || page >= len(pages) {
		return []book.Book{}, nil
	}
	return append([]book.Book(nil), pages[page]...), nil
}

func (c *Catalog) Details(_ context.Context, id string) (book.Details, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.detailsCalls = append(c.detailsCalls, id)
	if c.Err != nil {
		return book.Details{}, c.Err
	}
	d, ok := c.Volumes[id]
	if !ok {
		return book.Details{}, fmt.Errorf("no volume %q", id)
	}
	return d, nil
}

func (c *Catalog) Name() string {
	return "catalogtest"
}

// SearchCalls returns the recorded Search calls in order.
func (c *Catalog) SearchCalls() []SearchCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]SearchCall(nil), c.searchCalls...)
}

// DetailsCalls returns the ids passed to Details in order.
func (c *Catalog) DetailsCalls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.detailsCalls...)
}
