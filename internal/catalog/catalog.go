// Package catalog talks to the remote book catalog. The server only depends
// on the Catalog interface; GoogleBooks is the production implementation and
// Cached adds the bounded detail cache in front of any Catalog.
package catalog

import (
	"context"
	"fmt"

	"github.com/codefionn/bookshelf/internal/book"
)

// Catalog looks up books. Implementations must be safe for concurrent use.
type Catalog interface {
	// Search returns the books on the zero-based page of results for req.
	// A page past the end yields an empty slice, not an error.
	Search(ctx context.Context, req book.SearchRequest, page int) ([]book.Book, error)

	// Details returns the full record of one volume.
	Details(ctx context.Context, id string) (book.Details, error)

	// Name identifies the implementation in logs.
	Name() string
}

// RequestError reports a failure to reach the catalog or to read its answer.
type RequestError struct {
	Op  string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// ResponseError reports a non-success status returned by the catalog.
type ResponseError struct {
	StatusCode int
	Body       string
}

func (e *ResponseError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("catalog returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("catalog returned status %d: %s", e.StatusCode, e.Body)
}
