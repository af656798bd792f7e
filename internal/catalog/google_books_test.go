package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/codefionn/bookshelf/internal/book"
	"github.com/codefionn/bookshelf/internal/securemem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchPayload = `{
  "totalItems": 2,
  "items": [
    {"id": "a1", "volumeInfo": {"title": "Dune", "authors": ["Frank Herbert"]}},
    {"id": "b2", "volumeInfo": {"title": "Dune Messiah"}}
  ]
}`

const detailsPayload = `{
  "id": "a1",
  "volumeInfo": {
    "title": "Dune",
    "authors": ["Frank Herbert"],
    "description": "<p>Spice</p>",
    "pageCount": 412,
    "publishedDate": "1965-08-01",
    "categories": ["Fiction"],
    "averageRating": 4.5,
    "ratingsCount": 88
  }
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *GoogleBooks {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGoogleBooks(securemem.NewSecret("test-key"), WithBaseURL(srv.URL+"/books/v1/volumes"))
}

func TestGoogleBooksSearchFirstPage(t *testing.T) {
	var gotQuery, gotStart, gotMax, gotKey string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/books/v1/volumes", r.URL.Path)
		q := r.URL.Query()
		gotQuery, gotStart, gotMax, gotKey = q.Get("q"), q.Get("startIndex"), q.Get("maxResults"), q.Get("key")
		fmt.Fprint(w, searchPayload)
	})

	req, err := book.NewSearchRequest("dune", "herbert")
	require.NoError(t, err)

	books, err := client.Search(context.Background(), req, 0)
	require.NoError(t, err)

	assert.Equal(t, "intitle:dune inauthor:herbert", gotQuery)
	assert.Empty(t, gotStart, "first page must not send startIndex")
	assert.Equal(t, "10", gotMax)
	assert.Equal(t, "test-key", gotKey)

	require.Len(t, books, 2)
	assert.Equal(t, book.Book{ID: "a1", Title: "Dune", Authors: []string{"Frank Herbert"}}, books[0])
	assert.Nil(t, books[1].Authors)
}

func TestGoogleBooksSearchLaterPage(t *testing.T) {
	var gotStart string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotStart = r.URL.Query().Get("startIndex")
		fmt.Fprint(w, `{"totalItems": 0}`)
	})

	req, _ := book.NewSearchRequest("", "herbert")
	books, err := client.Search(context.Background(), req, 2)
	require.NoError(t, err)

	assert.Equal(t, "20", gotStart)
	assert.Empty(t, books)
}

func TestGoogleBooksDetails(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/books/v1/volumes/a1", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		fmt.Fprint(w, detailsPayload)
	})

	d, err := client.Details(context.Background(), "a1")
	require.NoError(t, err)

	assert.Equal(t, "Dune", d.Title)
	assert.Equal(t, 412, d.PageCount)
	assert.Equal(t, 1965, d.PublishedYear)
	assert.Equal(t, 4.5, d.AverageRating)
	assert.Equal(t, 88, d.RatingsCount)
	assert.Equal(t, []string{"Fiction"}, d.Categories)
}

func TestGoogleBooksResponseError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "quota"}`, http.StatusForbidden)
	})

	_, err := client.Details(context.Background(), "a1")

	var respErr *ResponseError
	require.True(t, errors.As(err, &respErr))
	assert.Equal(t, http.StatusForbidden, respErr.StatusCode)
	assert.Contains(t, respErr.Body, "quota")
}

func TestGoogleBooksRequestErrorOnBadJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not json")
	})

	req, _ := book.NewSearchRequest("dune", "")
	_, err := client.Search(context.Background(), req, 0)

	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, "search", reqErr.Op)
}

func TestGoogleBooksValidate(t *testing.T) {
	assert.Error(t, NewGoogleBooks(securemem.NewSecret("")).Validate())
	assert.NoError(t, NewGoogleBooks(securemem.NewSecret("k")).Validate())
}

func TestParseYear(t *testing.T) {
	tests := map[string]int{
		"1965":       1965,
		"1965-08":    1965,
		"1965-08-01": 1965,
		"":           0,
		"n.d.":       0,
		"19":         0,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseYear(in), "parseYear(%q)", in)
	}
}
