// Package book holds the catalog value types shared by the store, the
// sessions and the command handlers.
package book

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/codefionn/bookshelf/internal/consts"
	"github.com/codefionn/bookshelf/internal/htmlconv"
)

// PageSize is the number of books in one search result page.
const PageSize = consts.BooksPerPage

// ErrEmptyRequest is returned when a search names neither title nor author.
var ErrEmptyRequest = errors.New("Request must have at least one parameter")

// Book is the search-result projection of a catalog volume.
type Book struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Authors []string `json:"authors,omitempty"`
}

// Equal compares every field, authors in order.
func (b Book) Equal(other Book) bool {
	return b.ID == other.ID && b.Title == other.Title && slices.Equal(b.Authors, other.Authors)
}

func (b Book) String() string {
	authors := "UNKNOWN"
	if b.Authors != nil {
		authors = strings.Join(b.Authors, ", ")
	}
	return fmt.Sprintf("%q - %s", b.Title, authors)
}

// Details is the richer projection shown for a selected book. It is never persisted.
type Details struct {
	ID            string
	Title         string
	Authors       []string
	Description   string
	PageCount     int
	PublishedYear int
	Categories    []string
	AverageRating float64
	RatingsCount  int
}

func (d Details) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Title - %q", d.Title)
	if d.Authors != nil {
		writeLine(&sb, "Authors", strings.Join(d.Authors, ", "))
	}
	if d.Description != "" {
		writeLine(&sb, "Description", htmlconv.Description(d.Description))
	}
	if d.PageCount > 0 {
		writeLine(&sb, "Page count", fmt.Sprint(d.PageCount))
	}
	if d.PublishedYear > 0 {
		writeLine(&sb, "Publish date", fmt.Sprint(d.PublishedYear))
	}
	if d.Categories != nil {
		writeLine(&sb, "Categories", strings.Join(d.Categories, ", "))
	}
	if d.AverageRating > 0 && d.RatingsCount > 0 {
		writeLine(&sb, "Rating", fmt.Sprintf("%g, %d total ratings", d.AverageRating, d.RatingsCount))
	}
	return sb.String()
}

func writeLine(sb *strings.Builder, label, value string) {
	sb.WriteString("\n")
	sb.WriteString(label)
	sb.WriteString(" - ")
	sb.WriteString(value)
}

// SearchRequest holds the criteria of one catalog search. At least one of
// Title and Author is set; use NewSearchRequest to build one.
type SearchRequest struct {
	Title  string
	Author string
}

// NewSearchRequest validates and returns a request. Blank fields count as absent.
func NewSearchRequest(title, author string) (SearchRequest, error) {
	title = strings.TrimSpace(title)
	author = strings.TrimSpace(author)
	if title == "" && author == "" {
		return SearchRequest{}, ErrEmptyRequest
	}
	return SearchRequest{Title: title, Author: author}, nil
}

// Terms returns the field-search terms of the request, title first.
func (r SearchRequest) Terms() []string {
	terms := make([]string, 0, 2)
	if r.Title != "" {
		terms = append(terms, "intitle:"+r.Title)
	}
	if r.Author != "" {
		terms = append(terms, "inauthor:"+r.Author)
	}
	return terms
}

// Query renders the request in the catalog's field-search syntax,
// e.g. "intitle:dune+inauthor:herbert".
func (r SearchRequest) Query() string {
	return strings.Join(r.Terms(), "+")
}

// PageWindow returns the half-open index range [start, end) of page within
// a result set of n books.
func PageWindow(page, n int) (start, end int) {
	start = page * PageSize
	end = start + PageSize
	if start > n {
		start = n
	}
	if end > n {
		end = n
	}
	return start, end
}
