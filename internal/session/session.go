// Package session holds the transient protocol state of one client
// connection: who is logged in, the last search and its result window, and
// the selected book.
//
// A Session belongs to the goroutine serving its connection and is not safe
// for concurrent use.
package session

import (
	"time"

	"github.com/codefionn/bookshelf/internal/book"
	"github.com/codefionn/bookshelf/internal/consts"
)

// NoPage is the page index before any search.
const NoPage = -1

// Session is the per-connection state.
type Session struct {
	id        string
	createdAt time.Time

	identity  string
	lastQuery *book.SearchRequest
	page      int
	displayed []book.Book
	selected  *book.Book

	buf []byte
}

// New creates an anonymous session with a receive buffer of bufSize bytes.
func New(id string, bufSize int) *Session {
	if bufSize <= 0 {
		bufSize = consts.DefaultMaxMessageBytes
	}
	s := &Session{
		id:        id,
		createdAt: time.Now(),
		buf:       make([]byte, bufSize),
	}
	s.Reset()
	return s
}

// ID returns the connection id the session was created for.
func (s *Session) ID() string {
	return s.id
}

// CreatedAt returns when the connection was accepted.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Reset returns the session to anonymous with no search or selection.
func (s *Session) Reset() {
	s.identity = ""
	s.lastQuery = nil
	s.page = NoPage
	s.displayed = nil
	s.selected = nil
	clear(s.buf)
}

// Identity returns the logged-in account id, or "" when anonymous.
func (s *Session) Identity() string {
	return s.identity
}

func (s *Session) LoggedIn() bool {
	return s.identity != ""
}

// Login binds the session to an account.
func (s *Session) Login(accountID string) {
	s.identity = accountID
}

// Buffer returns the receive buffer, zeroed.
func (s *Session) Buffer() []byte {
	clear(s.buf)
	return s.buf
}

// LastQuery returns the criteria of the last successful search.
func (s *Session) LastQuery() (book.SearchRequest, bool) {
	if s.lastQuery == nil {
		return book.SearchRequest{}, false
	}
	return *s.lastQuery, true
}

// Page returns the current page index, or NoPage before any search.
func (s *Session) Page() int {
	return s.page
}

// Displayed returns the results fetched so far for the last search. It is
// nil before any search and empty when the search found nothing.
func (s *Session) Displayed() []book.Book {
	return s.displayed
}

// HasResults reports whether a search has populated the result buffer.
func (s *Session) HasResults() bool {
	return s.displayed != nil
}

// StartSearch records a new search with its first page of results.
func (s *Session) StartSearch(req book.SearchRequest, firstPage []book.Book) {
	s.lastQuery = &req
	s.page = 0
	s.displayed = append(make([]book.Book, 0, len(firstPage)), firstPage...)
}

// AppendPage adds the next fetched page and moves to it.
func (s *Session) AppendPage(books []book.Book) {
	s.displayed = append(s.displayed, books...)
	s.page++
}

// NextBuffered moves forward one page if that page is already buffered.
func (s *Session) NextBuffered() bool {
	if len(s.displayed) == 0 || (len(s.displayed)-1)/book.PageSize <= s.page {
		return false
	}
	s.page++
	return true
}

// Prev moves back one page. It reports false on the first page.
func (s *Session) Prev() bool {
	if s.page <= 0 {
		return false
	}
	s.page--
	return true
}

// Window returns the books of the current page and the index of the first.
func (s *Session) Window() ([]book.Book, int) {
	if s.page < 0 {
		return nil, 0
	}
	start, end := book.PageWindow(s.page, len(s.displayed))
	return s.displayed[start:end], start
}

// Selected returns the selected book.
func (s *Session) Selected() (book.Book, bool) {
	if s.selected == nil {
		return book.Book{}, false
	}
	return *s.selected, true
}

// Select records b as the selected book.
func (s *Session) Select(b book.Book) {
	s.selected = &b
}

// Deselect clears the selection and reports whether there was one.
func (s *Session) Deselect() bool {
	had := s.selected != nil
	s.selected = nil
	return had
}
