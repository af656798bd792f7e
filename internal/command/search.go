package command

import (
	"context"
	"fmt"
	"strconv"

	"github.com/codefionn/bookshelf/internal/book"
	"github.com/codefionn/bookshelf/internal/session"
)

const msgNoSearch = "You haven't searched for a book yet"

func (d *Dispatcher) searchTitle(ctx context.Context, args []string, s *session.Session) string {
	return d.search(ctx, s, args[0], "")
}

func (d *Dispatcher) searchAuthor(ctx context.Context, args []string, s *session.Session) string {
	return d.search(ctx, s, "", args[0])
}

func (d *Dispatcher) searchTitleAuthor(ctx context.Context, args []string, s *session.Session) string {
	return d.search(ctx, s, args[0], args[1])
}

// search fetches the first page for a new request. The session changes
// only once the catalog has answered.
func (d *Dispatcher) search(ctx context.Context, s *session.Session, title, author string) string {
	req, err := book.NewSearchRequest(title, author)
	if err != nil {
		return fmt.Sprintf("Error occurred while processing request: %s", err)
	}
	books, err := d.catalog.Search(ctx, req, 0)
	if err != nil {
		d.log.Warn("%s: search %q failed: %v", s.ID(), req.Query(), err)
		return fmt.Sprintf("Error occurred while processing request: %s", err)
	}
	s.StartSearch(req, books)
	return renderPage(s)
}

func (d *Dispatcher) nextPage(ctx context.Context, _ []string, s *session.Session) string {
	req, ok := s.LastQuery()
	if !ok {
		return msgNoSearch
	}
	if s.NextBuffered() {
		return renderPage(s)
	}

	books, err := d.catalog.Search(ctx, req, s.Page()+1)
	if err != nil {
		d.log.Warn("%s: fetching page %d of %q failed: %v", s.ID(), s.Page()+1, req.Query(), err)
		return "Error executing request: " + err.Error()
	}
	if len(books) == 0 {
		return "No more books match the search"
	}
	s.AppendPage(books)
	return renderPage(s)
}

func (d *Dispatcher) prevPage(_ context.Context, _ []string, s *session.Session) string {
	if _, ok := s.LastQuery(); !ok {
		return msgNoSearch
	}
	if !s.Prev() {
		return "No previous page"
	}
	return renderPage(s)
}

func (d *Dispatcher) selectBook(ctx context.Context, args []string, s *session.Session) string {
	if _, ok := s.Selected(); ok {
		return "You already have a book selected. To deselect it use: deselect"
	}
	if !s.HasResults() {
		return "You haven't made any book requests"
	}
	displayed := s.Displayed()
	if len(displayed) == 0 {
		return "Your last request was empty"
	}

	index, err := strconv.Atoi(args[0])
	if err != nil {
		return "Invalid index passed, please enter a valid number"
	}
	if index < 0 || index >= len(displayed) {
		return fmt.Sprintf("Index %d is out of bounds. Displayed books are in range [0, %d]", index, len(displayed)-1)
	}

	b := displayed[index]
	details, err := d.catalog.Details(ctx, b.ID)
	if err != nil {
		d.log.Warn("%s: details for %s failed: %v", s.ID(), b.ID, err)
		return fmt.Sprintf("Error occurred while processing request: %s", err)
	}
	s.Select(b)
	return details.String()
}

func (d *Dispatcher) deselect(_ context.Context, _ []string, s *session.Session) string {
	if !s.Deselect() {
		return "You haven't selected a book"
	}
	return "Removed selection"
}
