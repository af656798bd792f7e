package session

import (
	"fmt"
	"testing"

	"github.com/codefionn/bookshelf/internal/book"
)

func books(n, from int) []book.Book {
	out := make([]book.Book, n)
	for i := range out {
		out[i] = book.Book{ID: fmt.Sprintf("b%d", from+i), Title: fmt.Sprintf("Book %d", from+i)}
	}
	return out
}

func TestNewSessionIsAnonymous(t *testing.T) {
	s := New("conn_1", 64)

	if s.ID() != "conn_1" {
		t.Errorf("ID = %q", s.ID())
	}
	if s.LoggedIn() {
		t.Error("new session is logged in")
	}
	if s.Page() != NoPage {
		t.Errorf("Page = %d, want NoPage", s.Page())
	}
	if s.HasResults() {
		t.Error("new session has results")
	}
	if _, ok := s.LastQuery(); ok {
		t.Error("new session has a last query")
	}
	if _, ok := s.Selected(); ok {
		t.Error("new session has a selection")
	}
	if len(s.Buffer()) != 64 {
		t.Errorf("buffer size = %d, want 64", len(s.Buffer()))
	}
}

func TestDefaultBufferSize(t *testing.T) {
	if got := len(New("c", 0).Buffer()); got != 2048 {
		t.Errorf("buffer size = %d, want 2048", got)
	}
}

func TestBufferIsCleared(t *testing.T) {
	s := New("c", 8)
	copy(s.Buffer(), "stale")

	for i, b := range s.Buffer() {
		if b != 0 {
			t.Fatalf("byte %d = %q after Buffer()", i, b)
		}
	}
}

func TestResetKeepsBufferCapacity(t *testing.T) {
	s := New("c", 16)
	s.Login("acc")
	req, _ := book.NewSearchRequest("dune", "")
	s.StartSearch(req, books(3, 0))
	s.Select(book.Book{ID: "x"})

	s.Reset()

	if s.LoggedIn() || s.HasResults() || s.Page() != NoPage {
		t.Error("Reset left state behind")
	}
	if _, ok := s.Selected(); ok {
		t.Error("Reset kept the selection")
	}
	if len(s.Buffer()) != 16 {
		t.Errorf("buffer size = %d after Reset", len(s.Buffer()))
	}
}

func TestEmptySearchIsDistinctFromNoSearch(t *testing.T) {
	s := New("c", 0)
	req, _ := book.NewSearchRequest("nothing", "")
	s.StartSearch(req, nil)

	if !s.HasResults() {
		t.Error("empty search should still count as a search")
	}
	if len(s.Displayed()) != 0 {
		t.Errorf("Displayed = %v", s.Displayed())
	}
}

func TestPagination(t *testing.T) {
	s := New("c", 0)
	req, _ := book.NewSearchRequest("dune", "")
	s.StartSearch(req, books(10, 0))

	if s.NextBuffered() {
		t.Fatal("page 1 is not buffered yet")
	}

	s.AppendPage(books(4, 10))
	window, start := s.Window()
	if s.Page() != 1 || start != 10 || len(window) != 4 {
		t.Fatalf("after AppendPage: page %d, start %d, %d books", s.Page(), start, len(window))
	}

	if !s.Prev() {
		t.Fatal("Prev from page 1 failed")
	}
	window, start = s.Window()
	if start != 0 || len(window) != 10 {
		t.Errorf("page 0 window: start %d, %d books", start, len(window))
	}

	if s.Prev() {
		t.Error("Prev from page 0 succeeded")
	}

	if !s.NextBuffered() {
		t.Fatal("page 1 is buffered")
	}
	if s.Page() != 1 {
		t.Errorf("Page = %d, want 1", s.Page())
	}
}

func TestDeselect(t *testing.T) {
	s := New("c", 0)
	if s.Deselect() {
		t.Error("Deselect without selection reported true")
	}
	s.Select(book.Book{ID: "x"})
	if !s.Deselect() {
		t.Error("Deselect with selection reported false")
	}
	if _, ok := s.Selected(); ok {
		t.Error("selection survived Deselect")
	}
}
