package command

import (
	"context"
	"strconv"
	"strings"

	"github.com/codefionn/bookshelf/internal/book"
	"github.com/codefionn/bookshelf/internal/session"
)

// renderPage lists the current page as "<index>: <book>" lines, numbered
// from the start of the whole result set.
func renderPage(s *session.Session) string {
	window, start := s.Window()
	lines := make([]string, len(window))
	for i, b := range window {
		lines[i] = strconv.Itoa(start+i) + ": " + b.String()
	}
	return strings.Join(lines, "\n")
}

// renderNumbered lists books as "<index> <book>" lines.
func renderNumbered(books []book.Book) string {
	lines := make([]string, len(books))
	for i, b := range books {
		lines[i] = strconv.Itoa(i) + " " + b.String()
	}
	return strings.Join(lines, "\n")
}

func joinBooks(books []book.Book, sep string) string {
	parts := make([]string, len(books))
	for i, b := range books {
		parts[i] = b.String()
	}
	return strings.Join(parts, sep)
}

var helpText = strings.Join([]string{
	"Command Descriptions:",
	"login <username> <password>: Log in to the system.",
	"register <username> <password>: Register a new user.",
	"logout: Log out from the system.",
	"search-title <title>: Search for books by title.",
	"search-author <author>: Search for books by author.",
	"search-title-author <title> <author>: Search for books by both title and author.",
	"select <book_id>: Select a book from the search list.",
	"deselect: Deselect the currently selected book.",
	"add-book <list_name>: Add the selected book to a list.",
	"next-page: View the next page of search results.",
	"prev-page: View the previous page of search results.",
	"add-friend <friend_username>: Add a friend to your network.",
	"create-list <list_name>: Create a new list for organizing books.",
	"remove-list <list_name>: Remove a list from your collections.",
	"view-list <list_name>: View the contents of a specific list.",
	"remove-book <list_name> <index>: Remove book at given index from a list.",
	"recommend-book: Recommend the selected book to friends.",
	"view-friends-recommended: View books recommended by your friends.",
	"view-user-recommended: View books you have recommended.",
}, "\n") + "\n"

func (d *Dispatcher) help(_ context.Context, _ []string, _ *session.Session) string {
	return helpText
}
