package command

import (
	"context"
	"fmt"
	"strconv"

	"github.com/codefionn/bookshelf/internal/session"
)

func (d *Dispatcher) addBook(_ context.Context, args []string, s *session.Session) string {
	if !s.LoggedIn() {
		return msgNotLoggedIn
	}
	b, ok := s.Selected()
	if !ok {
		return msgNoSelection
	}
	if err := d.store.AddToList(s.Identity(), args[0], b); err != nil {
		return d.storeFailure(s, "add-book", err)
	}
	return fmt.Sprintf("Successfully added %s to %s", b.Title, args[0])
}

func (d *Dispatcher) createList(_ context.Context, args []string, s *session.Session) string {
	if !s.LoggedIn() {
		return msgNotLoggedIn
	}
	if err := d.store.CreateList(s.Identity(), args[0]); err != nil {
		return d.storeFailure(s, "create-list", err)
	}
	return "List created successfully"
}

func (d *Dispatcher) removeList(_ context.Context, args []string, s *session.Session) string {
	if !s.LoggedIn() {
		return msgNotLoggedIn
	}
	if err := d.store.RemoveList(s.Identity(), args[0]); err != nil {
		return d.storeFailure(s, "remove-list", err)
	}
	return "List removed successfully"
}

func (d *Dispatcher) viewList(_ context.Context, args []string, s *session.Session) string {
	if !s.LoggedIn() {
		return msgNotLoggedIn
	}
	books, err := d.store.GetList(s.Identity(), args[0])
	if err != nil {
		return d.storeFailure(s, "view-list", err)
	}
	return renderNumbered(books)
}

func (d *Dispatcher) removeBook(_ context.Context, args []string, s *session.Session) string {
	if !s.LoggedIn() {
		return msgNotLoggedIn
	}
	index, err := strconv.Atoi(args[1])
	if err != nil {
		return "Invalid index, please enter a valid number"
	}
	if err := d.store.RemoveFromList(s.Identity(), args[0], index); err != nil {
		return d.storeFailure(s, "remove-book", err)
	}
	return "Book removed successfully"
}
