package command

import (
	"context"
	"strings"

	"github.com/codefionn/bookshelf/internal/session"
)

func (d *Dispatcher) addFriend(_ context.Context, args []string, s *session.Session) string {
	if !s.LoggedIn() {
		return msgNotLoggedIn
	}
	if err := d.store.AddFriend(s.Identity(), args[0]); err != nil {
		return d.storeFailure(s, "add-friend", err)
	}
	return "Friend added successfully"
}

func (d *Dispatcher) recommendBook(_ context.Context, _ []string, s *session.Session) string {
	if !s.LoggedIn() {
		return msgNotLoggedIn
	}
	b, ok := s.Selected()
	if !ok {
		return msgNoSelection
	}
	d.store.RecommendBook(s.Identity(), b)
	return "Book added to recommendations"
}

func (d *Dispatcher) viewUserRecommended(_ context.Context, _ []string, s *session.Session) string {
	if !s.LoggedIn() {
		return msgNotLoggedIn
	}
	books := d.store.UserRecommendations(s.Identity())
	if len(books) == 0 {
		return "No recommended books"
	}
	return renderNumbered(books)
}

func (d *Dispatcher) viewFriendsRecommended(_ context.Context, _ []string, s *session.Session) string {
	if !s.LoggedIn() {
		return msgNotLoggedIn
	}
	recs := d.store.FriendsRecommendations(s.Identity())

	var sb strings.Builder
	for _, friend := range recs.Order {
		books := recs.ByFriend[friend]
		if len(books) == 0 {
			continue
		}
		sb.WriteString(friend)
		sb.WriteString(" recommends ")
		sb.WriteString(joinBooks(books, ", "))
		sb.WriteString("\n")
	}
	return sb.String()
}
