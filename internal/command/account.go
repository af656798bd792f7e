package command

import (
	"context"
	"fmt"

	"github.com/codefionn/bookshelf/internal/session"
)

func (d *Dispatcher) register(_ context.Context, args []string, s *session.Session) string {
	if s.LoggedIn() {
		return "You are already logged in the system"
	}
	id, err := d.store.Register(args[0], args[1])
	if err != nil {
		return err.Error()
	}
	s.Login(id)
	d.log.Info("%s: registered %s", s.ID(), args[0])
	return fmt.Sprintf("Registered new user with the ID %s\nYou are now logged in.", id)
}

func (d *Dispatcher) login(_ context.Context, args []string, s *session.Session) string {
	if s.LoggedIn() {
		return "You are already logged in the system"
	}
	id, err := d.store.Login(args[0], args[1])
	if err != nil {
		return err.Error()
	}
	s.Login(id)
	return "Logged in"
}

func (d *Dispatcher) logout(_ context.Context, _ []string, s *session.Session) string {
	if !s.LoggedIn() {
		return "You are not logged in the system"
	}
	s.Reset()
	return "Logged out"
}
