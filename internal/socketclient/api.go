package socketclient

import (
	"context"
	"strings"

	"github.com/codefionn/bookshelf/internal/consts"
)

// Register creates an account and logs the connection in.
func (c *Client) Register(ctx context.Context, username, password string) (string, error) {
	return c.Command(ctx, "register", username, password)
}

// Login logs the connection in.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	return c.Command(ctx, "login", username, password)
}

// Logout resets the connection's session.
func (c *Client) Logout(ctx context.Context) (string, error) {
	return c.Command(ctx, "logout")
}

// Help returns the command reference.
func (c *Client) Help(ctx context.Context) (string, error) {
	return c.Command(ctx, "help")
}

// Shutdown asks the server to stop.
func (c *Client) Shutdown(ctx context.Context) (string, error) {
	return c.Send(ctx, consts.KillCommand+"\n")
}

// Command sends verb with args as one message.
func (c *Client) Command(ctx context.Context, verb string, args ...string) (string, error) {
	return c.Send(ctx, strings.Join(append([]string{verb}, args...), " ")+"\n")
}
