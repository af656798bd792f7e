// Package command parses client messages and runs them against a session,
// the store and the catalog. Every outcome, including failures, is a
// response string for the client.
package command

import (
	"strings"

	"github.com/codefionn/bookshelf/internal/consts"
)

// Command is one parsed client message.
type Command struct {
	Verb string
	Args []string
}

// Parse splits a message on whitespace. The first field is the verb; there
// is no quoting or escaping.
func Parse(line string) Command {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}
	}
	return Command{Verb: fields[0], Args: fields[1:]}
}

// IsKill reports whether the message is the shutdown command.
func IsKill(line string) bool {
	return strings.TrimSpace(line) == consts.KillCommand
}

// Terminate frames a response for a byte stream: it ends with exactly one
// newline, so an empty response is an empty line.
func Terminate(response string) string {
	return strings.TrimRight(response, "\n") + "\n"
}
