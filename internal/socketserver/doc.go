// Package socketserver serves the bookshelf text protocol over TCP.
//
// # Architecture
//
//   - Server: owns the listener, enforces the connection limit and the
//     shutdown sequence
//   - Hub: tracks live clients so Stop can close them all
//   - Client: one goroutine per connection that reads a message, runs it
//     through the command dispatcher and writes the response
//
// # Wire protocol
//
// One read is one message, bounded by the configured maximum message size.
// Every response is plain text terminated by a single newline. A message
// longer than the limit is either truncated or rejected, depending on the
// overflow policy. The message "killcommand" stops the server.
//
// Each connection has its own session. The only state shared between
// connections is the store, which serializes its own operations, so a slow
// catalog request only delays the connection that issued it.
package socketserver
