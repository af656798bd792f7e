package consts

import "time"

// Protocol limits
const (
	// DefaultMaxMessageBytes is the per-session receive buffer capacity
	DefaultMaxMessageBytes = 2048
	// MinMaxMessageBytes is the smallest buffer a config may ask for
	MinMaxMessageBytes = 64
	// BooksPerPage is the fixed size of a search result page
	BooksPerPage = 10
	// KillCommand is the input literal that shuts the server down
	KillCommand = "killcommand"
)

// Network defaults
const (
	// DefaultPort is the TCP port the server listens on
	DefaultPort = 7777
	// DefaultMaxConnections bounds concurrently served clients
	DefaultMaxConnections = 256
	// OverflowDrainTimeout is how long the tail of an oversized message is drained
	OverflowDrainTimeout = 20 * time.Millisecond
	// WriteTimeout bounds a single response write
	WriteTimeout = 10 * time.Second
)

// Persistence defaults
const (
	// DefaultSaveInitialDelay is the delay before the first snapshot
	DefaultSaveInitialDelay = 10 * time.Second
	// DefaultSaveInterval is the period between snapshots
	DefaultSaveInterval = 60 * time.Second
	// UsersArtifact is the default name of the accounts artifact
	UsersArtifact = "users_table.json"
	// ListsArtifact is the default name of the shelf artifact
	ListsArtifact = "lists_table.json"
)

// Catalog defaults
const (
	// GoogleBooksURL is the volumes endpoint of the Google Books API
	GoogleBooksURL = "https://www.googleapis.com/books/v1/volumes"
	// DefaultCatalogTimeout bounds a single catalog request
	DefaultCatalogTimeout = 10 * time.Second
	// DefaultDetailCacheEntries bounds the selected-item detail cache
	DefaultDetailCacheEntries = 1024
)
