package storage

import (
	"context"
	"time"
)

// DefaultKey names the configuration document when no key is given.
const DefaultKey = "default"

// Sink is a key-value persistence backend for configuration documents.
type Sink interface {
	// Get returns the stored bytes of key. found is false when nothing has
	// been stored under key yet.
	Get(ctx context.Context, key string) (data []byte, found bool, err error)

	// Put replaces the bytes stored under key atomically.
	Put(ctx context.Context, key string, data []byte) error
}

// Revision is one saved version of a document.
type Revision struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Historian is implemented by sinks that keep every saved version.
type Historian interface {
	Revisions(ctx context.Context, key string, limit int) ([]Revision, error)
	Revision(ctx context.Context, id string) ([]byte, error)
}
