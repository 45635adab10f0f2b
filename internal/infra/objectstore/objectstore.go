// Package objectstore provides the primary mirror backend: a flat key/value
// object interface with memory and redis implementations.
package objectstore

import "context"

// Store is the put/get capability the publisher and cascade depend on.
// GetObject returns (nil, nil) when the key is absent.
type Store interface {
	Name() string
	PutObject(ctx context.Context, key string, data []byte) error
	GetObject(ctx context.Context, key string) ([]byte, error)
	// URL returns the externally citable location of a key.
	URL(key string) string
}
