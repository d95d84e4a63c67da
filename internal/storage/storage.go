// Package storage provides the persistent key-value store behind the topic
// repository: a single table keyed by namespace string, holding opaque
// serialized values.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Read when the key has never been written.
// A fresh installation signals itself this way.
var ErrNotFound = errors.New("storage: key not found")

// Store is the read/write contract the repository depends on. Implementations
// must make Write atomic per key: a reader sees either the old value or the
// new one, never a partial write.
type Store interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, value []byte) error
}
