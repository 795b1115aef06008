// Package metadata is the agent's key/value scratch space: the client id,
// per-location pull checkpoints and local files awaiting upload.
package metadata

import (
	"context"
)

type Repository interface {
	// Get returns (nil, nil) when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// List returns every pair whose key starts with prefix.
	List(ctx context.Context, prefix string) (map[string][]byte, error)
	GetInt64(ctx context.Context, key string) (*int64, error)
	SetInt64(ctx context.Context, key string, v int64) error
}
