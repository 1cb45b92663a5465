package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrNotConfigured = errors.New("blob store not configured")

// BlobStore is the narrow capability the rest of the app depends on: put a
// blob under a key, sign a temporary read URL for a private blob, or build
// the permanent URL of a public one.
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	SignedGetURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	PublicURL(key string) string
	Delete(ctx context.Context, key string) error
}
