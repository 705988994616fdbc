package domain

import (
	"context"
	"io"
)

// BlobWriter uploads objects to an object store.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader retrieves and inspects objects in an object store.
type BlobReader interface {
	// Get returns the object body. The caller closes the reader.
	// Returns ErrNotFound when the object does not exist.
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string) error
}
