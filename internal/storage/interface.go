package storage

import (
	"context"
	"io"
)

// Object is one blob and the metadata stored next to it.
type Object struct {
	Key         string
	Body        io.Reader
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectStorage is the subset of an object store the backup archive needs.
type ObjectStorage interface {
	// Put writes obj, replacing anything already under obj.Key.
	Put(ctx context.Context, obj Object) error

	// Get opens the object stored under key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// URL returns the public URL of key.
	URL(key string) string
}
