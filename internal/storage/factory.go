package storage

import (
	"context"
	"fmt"
	"strings"
)

// NewStorage opens the backup bucket described by cfg and makes sure it
// exists. An empty cfg.Type is detected from the endpoint.
func NewStorage(ctx context.Context, cfg *S3Config) (ObjectStorage, error) {
	switch cfg.Type {
	case "":
		cfg.Type = detectStorageType(cfg.Endpoint)
	case StorageTypeR2, StorageTypeS3, StorageTypeS3Compatible:
	default:
		return nil, fmt.Errorf("storage: unknown type %q", cfg.Type)
	}

	s, err := NewS3Storage(cfg)
	if err != nil {
		return nil, err
	}
	if err := s.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)
	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case endpoint == "", strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	}
	return StorageTypeS3Compatible
}
