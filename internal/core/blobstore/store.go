package blobstore

import (
	"context"
	"fmt"

	"docstream/internal/config"
)

// Store persists uploaded source documents between ingestion and
// processing. Locations are opaque strings minted by Put; the queue entry
// carries them to the worker.
type Store interface {
	Put(ctx context.Context, jobID, filename string, data []byte) (location string, err error)
	Get(ctx context.Context, location string) ([]byte, error)
	Delete(ctx context.Context, location string) error
}

// FromConfig selects the backing store. Both the API and the workers must
// run with the same BLOB_STORE setting or workers cannot resolve the
// locations the API minted.
func FromConfig(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.BlobStore {
	case "local", "":
		return NewLocal(cfg.TmpDir)
	case "s3":
		return NewS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown BLOB_STORE %q (want local or s3)", cfg.BlobStore)
	}
}
