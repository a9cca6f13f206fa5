package contentstore

import (
	"context"
	"fmt"
)

// Options selects and parameterizes a store backend.
type Options struct {
	Backend  string // "memory", "bolt" or "s3"
	BoltPath string
	S3Bucket string
	S3Prefix string
}

// New creates a Store implementation from the configured backend.
func New(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "bolt":
		if opts.BoltPath == "" {
			return nil, fmt.Errorf("contentstore: bolt backend requires a db path")
		}
		return OpenBoltStore(opts.BoltPath)
	case "s3":
		return NewS3Store(ctx, opts.S3Bucket, opts.S3Prefix)
	default:
		return nil, fmt.Errorf("contentstore: unknown backend %q", opts.Backend)
	}
}
