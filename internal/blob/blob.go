// Package blob selects an object store backend. Callers depend on Store and
// never import the infra packages directly.
package blob

import (
	"context"
	"fmt"

	"herdcore/internal/blob/core"
	"herdcore/internal/config"
	"herdcore/internal/infra/blob/fs"
	"herdcore/internal/infra/blob/memory"
	"herdcore/internal/infra/blob/s3"
)

type (
	Driver     = core.Driver
	PutOptions = core.PutOptions
	Info       = core.Info
	Store      = core.Store
)

var (
	ErrExists   = core.ErrExists
	ErrNotFound = core.ErrNotFound
)

// NewMemory returns an in-memory store.
func NewMemory() Store { return memory.New() }

// Open builds the store named by cfg.Driver.
func Open(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	switch cfg.Driver {
	case config.BlobFilesystem, "":
		return fs.New(cfg.FSRoot)
	case config.BlobMemory:
		return memory.New(), nil
	case config.BlobS3:
		return s3.New(ctx, s3.Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}
