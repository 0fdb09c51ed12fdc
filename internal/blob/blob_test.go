package blob

import (
	"context"
	"testing"

	"herdcore/internal/config"
)

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	fsStore, err := Open(ctx, config.BlobConfig{Driver: config.BlobFilesystem, FSRoot: t.TempDir()})
	if err != nil || fsStore.Driver() != "fs" {
		t.Fatalf("fs: %v", err)
	}
	mem, err := Open(ctx, config.BlobConfig{Driver: config.BlobMemory})
	if err != nil || mem.Driver() != "memory" {
		t.Fatalf("memory: %v", err)
	}
	s3Store, err := Open(ctx, config.BlobConfig{Driver: config.BlobS3, S3: config.S3Config{Bucket: "b", Endpoint: "http://localhost:9000", PathStyle: true}})
	if err != nil || s3Store.Driver() != "s3" {
		t.Fatalf("s3: %v", err)
	}
	if _, err := Open(ctx, config.BlobConfig{Driver: "gcs"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
