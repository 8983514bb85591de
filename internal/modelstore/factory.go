package modelstore

import (
	"context"
	"fmt"

	"filecat/internal/config"
	"filecat/internal/filecat"
)

// NewModelStoreFromConfig creates a ModelStore based on the model store
// config type. Encryption is layered on by the caller, which owns the keys.
func NewModelStoreFromConfig(ctx context.Context, cfg config.ModelStoreConfig) (filecat.ModelStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem model store requires fs_root to be set")
		}
		return NewFileSystemStore(cfg.FSRoot)
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 model store requires s3_bucket to be set")
		}
		client, err := NewS3Client(ctx, S3Options{
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return NewS3Store(client, cfg.S3Bucket, cfg.S3Prefix)
	default:
		return nil, fmt.Errorf("unknown model store type: %s", cfg.Type)
	}
}
