package storage

import (
	"context"
	"fmt"
)

type Config struct {
	Driver   string // "none", "local" or "s3"
	LocalDir string
	S3Region string
	S3Bucket string
	S3Prefix string
}

// New builds the archive store from config. Driver "none" (or empty) returns
// nil, which disables archiving.
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Driver {
	case "", "none":
		return nil, nil

	case "local":
		dir := cfg.LocalDir
		if dir == "" {
			dir = "./storage/archive"
		}
		return NewLocal(dir), nil

	case "s3":
		if cfg.S3Region == "" || cfg.S3Bucket == "" {
			return nil, fmt.Errorf("storage: s3 driver requires region and bucket")
		}
		return NewS3(ctx, S3Config{
			Region: cfg.S3Region,
			Bucket: cfg.S3Bucket,
			Prefix: cfg.S3Prefix,
		})

	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}
