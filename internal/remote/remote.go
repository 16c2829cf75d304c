// Package remote ships the backup root to remote storage. Two backend
// families exist: mirror-style sync (rsync) and cloud object storage
// (MinIO-compatible or AWS S3). Absence of configuration is a silent no-op
// at the call site, not an error.
package remote

import (
	"context"
	"fmt"

	"coolify-backup/internal/config"
)

// Syncer is a remote-sync backend.
type Syncer interface {
	// Sync pushes the local backup tree to the remote target.
	Sync(ctx context.Context, localRoot string) error
	// Fetch pulls a remote subtree down under localRoot.
	Fetch(ctx context.Context, prefix, localRoot string) error
	// Test verifies connectivity and write access.
	Test(ctx context.Context) error
}

// New builds the configured backend. A nil Syncer with nil error means
// remote sync is disabled.
func New(cfg *config.Config) (Syncer, error) {
	switch cfg.RemoteBackend {
	case "":
		return nil, nil
	case "rsync":
		return &RsyncSyncer{Target: cfg.RsyncTarget}, nil
	case "minio":
		return newMinioSyncer(cfg)
	case "s3":
		return newS3Syncer(cfg)
	default:
		return nil, fmt.Errorf("unknown remote backend %q", cfg.RemoteBackend)
	}
}
