package remote

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"coolify-backup/internal/config"
)

// MinioSyncer uploads the backup tree to a MinIO-compatible bucket,
// preserving the snapshot layout under an optional prefix.
type MinioSyncer struct {
	client *minio.Client
	bucket string
	prefix string
}

func newMinioSyncer(cfg *config.Config) (*MinioSyncer, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &MinioSyncer{client: client, bucket: cfg.S3Bucket, prefix: cfg.S3Prefix}, nil
}

func (s *MinioSyncer) Sync(ctx context.Context, localRoot string) error {
	return walkUpload(localRoot, func(rel, abs string) error {
		object := s.objectName(rel)
		_, err := s.client.FPutObject(ctx, s.bucket, object, abs, minio.PutObjectOptions{})
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", object, err)
		}
		return nil
	})
}

func (s *MinioSyncer) Fetch(ctx context.Context, prefix, localRoot string) error {
	opts := minio.ListObjectsOptions{Prefix: s.objectName(prefix), Recursive: true}
	fetched := 0
	for obj := range s.client.ListObjects(ctx, s.bucket, opts) {
		if obj.Err != nil {
			return fmt.Errorf("failed to list remote objects: %w", obj.Err)
		}
		rel := strings.TrimPrefix(obj.Key, s.objectName(""))
		rel = strings.TrimPrefix(rel, "/")
		dest := filepath.Join(localRoot, filepath.FromSlash(rel))
		if err := s.client.FGetObject(ctx, s.bucket, obj.Key, dest, minio.GetObjectOptions{}); err != nil {
			return fmt.Errorf("failed to fetch %s: %w", obj.Key, err)
		}
		fetched++
	}
	if fetched == 0 {
		return fmt.Errorf("no remote objects under prefix %q", prefix)
	}
	return nil
}

// Test verifies bucket access with a write/read/delete round trip.
func (s *MinioSyncer) Test(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}

	object := s.objectName(fmt.Sprintf(".connection-test-%d", time.Now().Unix()))
	content := strings.NewReader("connection test")
	if _, err := s.client.PutObject(ctx, s.bucket, object, content, content.Size(), minio.PutObjectOptions{}); err != nil {
		return fmt.Errorf("failed to write test object: %w", err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, object, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete test object: %w", err)
	}
	return nil
}

func (s *MinioSyncer) objectName(rel string) string {
	if s.prefix == "" {
		return rel
	}
	return path.Join(s.prefix, rel)
}

// walkUpload visits every regular file under root with slash-separated
// relative paths.
func walkUpload(root string, upload func(rel, abs string) error) error {
	return filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		return upload(filepath.ToSlash(rel), p)
	})
}
