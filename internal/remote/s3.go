package remote

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscredentials "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"coolify-backup/internal/config"
)

// S3Syncer uploads the backup tree to an AWS S3 bucket.
type S3Syncer struct {
	client *s3.Client
	bucket string
	prefix string
}

func newS3Syncer(cfg *config.Config) (*S3Syncer, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(awscredentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey, cfg.S3SecretKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &S3Syncer{client: s3.NewFromConfig(awsCfg), bucket: cfg.S3Bucket, prefix: cfg.S3Prefix}, nil
}

func (s *S3Syncer) Sync(ctx context.Context, localRoot string) error {
	return walkUpload(localRoot, func(rel, abs string) error {
		f, err := os.Open(abs)
		if err != nil {
			return err
		}
		defer f.Close()

		object := s.objectName(rel)
		_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(object),
			Body:   f,
		})
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", object, err)
		}
		return nil
	})
}

func (s *S3Syncer) Fetch(ctx context.Context, prefix, localRoot string) error {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.objectName(prefix)),
	})

	fetched := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list remote objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			rel := strings.TrimPrefix(strings.TrimPrefix(key, s.objectName("")), "/")
			dest := filepath.Join(localRoot, filepath.FromSlash(rel))
			if err := s.download(ctx, key, dest); err != nil {
				return err
			}
			fetched++
		}
	}
	if fetched == 0 {
		return fmt.Errorf("no remote objects under prefix %q", prefix)
	}
	return nil
}

func (s *S3Syncer) Test(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("bucket %s is not accessible: %w", s.bucket, err)
	}
	return nil
}

func (s *S3Syncer) download(ctx context.Context, key, dest string) error {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", key, err)
	}
	defer result.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(f, result.Body); err != nil {
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return nil
}

func (s *S3Syncer) objectName(rel string) string {
	if s.prefix == "" {
		return rel
	}
	return path.Join(s.prefix, rel)
}
