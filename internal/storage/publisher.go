// Package storage publishes generated plan artifacts to S3-compatible
// object storage so downstream consumers (dashboards, notebooks) can pick
// them up without filesystem access. Publishing is best-effort: failures
// are logged by callers and never fail a pipeline run.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/optilens/demand-engine/internal/config"
)

// Publisher uploads local artifact files to a bucket.
type Publisher interface {
	Publish(ctx context.Context, localPath string, key string) error
}

// MinioPublisher implements Publisher against any S3-compatible endpoint.
type MinioPublisher struct {
	client *minio.Client
	bucket string
}

func NewMinioPublisher(cfg config.PublishConfig) (*MinioPublisher, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("publish endpoint must be provided")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("publish credentials must be provided")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("publish bucket must be provided")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}

	return &MinioPublisher{client: client, bucket: cfg.Bucket}, nil
}

func (p *MinioPublisher) Publish(ctx context.Context, localPath string, key string) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", localPath, err)
	}
	if key == "" {
		key = filepath.Base(localPath)
	}

	_, err = p.client.FPutObject(ctx, p.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: "text/csv",
	})
	if err != nil {
		return fmt.Errorf("upload %s (%d bytes) to %s/%s: %w", localPath, info.Size(), p.bucket, key, err)
	}
	return nil
}
