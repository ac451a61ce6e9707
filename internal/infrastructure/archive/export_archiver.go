// Package archive stores generated CSV exports in an S3-compatible bucket so
// field exports survive the station machine.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mdrrmo/evac-gateway/internal/core/ports"
	"github.com/mdrrmo/evac-gateway/internal/infrastructure/config"
)

type ExportArchiver struct {
	client *minio.Client
	bucket string
	region string
}

var _ ports.ExportArchiver = (*ExportArchiver)(nil)

func NewExportArchiver(cfg config.ExportConfig) (*ExportArchiver, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init object store: %w", err)
	}

	return &ExportArchiver{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// EnsureBucket creates the export bucket when it does not exist yet.
func (a *ExportArchiver) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", a.bucket, err)
	}
	if !exists {
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{Region: a.region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", a.bucket, err)
		}
	}
	return nil
}

// Store uploads one export under its filename.
func (a *ExportArchiver) Store(ctx context.Context, name string, body []byte) error {
	_, err := a.client.PutObject(ctx, a.bucket, name, bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: "text/csv"})
	if err != nil {
		return fmt.Errorf("store export %s: %w", name, err)
	}
	return nil
}
