// Package storage keeps generated exports in an S3 compatible bucket so they
// can be handed out as short lived links.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"advisory/api/internal/config"
)

type Exports interface {
	PutExport(ctx context.Context, filename, contentType string, data []byte) (Object, error)
}

// Object is a stored export and a presigned link to fetch it.
type Object struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type MinIOClient struct {
	client *minio.Client
	bucket string
	expiry time.Duration
	logger *slog.Logger
}

func NewMinIOClient(ctx context.Context, cfg config.MinIO, logger *slog.Logger) (*MinIOClient, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	m := &MinIOClient{client: client, bucket: cfg.Bucket, expiry: expiry, logger: logger}
	if err := m.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MinIOClient) ensureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", m.bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", m.bucket, err)
	}
	m.logger.InfoContext(ctx, "export bucket created", "bucket", m.bucket)
	return nil
}

// PutExport uploads data and returns a presigned download link.
func (m *MinIOClient) PutExport(ctx context.Context, filename, contentType string, data []byte) (Object, error) {
	now := time.Now().UTC()
	key := objectName(now, uuid.NewString(), filename)

	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{
			ContentType:        contentType,
			ContentDisposition: fmt.Sprintf("attachment; filename=%q", filename),
			UserMetadata: map[string]string{
				"original-filename": filename,
				"uploaded-at":       now.Format(time.RFC3339),
			},
		})
	if err != nil {
		return Object{}, fmt.Errorf("upload export: %w", err)
	}

	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", filename))
	link, err := m.client.PresignedGetObject(ctx, m.bucket, key, m.expiry, params)
	if err != nil {
		return Object{}, fmt.Errorf("presign export: %w", err)
	}
	return Object{Key: key, URL: link.String(), ExpiresAt: now.Add(m.expiry)}, nil
}

// objectName lays exports out as exports/YYYY/MM/<id><ext>.
func objectName(now time.Time, id, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("exports/%d/%02d/%s%s", now.Year(), now.Month(), id, ext)
}
