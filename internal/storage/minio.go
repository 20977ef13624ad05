// Package storage persists batch artifacts (source files and generated
// workbooks) in an S3-compatible object store.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"github.com/facturaIA/invoice-report-service/internal/config"
)

const presignExpiry = 24 * time.Hour

// Store wraps the object-store client for one bucket.
type Store struct {
	client *minio.Client
	bucket string
	log    zerolog.Logger
}

// New connects to the object store and verifies the configured bucket exists.
func New(ctx context.Context, cfg config.StorageConfig, log zerolog.Logger) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object-store client: %w", err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(checkCtx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", cfg.Bucket)
	}

	return &Store{
		client: client,
		bucket: cfg.Bucket,
		log:    log.With().Str("component", "storage").Logger(),
	}, nil
}

// UploadSourceFile stores one uploaded input file under the batch prefix and
// returns its object path.
func (s *Store) UploadSourceFile(ctx context.Context, batchID, filename string, data []byte) (string, error) {
	objectName := fmt.Sprintf("batches/%s/origen/%s", batchID, filename)
	return s.put(ctx, objectName, data, contentTypeFor(filename))
}

// UploadReport stores one generated workbook under the batch prefix and
// returns its object path.
func (s *Store) UploadReport(ctx context.Context, batchID, filename string, data []byte) (string, error) {
	objectName := fmt.Sprintf("batches/%s/informes/%s", batchID, filename)
	return s.put(ctx, objectName, data,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
}

func (s *Store) put(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", objectName, err)
	}

	s.log.Debug().Str("object", objectName).Int("bytes", len(data)).Msg("object stored")
	return fmt.Sprintf("%s/%s", s.bucket, objectName), nil
}

// PresignedURL generates a time-limited download URL for an object path as
// returned by the upload methods.
func (s *Store) PresignedURL(ctx context.Context, objectPath string) (string, error) {
	objectName := strings.TrimPrefix(objectPath, s.bucket+"/")

	url, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, presignExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return url.String(), nil
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
