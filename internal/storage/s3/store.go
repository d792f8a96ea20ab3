package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sqlchat/sqlchat/internal/config"
	"github.com/sqlchat/sqlchat/internal/storage"
)

// bucketClient is the part of *minio.Client the archive touches.
type bucketClient interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

// Store uploads transcript archives to an S3-compatible bucket under a fixed prefix.
type Store struct {
	client bucketClient
	bucket string
	prefix string
}

func New(ctx context.Context, cfg config.ArchiveConfig) (*Store, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("archive endpoint is required")
	}
	endpoint, secure, err := parseEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: strings.TrimSpace(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	store, err := newWithClient(cfg.Bucket, cfg.Prefix, mc)
	if err != nil {
		return nil, err
	}
	if cfg.AutoCreateBucket {
		if err := store.ensureBucket(ctx, strings.TrimSpace(cfg.Region)); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func newWithClient(bucket, prefix string, c bucketClient) (*Store, error) {
	if c == nil {
		return nil, fmt.Errorf("client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}
	return &Store{client: c, bucket: strings.TrimSpace(bucket), prefix: cleanPrefix(prefix)}, nil
}

// PutTranscript writes one transcript under <prefix>/<owner>/date=YYYY-MM-DD/
// and tags it with the session it came from.
func (s *Store) PutTranscript(ctx context.Context, object storage.TranscriptObject) (storage.Stored, error) {
	key, err := storage.BuildTranscriptKey(object.Owner, object.SessionID, object.ArchivedAt)
	if err != nil {
		return storage.Stored{}, err
	}
	key = path.Join(s.prefix, key)

	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(object.Data), int64(len(object.Data)), minio.PutObjectOptions{
		ContentType: object.ContentType,
		UserMetadata: map[string]string{
			"session-id": object.SessionID,
			"owner":      object.Owner,
			"variant":    object.Variant,
			"turns":      strconv.Itoa(object.Turns),
		},
	})
	if err != nil {
		return storage.Stored{}, fmt.Errorf("put transcript %q: %w", key, err)
	}
	return storage.Stored{Key: key, Size: info.Size, ETag: info.ETag}, nil
}

// Ready reports whether the archive bucket is reachable and exists.
func (s *Store) Ready(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check archive bucket %q: %w", s.bucket, err)
	}
	if !exists {
		return fmt.Errorf("archive bucket %q does not exist", s.bucket)
	}
	return nil
}

func (s *Store) ensureBucket(ctx context.Context, region string) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check archive bucket %q: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create archive bucket %q: %w", s.bucket, err)
	}
	return nil
}

func cleanPrefix(prefix string) string {
	prefix = path.Clean(strings.Trim(strings.TrimSpace(prefix), "/"))
	if prefix == "." {
		return ""
	}
	return prefix
}

func parseEndpoint(raw string, useSSL bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return raw, useSSL, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse archive endpoint: %w", err)
	}
	if parsed.Host == "" {
		return "", false, fmt.Errorf("archive endpoint host is required")
	}
	return parsed.Host, parsed.Scheme == "https", nil
}
