// Package blob stores extracted article bodies in MinIO/S3-compatible
// object storage. Objects are content-addressed by the source URL: the key
// is derived from the URL's SHA-256, so re-ingesting the same URL overwrites
// the same object. The core never interprets the body, it only stores and
// fetches it.
package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// maxBodyBytes guards against unbounded article bodies (2 MiB of plain text
// is far beyond any realistic extraction).
const maxBodyBytes int64 = 2 * 1024 * 1024

// ErrNotFound indicates no body is stored for the given URL.
var ErrNotFound = errors.New("object not found")

// Config holds MinIO connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Store wraps a MinIO client for article body storage.
type Store struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// New connects to MinIO and ensures the bucket exists.
// A nil logger falls back to slog.Default().
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(checkCtx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(checkCtx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("creating bucket %q: %w", cfg.Bucket, err)
		}
	}

	return &Store{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

// BodyKey derives the object key for an article body from its source URL.
// The key is stable: the same URL always maps to the same object.
func BodyKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return path.Join("articles", hex.EncodeToString(sum[:])+".txt")
}

// PutArticleBody stores the extracted plain-text body for the given URL,
// overwriting any previous version.
func (s *Store) PutArticleBody(ctx context.Context, url string, body []byte) error {
	if int64(len(body)) > maxBodyBytes {
		return fmt.Errorf("article body exceeds %d bytes", maxBodyBytes)
	}

	putCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	key := BodyKey(url)
	_, err := s.client.PutObject(putCtx, s.bucket, key,
		bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"})
	if err != nil {
		return fmt.Errorf("storing body for %q: %w", url, err)
	}

	s.logger.Debug("stored article body", "key", key, "bytes", len(body))
	return nil
}

// GetArticleBody fetches the stored body for the given URL.
// Returns ErrNotFound when nothing is stored.
func (s *Store) GetArticleBody(ctx context.Context, url string) ([]byte, error) {
	getCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	key := BodyKey(url)
	obj, err := s.client.GetObject(getCtx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("fetching body for %q: %w", url, err)
	}
	defer func() {
		if cerr := obj.Close(); cerr != nil {
			s.logger.Warn("closing object reader", "key", key, "error", cerr)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(obj, maxBodyBytes+1))
	if err != nil {
		// MinIO reports missing objects on first read, not on GetObject.
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return nil, fmt.Errorf("body for %q: %w", url, ErrNotFound)
		}
		return nil, fmt.Errorf("reading body for %q: %w", url, err)
	}
	if int64(len(data)) > maxBodyBytes {
		return nil, fmt.Errorf("stored body for %q exceeds %d bytes", url, maxBodyBytes)
	}

	return data, nil
}
