// Package storage puts uploaded media into object storage buckets.
package storage

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"openstream/logging"
)

const (
	BucketVideos     = "videos"
	BucketThumbnails = "thumbnails"
	BucketAvatars    = "avatars"
)

// Buckets lists every bucket the service writes to.
var Buckets = []string{BucketVideos, BucketThumbnails, BucketAvatars}

// ObjectStore is the object storage surface used by the handlers.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, bucket, key string) error
	PublicURL(bucket, key string) string
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeName reduces a client file name to [A-Za-z0-9._-].
func SanitizeName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "file"
	}
	return name
}

// ObjectName builds a unique object key of the form <unix-millis>_<name>.
func ObjectName(now time.Time, fileName string) string {
	return fmt.Sprintf("%d_%s", now.UnixMilli(), SanitizeName(fileName))
}

// MinIO stores objects in a MinIO or S3-compatible server.
type MinIO struct {
	client    *minio.Client
	publicURL string
}

// NewMinIO connects to endpoint. publicURL is the browser-facing prefix for
// objects; when empty, URLs are relative (/storage/{bucket}/{key}).
func NewMinIO(endpoint, accessKey, secretKey string, useSSL bool, publicURL string) (*MinIO, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to minio: %w", err)
	}
	return &MinIO{client: client, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// EnsureBuckets creates any missing bucket.
func (m *MinIO) EnsureBuckets(ctx context.Context) error {
	for _, b := range Buckets {
		exists, err := m.client.BucketExists(ctx, b)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", b, err)
		}
		if exists {
			continue
		}
		if err := m.client.MakeBucket(ctx, b, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", b, err)
		}
		logging.Info().Str("bucket", b).Msg("created bucket")
	}
	return nil
}

func (m *MinIO) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := m.client.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (m *MinIO) Remove(ctx context.Context, bucket, key string) error {
	if err := m.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (m *MinIO) PublicURL(bucket, key string) string {
	return PublicURL(m.publicURL, bucket, key)
}

// PublicURL joins base, bucket and key. With an empty base the path is
// /storage/{bucket}/{key}, which the reverse proxy maps onto MinIO.
func PublicURL(base, bucket, key string) string {
	if key == "" {
		return ""
	}
	if base == "" {
		base = "/storage"
	}
	return base + "/" + bucket + "/" + key
}

// Ping checks that the server answers.
func (m *MinIO) Ping(ctx context.Context) error {
	_, err := m.client.BucketExists(ctx, BucketVideos)
	return err
}
