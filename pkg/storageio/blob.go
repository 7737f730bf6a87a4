package storageio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/probeworks/gauntlet/pkg/logger"
)

// BlobConfig holds the object store connection settings.
type BlobConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool

	// ContentType applied to written objects. Defaults to text/plain.
	ContentType string
}

// Blob stores bytes in an S3-compatible bucket. Paths may be plain
// object keys or full URLs; URLs are stripped down to the key.
type Blob struct {
	client *minio.Client
	cfg    BlobConfig
	log    *slog.Logger

	initOnce sync.Once
	initErr  error
}

var _ Storage = (*Blob)(nil)

// NewBlob creates an object store storage. A nil logger defaults to the
// nop logger.
func NewBlob(cfg BlobConfig, log *slog.Logger) (*Blob, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("storageio: endpoint required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("storageio: access key and secret key required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storageio: bucket required")
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "text/plain"
	}
	if log == nil {
		log = logger.Nop()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("storageio: init client: %w", err)
	}

	return &Blob{client: client, cfg: cfg, log: log}, nil
}

// objectKey normalizes a path to an object key. Full URLs drop the
// scheme, host, and leading bucket segment; bare paths lose only a
// leading slash.
func (b *Blob) objectKey(path string) string {
	u, err := url.Parse(path)
	if err == nil && u.Scheme != "" && u.Host != "" {
		parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
		if len(parts) == 2 {
			return parts[1]
		}
		return ""
	}
	return strings.TrimPrefix(path, "/")
}

func (b *Blob) Read(ctx context.Context, path string) ([]byte, error) {
	key := b.objectKey(path)

	obj, err := b.client.GetObject(ctx, b.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, b.wrapError("read "+key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, b.wrapError("read "+key, err)
	}
	return data, nil
}

func (b *Blob) Write(ctx context.Context, path string, data []byte) error {
	key := b.objectKey(path)

	if err := b.ensureBucket(ctx); err != nil {
		return b.wrapError("ensure bucket", err)
	}

	_, err := b.client.PutObject(ctx, b.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: b.cfg.ContentType,
	})
	if err != nil {
		return b.wrapError("write "+key, err)
	}
	return nil
}

func (b *Blob) Exists(ctx context.Context, path string) (bool, error) {
	key := b.objectKey(path)

	_, err := b.client.StatObject(ctx, b.cfg.Bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, b.wrapError("stat "+key, err)
	}
	return true, nil
}

func (b *Blob) IsFile(ctx context.Context, path string) (bool, error) {
	key := b.objectKey(path)

	info, err := b.client.StatObject(ctx, b.cfg.Bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, b.wrapError("stat "+key, err)
	}
	return info.Size > 0, nil
}

// EnsureDirectory is a no-op: object stores have no directories.
func (b *Blob) EnsureDirectory(context.Context, string) error {
	return nil
}

func (b *Blob) ensureBucket(ctx context.Context) error {
	b.initOnce.Do(func() {
		exists, err := b.client.BucketExists(ctx, b.cfg.Bucket)
		if err != nil {
			b.initErr = err
			return
		}
		if exists {
			return
		}
		b.initErr = b.client.MakeBucket(ctx, b.cfg.Bucket, minio.MakeBucketOptions{Region: b.cfg.Region})
	})
	return b.initErr
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.StatusCode == 404 || resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
}

func (b *Blob) wrapError(op string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		b.log.Error("authentication failed: verify the bucket exists and the access key and secret key are valid",
			"bucket", b.cfg.Bucket, "code", resp.Code)
	}
	return fmt.Errorf("%s: %w", op, err)
}
