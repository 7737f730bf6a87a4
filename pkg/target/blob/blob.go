// Package blob implements a prompt target that uploads each prompt as
// an object in an S3-compatible bucket. One conversation maps to one
// object, so the target is strictly single-turn.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/probeworks/gauntlet/pkg/logger"
	"github.com/probeworks/gauntlet/pkg/memory"
	"github.com/probeworks/gauntlet/pkg/prompt"
	"github.com/probeworks/gauntlet/pkg/target"
)

// Environment variables consulted when the corresponding Config fields
// are empty.
const (
	EnvEndpoint  = "GAUNTLET_BLOB_ENDPOINT"
	EnvAccessKey = "GAUNTLET_BLOB_ACCESS_KEY"
	EnvSecretKey = "GAUNTLET_BLOB_SECRET_KEY"
	EnvBucket    = "GAUNTLET_BLOB_BUCKET"
)

const defaultContentType = "text/plain"

// Config holds the bucket connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool

	// ContentType applied to uploaded objects. Defaults to text/plain.
	ContentType string
}

// Target uploads a single prompt piece per conversation and records the
// resulting object URL as the response.
type Target struct {
	client *minio.Client
	cfg    Config
	mem    memory.Driver
	log    *slog.Logger
	id     prompt.Identifier

	initOnce sync.Once
	initErr  error
}

var _ target.Target = (*Target)(nil)

// New creates the target. The memory driver is required; a nil logger
// defaults to the nop logger.
func New(cfg Config, mem memory.Driver, log *slog.Logger) (*Target, error) {
	if mem == nil {
		return nil, fmt.Errorf("blob: %w", memory.ErrNotConfigured)
	}
	if log == nil {
		log = logger.Nop()
	}

	if cfg.Endpoint == "" {
		cfg.Endpoint = os.Getenv(EnvEndpoint)
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("blob: endpoint required: set Config.Endpoint or %s", EnvEndpoint)
	}
	if cfg.AccessKey == "" {
		cfg.AccessKey = os.Getenv(EnvAccessKey)
	}
	if cfg.SecretKey == "" {
		cfg.SecretKey = os.Getenv(EnvSecretKey)
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("blob: access key and secret key required: set Config or %s/%s", EnvAccessKey, EnvSecretKey)
	}
	if cfg.Bucket == "" {
		cfg.Bucket = os.Getenv(EnvBucket)
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("blob: bucket required: set Config.Bucket or %s", EnvBucket)
	}
	if cfg.ContentType == "" {
		cfg.ContentType = defaultContentType
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("blob: init client: %w", err)
	}

	return &Target{
		client: client,
		cfg:    cfg,
		mem:    mem,
		log:    log,
		id:     prompt.NewIdentifier(prompt.KindTarget, "blob_storage", "target/blob"),
	}, nil
}

func (t *Target) Identifier() prompt.Identifier {
	return t.id
}

// Send validates the group, uploads its single piece as
// <conversation_id>.txt, persists both sides of the exchange, and
// returns a response group whose value is the object URL. Validation
// failures persist nothing.
func (t *Target) Send(ctx context.Context, group *prompt.Group) (*prompt.Group, error) {
	if err := t.validate(ctx, group); err != nil {
		return nil, err
	}

	piece := group.First()
	key := piece.ConversationID + ".txt"

	if err := t.upload(ctx, key, []byte(piece.ConvertedValue)); err != nil {
		return nil, err
	}

	objectURL := fmt.Sprintf("%s/%s/%s", t.client.EndpointURL(), t.cfg.Bucket, key)

	piece.Sequence = 0
	piece.TargetIdentifier = t.id
	reply := target.ResponsePiece(piece, objectURL, prompt.DataTypeURL, 1)

	if err := t.mem.AddPieces(ctx, piece, reply); err != nil {
		return nil, fmt.Errorf("persist exchange: %w", err)
	}

	return prompt.NewGroup(reply), nil
}

func (t *Target) validate(ctx context.Context, group *prompt.Group) error {
	if err := group.Validate(); err != nil {
		return err
	}
	if len(group.Pieces) > 1 {
		return target.ErrTooManyPieces
	}

	piece := group.First()
	switch piece.ConvertedValueDataType {
	case prompt.DataTypeText, prompt.DataTypeURL:
	default:
		return fmt.Errorf("%w: %s", target.ErrUnsupportedDataType, piece.ConvertedValueDataType)
	}

	history, err := t.mem.PiecesByConversation(ctx, piece.ConversationID)
	if err != nil {
		return fmt.Errorf("load conversation %s: %w", piece.ConversationID, err)
	}
	if len(history) > 0 {
		return target.ErrSingleTurnOnly
	}

	return nil
}

func (t *Target) ensureBucket(ctx context.Context) error {
	t.initOnce.Do(func() {
		exists, err := t.client.BucketExists(ctx, t.cfg.Bucket)
		if err != nil {
			t.initErr = err
			return
		}
		if exists {
			return
		}
		t.initErr = t.client.MakeBucket(ctx, t.cfg.Bucket, minio.MakeBucketOptions{Region: t.cfg.Region})
	})
	return t.initErr
}

func (t *Target) upload(ctx context.Context, key string, data []byte) error {
	if err := t.ensureBucket(ctx); err != nil {
		return t.wrapUploadError("ensure bucket", err)
	}

	t.log.Info("uploading prompt object", "bucket", t.cfg.Bucket, "key", key)

	_, err := t.client.PutObject(ctx, t.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: t.cfg.ContentType,
	})
	if err != nil {
		return t.wrapUploadError("upload object", err)
	}
	return nil
}

// wrapUploadError logs actionable guidance for authentication failures
// and returns the underlying error unchanged inside the wrap.
func (t *Target) wrapUploadError(op string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		t.log.Error("authentication failed: verify the bucket exists and the access key and secret key are valid",
			"bucket", t.cfg.Bucket, "code", resp.Code)
	}
	return fmt.Errorf("%s: %w", op, err)
}
