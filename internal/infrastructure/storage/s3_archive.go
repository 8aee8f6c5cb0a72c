// Package storage archives delivered outbox events to S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	jsoniter "github.com/json-iterator/go"
	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const contentTypeJSONLines = "application/x-ndjson"

// S3EventArchive writes batches of delivered outbox entries as JSON Lines
// objects. It works against AWS S3 and S3-compatible stores (MinIO, RustFS).
type S3EventArchive struct {
	client *s3.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// S3EventArchiveOption is a functional option for configuring S3EventArchive
type S3EventArchiveOption func(*S3EventArchive)

// WithLogger sets a custom logger for S3EventArchive
func WithLogger(logger *zap.Logger) S3EventArchiveOption {
	return func(a *S3EventArchive) {
		a.logger = logger
	}
}

// NewS3EventArchive creates an archive from configuration. Without static
// keys the default AWS credential chain is used.
func NewS3EventArchive(ctx context.Context, cfg *config.ArchiveConfig, opts ...S3EventArchiveOption) (*S3EventArchive, error) {
	if cfg == nil {
		return nil, errors.New("archive configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("archive bucket is required")
	}
	if (cfg.AccessKey == "") != (cfg.SecretKey == "") {
		return nil, errors.New("archive access key and secret key must be set together")
	}

	endpoint, err := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	archive := &S3EventArchive{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(archive)
	}
	return archive, nil
}

func normalizeEndpoint(endpoint string, useSSL bool) (string, error) {
	if endpoint == "" {
		return "", nil
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if useSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	if _, err := url.Parse(endpoint); err != nil {
		return "", fmt.Errorf("invalid archive endpoint: %w", err)
	}
	return endpoint, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (a *S3EventArchive) EnsureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	a.logger.Info("Creating archive bucket", zap.String("bucket", a.bucket))
	_, err = a.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(a.bucket)})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// archivedEvent is one line of an archive object
type archivedEvent struct {
	EventID       string              `json:"event_id"`
	EventType     string              `json:"event_type"`
	AggregateType string              `json:"aggregate_type"`
	AggregateID   string              `json:"aggregate_id"`
	Payload       jsoniter.RawMessage `json:"payload"`
	CreatedAt     time.Time           `json:"created_at"`
	ProcessedAt   *time.Time          `json:"processed_at,omitempty"`
}

// Archive uploads entries as a single object. The key is derived from the
// first entry, so re-archiving the same batch overwrites the same object.
func (a *S3EventArchive) Archive(ctx context.Context, entries []*shared.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}

	body, err := EncodeEntries(entries)
	if err != nil {
		return err
	}
	key := a.ObjectKey(entries[0])

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentTypeJSONLines),
	})
	if err != nil {
		return fmt.Errorf("failed to upload archive %s: %w", key, err)
	}

	a.logger.Info("Archived outbox entries",
		zap.String("bucket", a.bucket),
		zap.String("key", key),
		zap.Int("count", len(entries)),
	)
	return nil
}

// ObjectKey places a batch under prefix/yyyy/mm/dd by the first entry's delivery time
func (a *S3EventArchive) ObjectKey(first *shared.OutboxEntry) string {
	at := first.CreatedAt
	if first.ProcessedAt != nil {
		at = *first.ProcessedAt
	}
	at = at.UTC()
	name := fmt.Sprintf("%d-%s.jsonl", at.UnixNano(), first.EventID)
	return path.Join(a.prefix, at.Format("2006/01/02"), name)
}

// Bucket returns the bucket name
func (a *S3EventArchive) Bucket() string {
	return a.bucket
}

// EncodeEntries renders entries as JSON Lines
func EncodeEntries(entries []*shared.OutboxEntry) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range entries {
		payload := jsoniter.RawMessage(e.Payload)
		if !json.Valid(payload) {
			return nil, fmt.Errorf("outbox entry %s has a non-JSON payload", e.ID)
		}
		if err := enc.Encode(archivedEvent{
			EventID:       e.EventID.String(),
			EventType:     e.EventType,
			AggregateType: e.AggregateType,
			AggregateID:   e.AggregateID,
			Payload:       payload,
			CreatedAt:     e.CreatedAt,
			ProcessedAt:   e.ProcessedAt,
		}); err != nil {
			return nil, fmt.Errorf("failed to encode outbox entry %s: %w", e.ID, err)
		}
	}
	return buf.Bytes(), nil
}
