// Package storage keeps review screenshots in object storage.
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
	"github.com/google/uuid"
	reviewapp "github.com/reviewfolio/backend/internal/application/review"
	infraconfig "github.com/reviewfolio/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Ensure S3ImageStore implements ImageStore
var _ reviewapp.ImageStore = (*S3ImageStore)(nil)

// ErrObjectTooLarge is returned when a screenshot exceeds the configured object size
var ErrObjectTooLarge = errors.New("image exceeds the maximum object size")

// S3ImageStore uploads screenshots to an S3-compatible bucket (AWS S3, MinIO, RustFS)
type S3ImageStore struct {
	client        *s3.Client
	bucket        string
	keyPrefix     string
	baseURL       string
	maxBytes      int64
	uploadTimeout time.Duration
	logger        *zap.Logger
	now           func() time.Time
	newID         func() uuid.UUID
}

// Option configures an S3ImageStore
type Option func(*S3ImageStore)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *S3ImageStore) {
		s.logger = logger
	}
}

// NewS3ImageStore creates a store from configuration. Without an access key
// the default AWS credential chain is used.
func NewS3ImageStore(cfg *infraconfig.StorageConfig, opts ...Option) (*S3ImageStore, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKeyID != "" && cfg.SecretKey == "" {
		return nil, errors.New("storage secret key is required with an access key")
	}

	region := cfg.Region
	if region == "" {
		region = "ap-northeast-2"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint != "" {
		if _, err := url.ParseRequestURI(endpoint); err != nil {
			return nil, fmt.Errorf("invalid storage endpoint: %w", err)
		}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	store := &S3ImageStore{
		client:        client,
		bucket:        cfg.Bucket,
		keyPrefix:     strings.Trim(cfg.KeyPrefix, "/"),
		baseURL:       publicBaseURL(cfg, endpoint, region),
		maxBytes:      cfg.MaxObjectBytes,
		uploadTimeout: cfg.UploadTimeout,
		logger:        zap.NewNop(),
		now:           time.Now,
		newID:         uuid.New,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// publicBaseURL is where stored objects are served from, without the key
func publicBaseURL(cfg *infraconfig.StorageConfig, endpoint, region string) string {
	switch {
	case cfg.PublicBaseURL != "":
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	case endpoint != "" && cfg.UsePathStyle:
		return endpoint + "/" + cfg.Bucket
	case endpoint != "":
		u, err := url.Parse(endpoint)
		if err != nil {
			return endpoint + "/" + cfg.Bucket
		}
		u.Host = cfg.Bucket + "." + u.Host
		return u.String()
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, region)
	}
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *S3ImageStore) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	s.logger.Info("Creating storage bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		// Lost a race with another instance
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Put uploads one screenshot and returns its public URL
func (s *S3ImageStore) Put(ctx context.Context, ownerID uuid.UUID, img reviewapp.ImageUpload) (string, error) {
	if len(img.Data) == 0 {
		return "", errors.New("image data is required")
	}
	if s.maxBytes > 0 && int64(len(img.Data)) > s.maxBytes {
		return "", ErrObjectTooLarge
	}
	if s.uploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.uploadTimeout)
		defer cancel()
	}

	key := s.objectKey(ownerID, img)
	contentType := img.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(img.Data),
		ContentLength: aws.Int64(int64(len(img.Data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	s.logger.Debug("Image stored",
		zap.String("key", key),
		zap.Int("bytes", len(img.Data)),
	)
	return s.URL(key), nil
}

// URL returns the public URL of an object key
func (s *S3ImageStore) URL(key string) string {
	return s.baseURL + "/" + key
}

// objectKey lays screenshots out as prefix/owner/yyyy/mm/dd/id.ext
func (s *S3ImageStore) objectKey(ownerID uuid.UUID, img reviewapp.ImageUpload) string {
	day := s.now().UTC().Format("2006/01/02")
	name := s.newID().String() + imageExtension(img)
	return path.Join(s.keyPrefix, ownerID.String(), day, name)
}

// GetBucket returns the bucket name
func (s *S3ImageStore) GetBucket() string {
	return s.bucket
}

var contentTypeExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"image/heic": ".heic",
}

func imageExtension(img reviewapp.ImageUpload) string {
	ct, _, _ := strings.Cut(strings.ToLower(img.ContentType), ";")
	if ext, ok := contentTypeExtensions[strings.TrimSpace(ct)]; ok {
		return ext
	}
	ext := strings.ToLower(path.Ext(img.Name))
	for _, known := range contentTypeExtensions {
		if ext == known || ext == ".jpeg" {
			return ext
		}
	}
	return ".bin"
}
