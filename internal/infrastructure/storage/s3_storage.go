// Package storage keeps location attachments in an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	locationapp "github.com/helpdesk/backend/internal/application/location"
	"github.com/helpdesk/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

const (
	defaultURLTTL   = 15 * time.Minute
	defaultRegion   = "us-east-1"
	defaultEndpoint = "localhost:9000"
)

var errKeyRequired = errors.New("storage key is required")

// Bucket hands out presigned URLs for one bucket of AWS S3, MinIO or
// RustFS. File bodies go straight between the client and the bucket.
type Bucket struct {
	client  *s3.Client
	signer  *s3.PresignClient
	name    string
	urlTTL  time.Duration
	maxSize int64
	log     *zap.Logger
}

// NewBucket builds the S3 client for cfg. It does not contact the server;
// call EnsureBucket or Ping for that.
func NewBucket(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (*Bucket, error) {
	var missing []error
	for field, value := range map[string]string{
		"bucket":     cfg.Bucket,
		"access_key": cfg.AccessKey,
		"secret_key": cfg.SecretKey,
	} {
		if value == "" {
			missing = append(missing, fmt.Errorf("storage.%s is required", field))
		}
	}
	if err := errors.Join(missing...); err != nil {
		return nil, err
	}

	endpoint, err := endpointURL(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load S3 client config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = cfg.UsePathStyle
	})

	if log == nil {
		log = zap.NewNop()
	}
	b := &Bucket{
		client:  client,
		signer:  s3.NewPresignClient(client),
		name:    cfg.Bucket,
		urlTTL:  cfg.PresignExpiration,
		maxSize: cfg.MaxUploadSize,
		log:     log.Named("storage").With(zap.String("bucket", cfg.Bucket)),
	}
	if b.urlTTL <= 0 {
		b.urlTTL = defaultURLTTL
	}
	return b, nil
}

// endpointURL adds the scheme to a bare host[:port]
func endpointURL(endpoint string, useSSL bool) (string, error) {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if !strings.Contains(endpoint, "://") {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		endpoint = scheme + "://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("invalid storage endpoint %q", endpoint)
	}
	return u.String(), nil
}

// Name returns the bucket name
func (b *Bucket) Name() string { return b.name }

// Ping checks that the bucket exists and the credentials can reach it
func (b *Bucket) Ping(ctx context.Context) error {
	if _, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.name)}); err != nil {
		return fmt.Errorf("head bucket %s: %w", b.name, err)
	}
	return nil
}

// EnsureBucket creates the bucket when HeadBucket reports it missing
func (b *Bucket) EnsureBucket(ctx context.Context) error {
	err := b.Ping(ctx)
	if err == nil || !bucketMissing(err) {
		return err
	}

	b.log.Info("Creating attachment bucket")
	_, err = b.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(b.name)})
	var owned *types.BucketAlreadyOwnedByYou
	if err != nil && !errors.As(err, &owned) {
		return fmt.Errorf("create bucket %s: %w", b.name, err)
	}
	return nil
}

func bucketMissing(err error) bool {
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	return errors.As(err, &notFound) || errors.As(err, &noSuchBucket)
}

// PresignUpload signs a PUT that only accepts the announced content type
// and length.
func (b *Bucket) PresignUpload(ctx context.Context, key, contentType string, size int64) (locationapp.PresignedURL, error) {
	switch {
	case key == "":
		return locationapp.PresignedURL{}, errKeyRequired
	case size <= 0:
		return locationapp.PresignedURL{}, fmt.Errorf("upload size must be positive, got %d", size)
	case b.maxSize > 0 && size > b.maxSize:
		return locationapp.PresignedURL{}, fmt.Errorf("upload size %d exceeds limit %d", size, b.maxSize)
	}

	req, err := b.signer.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.name),
		Key:           aws.String(key),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	}, s3.WithPresignExpires(b.urlTTL))
	return b.presigned(http.MethodPut, req, err)
}

// PresignDownload signs a GET for key
func (b *Bucket) PresignDownload(ctx context.Context, key string) (locationapp.PresignedURL, error) {
	if key == "" {
		return locationapp.PresignedURL{}, errKeyRequired
	}
	req, err := b.signer.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(b.urlTTL))
	return b.presigned(http.MethodGet, req, err)
}

func (b *Bucket) presigned(method string, req *v4.PresignedHTTPRequest, err error) (locationapp.PresignedURL, error) {
	if err != nil {
		return locationapp.PresignedURL{}, fmt.Errorf("presign %s: %w", method, err)
	}
	return locationapp.PresignedURL{
		URL:       req.URL,
		Method:    method,
		ExpiresAt: time.Now().Add(b.urlTTL),
	}, nil
}

// Delete removes key. S3 reports success for keys that do not exist.
func (b *Bucket) Delete(ctx context.Context, key string) error {
	if key == "" {
		return errKeyRequired
	}
	if _, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	b.log.Debug("Attachment object deleted", zap.String("key", key))
	return nil
}

var _ locationapp.ObjectStorage = (*Bucket)(nil)
