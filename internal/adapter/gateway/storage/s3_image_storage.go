package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/kalinpl/dreamlog/internal/application/port/output"
)

// S3ImageStorage implements ImageStorageGateway using AWS S3 (or any
// S3-compatible endpoint such as MinIO).
// Bucket structure: s3://<bucket>/<prefix>/dreams/<yyyy>/<mm>/<filename>
type S3ImageStorage struct {
	client    S3API
	presigner S3Presigner
	bucket    string
	prefix    string        // Optional prefix for all keys (e.g., "dreamlog/prod")
	expiry    time.Duration // Presigned URL lifetime
	now       func() time.Time
}

// S3Config holds S3 image storage configuration.
type S3Config struct {
	Bucket    string        // S3 bucket name
	Prefix    string        // Optional key prefix
	Region    string        // AWS region (optional, uses default if empty)
	Endpoint  string        // Custom endpoint for S3-compatible stores (optional)
	URLExpiry time.Duration // Presigned URL lifetime, defaults to 1h
}

// NewS3ImageStorage creates an S3-backed image store using the default
// AWS credential chain.
func NewS3ImageStorage(cfg S3Config) (*S3ImageStorage, error) {
	awsCfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	if cfg.Region != "" {
		awsCfg.Region = cfg.Region
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3ImageStorage(client, s3.NewPresignClient(client), cfg), nil
}

// NewS3ImageStorageWithClient creates an image store with custom S3
// clients. Primarily used for testing with mocks.
func NewS3ImageStorageWithClient(client S3API, presigner S3Presigner, cfg S3Config) *S3ImageStorage {
	return newS3ImageStorage(client, presigner, cfg)
}

func newS3ImageStorage(client S3API, presigner S3Presigner, cfg S3Config) *S3ImageStorage {
	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &S3ImageStorage{
		client:    client,
		presigner: presigner,
		bucket:    cfg.Bucket,
		prefix:    cfg.Prefix,
		expiry:    expiry,
		now:       time.Now,
	}
}

// Store uploads image bytes and returns the key plus a presigned URL.
func (g *S3ImageStorage) Store(ctx context.Context, data []byte, filename, contentType string) (*output.StoredImage, error) {
	key := g.buildKey(filename)

	_, err := g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"uploaded-at": g.now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return nil, &output.StorageError{Op: "store", Key: key, Cause: err}
	}

	url, err := g.PresignedURL(ctx, key)
	if err != nil {
		return nil, err
	}

	return &output.StoredImage{
		StorageKey: key,
		URL:        url,
		SizeBytes:  int64(len(data)),
	}, nil
}

// PresignedURL mints a temporary GET URL for a stored image.
func (g *S3ImageStorage) PresignedURL(ctx context.Context, storageKey string) (string, error) {
	req, err := g.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(storageKey),
	}, func(o *s3.PresignOptions) {
		o.Expires = g.expiry
	})
	if err != nil {
		return "", &output.StorageError{Op: "presign", Key: storageKey, Cause: err}
	}
	return req.URL, nil
}

// Delete removes a stored image. Deleting a missing key is not an error.
func (g *S3ImageStorage) Delete(ctx context.Context, storageKey string) error {
	_, err := g.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(storageKey),
	})
	if err != nil {
		return &output.StorageError{Op: "delete", Key: storageKey, Cause: err}
	}
	return nil
}

// buildKey places images under dreams/<yyyy>/<mm>/ so buckets stay
// browsable as the collection grows.
func (g *S3ImageStorage) buildKey(filename string) string {
	now := g.now().UTC()
	parts := []string{"dreams", fmt.Sprintf("%04d", now.Year()), fmt.Sprintf("%02d", now.Month()), filename}
	if g.prefix != "" {
		parts = append([]string{g.prefix}, parts...)
	}
	return strings.Join(parts, "/")
}
