package artwork

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrMissingBucket is returned when no bucket name is configured.
var ErrMissingBucket = errors.New("missing artwork bucket name")

// MinioConfig holds S3-compatible storage settings.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	// PublicURL is the address objects are served from. Defaults to the
	// endpoint followed by the bucket.
	PublicURL string
}

// MinioStore keeps artwork in an S3-compatible bucket.
type MinioStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinioStore connects to the endpoint and creates the bucket when it does
// not exist yet.
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	if cfg.Bucket == "" {
		return nil, ErrMissingBucket
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	s := &MinioStore{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimSuffix(cfg.PublicURL, "/"),
	}
	if s.publicURL == "" {
		s.publicURL = strings.TrimSuffix(client.EndpointURL().String(), "/") + "/" + cfg.Bucket
	}

	if err := s.ensureBucket(ctx, cfg.Region); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MinioStore) ensureBucket(ctx context.Context, region string) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("creating bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Put implements Store. Existing objects are overwritten.
func (s *MinioStore) Put(ctx context.Context, objectPath string, data []byte, contentType string) error {
	p, err := cleanPath(objectPath)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, s.bucket, p, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("putting object %s: %w", p, err)
	}
	return nil
}

// URL implements Store.
func (s *MinioStore) URL(objectPath string) string {
	return s.publicURL + "/" + strings.TrimPrefix(objectPath, "/")
}
