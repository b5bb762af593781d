// Package s3 stores listing photos in an S3-compatible bucket through minio-go.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	ErrEndpointRequired = errors.New("s3: endpoint is required")
	ErrBucketRequired   = errors.New("s3: bucket is required")
	ErrKeyRequired      = errors.New("s3: object key is required")
	ErrBodyRequired     = errors.New("s3: body is required")
)

type Config struct {
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
	// PublicRead applies an anonymous GetObject policy when the bucket is created.
	PublicRead bool
}

// PhotoStore uploads objects and returns URLs under the public endpoint.
type PhotoStore struct {
	cfg     Config
	baseURL string
	client  *minio.Client
	logger  *slog.Logger

	bucketOnce sync.Once
	bucketErr  error
}

func New(cfg Config, logger *slog.Logger) (*PhotoStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, ErrEndpointRequired
	}
	if cfg.Bucket = strings.TrimSpace(cfg.Bucket); cfg.Bucket == "" {
		return nil, ErrBucketRequired
	}
	client, err := minio.New(hostOf(endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(cfg.AccessKey), strings.TrimSpace(cfg.SecretKey), ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}
	base := strings.TrimSpace(cfg.PublicEndpoint)
	if base == "" {
		base = endpoint
	}
	if !strings.Contains(base, "://") {
		scheme := "http://"
		if cfg.UseSSL {
			scheme = "https://"
		}
		base = scheme + base
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PhotoStore{cfg: cfg, baseURL: strings.TrimRight(base, "/"), client: client, logger: logger}, nil
}

func (s *PhotoStore) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	if body == nil {
		return "", ErrBodyRequired
	}
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return "", ErrKeyRequired
	}
	if err := s.ensureBucket(ctx); err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := s.client.PutObject(ctx, s.cfg.Bucket, key, body, -1, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("s3: put object %s: %w", key, err)
	}
	publicURL := s.ObjectURL(key)
	s.logger.Info("photo uploaded", "bucket", s.cfg.Bucket, "key", key, "size", info.Size, "url", publicURL)
	return publicURL, nil
}

// Ping checks the bucket is reachable; used by readiness probes.
func (s *PhotoStore) Ping(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.cfg.Bucket); err != nil {
		return fmt.Errorf("s3: ping: %w", err)
	}
	return nil
}

func (s *PhotoStore) ObjectURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.baseURL, s.cfg.Bucket, strings.TrimLeft(key, "/"))
}

func (s *PhotoStore) ensureBucket(ctx context.Context) error {
	s.bucketOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
		if err != nil {
			s.bucketErr = fmt.Errorf("s3: check bucket: %w", err)
			return
		}
		if exists {
			return
		}
		if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			s.bucketErr = fmt.Errorf("s3: create bucket: %w", err)
			return
		}
		if s.cfg.PublicRead {
			policy := fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, s.cfg.Bucket)
			if err := s.client.SetBucketPolicy(ctx, s.cfg.Bucket, policy); err != nil {
				s.bucketErr = fmt.Errorf("s3: set bucket policy: %w", err)
			}
		}
	})
	return s.bucketErr
}

func hostOf(endpoint string) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return endpoint
}
