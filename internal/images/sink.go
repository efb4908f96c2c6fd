package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/starford/newsdesk/internal/apperr"
	"github.com/starford/newsdesk/internal/remote"
)

// RemoteSink commits images into the same repository as the collection.
type RemoteSink struct {
	store   remote.Store
	branch  string
	message string
	baseURL string
}

// NewRemoteSink stores images on branch. baseURL prefixes returned URLs;
// when empty the repository path itself is returned.
func NewRemoteSink(store remote.Store, branch, message, baseURL string) *RemoteSink {
	return &RemoteSink{store: store, branch: branch, message: message, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Exists reports whether key is already committed.
func (s *RemoteSink) Exists(ctx context.Context, key string) (bool, error) {
	return s.store.Exists(ctx, key, s.branch)
}

// Put commits data at key. A concurrent creation of the same key is
// reported as apperr.ErrAlreadyExists.
func (s *RemoteSink) Put(ctx context.Context, key string, data []byte, _ string) error {
	msg := s.message
	if msg == "" {
		msg = "Upload image"
	}
	_, err := s.store.Put(ctx, remote.PutRequest{
		Path:    key,
		Branch:  s.branch,
		Message: fmt.Sprintf("%s %s", msg, key),
		Content: data,
	})
	if errors.Is(err, apperr.ErrConflict) {
		return fmt.Errorf("%w: %s", apperr.ErrAlreadyExists, key)
	}
	return err
}

// URL returns the public URL of key.
func (s *RemoteSink) URL(key string) string {
	if s.baseURL == "" {
		return key
	}
	return s.baseURL + "/" + key
}

// S3Config configures an S3Sink.
type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	BaseURL   string
}

// S3Sink stores images in an S3-compatible bucket.
type S3Sink struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// NewS3Sink creates a sink for cfg.Bucket.
func NewS3Sink(cfg S3Config) (*S3Sink, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("images: s3 client: %w", err)
	}
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}
	return &S3Sink{client: client, bucket: cfg.Bucket, baseURL: base}, nil
}

// Exists reports whether key is present in the bucket.
func (s *S3Sink) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, mapS3Error(err)
}

// Put uploads data at key.
func (s *S3Sink) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return mapS3Error(err)
	}
	return nil
}

// URL returns the public URL of key.
func (s *S3Sink) URL(key string) string {
	return s.baseURL + "/" + key
}

func mapS3Error(err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.StatusCode == http.StatusForbidden || resp.Code == "AccessDenied" || resp.Code == "InvalidAccessKeyId":
		return fmt.Errorf("%w: %s", apperr.ErrAuth, resp.Message)
	case resp.Code == "SlowDown" || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", apperr.ErrRateLimit, resp.Message)
	case resp.Code == "NoSuchBucket":
		return fmt.Errorf("%w: bucket: %s", apperr.ErrNotFound, resp.Message)
	case resp.StatusCode == 0:
		return fmt.Errorf("%w: %v", apperr.ErrNetwork, err)
	default:
		return fmt.Errorf("images: s3: %w", err)
	}
}
