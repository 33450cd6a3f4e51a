// Package storage wraps the MinIO object store holding uploaded documents and
// the images extracted from them.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"juris-rag-go/internal/config"
	"juris-rag-go/internal/model"
	"juris-rag-go/pkg/log"
	"juris-rag-go/pkg/retry"
)

// Store is a MinIO client bound to the configured buckets.
type Store struct {
	client        *minio.Client
	defaultBucket string
	imageBucket   string
	policy        retry.Policy
}

// New creates a Store whose requests go through transport.
func New(cfg config.MinIOConfig, transport http.RoundTripper, policy retry.Policy) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure:    cfg.UseSSL,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	return &Store{
		client:        client,
		defaultBucket: cfg.BucketName,
		imageBucket:   cfg.ImageBucket,
		policy:        policy,
	}, nil
}

// DefaultBucket receives uploads that name no container.
func (s *Store) DefaultBucket() string {
	return s.defaultBucket
}

// EnsureBuckets creates the default and image buckets when missing.
func (s *Store) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.defaultBucket, s.imageBucket} {
		if err := s.ensureBucket(ctx, bucket); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ensureBucket(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", bucket, err)
	}
	if exists {
		return nil
	}
	log.Infof("[Storage] bucket '%s' does not exist, creating", bucket)
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %q: %w", bucket, err)
	}
	return nil
}

// PutDocument stores data as bucket/name, creating the bucket if needed. An
// empty bucket selects the default one. It returns the bucket used.
func (s *Store) PutDocument(ctx context.Context, bucket, name string, data []byte) (string, error) {
	if bucket == "" {
		bucket = s.defaultBucket
	}
	if err := s.ensureBucket(ctx, bucket); err != nil {
		return "", err
	}
	_, err := retry.Do(ctx, s.policy, "put document", func(ctx context.Context) (minio.UploadInfo, error) {
		return s.client.PutObject(ctx, bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
			ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		})
	})
	if err != nil {
		return "", fmt.Errorf("put %s/%s: %w", bucket, name, err)
	}
	return bucket, nil
}

// GetDocument reads bucket/name fully.
func (s *Store) GetDocument(ctx context.Context, bucket, name string) ([]byte, error) {
	if bucket == "" {
		bucket = s.defaultBucket
	}
	data, err := retry.Do(ctx, s.policy, "get document", func(ctx context.Context) ([]byte, error) {
		obj, err := s.client.GetObject(ctx, bucket, name, minio.GetObjectOptions{})
		if err != nil {
			return nil, err
		}
		defer obj.Close()
		data, err := io.ReadAll(obj)
		if err != nil {
			if minio.ToErrorResponse(err).Code == "NoSuchKey" {
				return nil, retry.Permanent(err)
			}
			return nil, err
		}
		return data, nil
	})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", bucket, name, err)
	}
	return data, nil
}

// ImageKey is the jurisdiction-scoped object key of an extracted image.
func ImageKey(isoCode string, img *model.ImageElement) string {
	ext := strings.ToLower(path.Ext(img.Name))
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("images/%s/%s%s", isoCode, img.ID, ext)
}

// PutImage stores img under ImageKey and returns its URL.
func (s *Store) PutImage(ctx context.Context, isoCode string, img *model.ImageElement) (string, error) {
	key := ImageKey(isoCode, img)
	_, err := retry.Do(ctx, s.policy, "put image", func(ctx context.Context) (minio.UploadInfo, error) {
		return s.client.PutObject(ctx, s.imageBucket, key, bytes.NewReader(img.Data), int64(len(img.Data)), minio.PutObjectOptions{
			ContentType: img.ContentType,
		})
	})
	if err != nil {
		return "", fmt.Errorf("put image %s: %w", key, err)
	}
	return fmt.Sprintf("%s/%s/%s", s.client.EndpointURL().String(), s.imageBucket, key), nil
}

// Ping checks that the default bucket is reachable.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.defaultBucket)
	return err
}
