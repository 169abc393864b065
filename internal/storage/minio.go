package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/file-panel/backend/internal/config"
	"github.com/file-panel/backend/internal/models"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore implements Store on an S3-compatible bucket.
type MinioStore struct {
	*index
	client *minio.Client
	bucket string
	prefix string
}

// normaliseEndpoint accepts either "minio:9000" or "http(s)://minio:9000".
func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, fmt.Errorf("endpoint must not contain a path")
		}
		return u.Host, u.Scheme == "https", nil
	}

	// host:port without scheme is insecure, as for a local MinIO
	return raw, false, nil
}

// NewMinioStore connects to the bucket described by cfg. The bucket must exist.
func NewMinioStore(ctx context.Context, cfg config.MinioConfig) (*MinioStore, error) {
	endpoint, secure, err := normaliseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("minio endpoint: %w", err)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("minio bucket does not exist: %s", cfg.Bucket)
	}

	return &MinioStore{
		index:  newIndex(),
		client: client,
		bucket: cfg.Bucket,
		prefix: "uploads/",
	}, nil
}

// unknownSizePartSize bounds the part buffered per upload when the length is unknown.
const unknownSizePartSize = 16 << 20

// Save streams the upload into the bucket under a generated id.
func (s *MinioStore) Save(ctx context.Context, name string, r io.Reader, size int64) (*models.FileInfo, error) {
	id := uuid.New().String()

	in, err := inspect(r)
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}

	obj, err := s.client.PutObject(ctx, s.bucket, s.prefix+id, in, size, putOptions(name, in.contentType, size))
	if err != nil {
		return nil, fmt.Errorf("putting object: %w", err)
	}

	info := in.info(id, name, obj.Size)
	s.put(info)
	return info, nil
}

func putOptions(name, contentType string, size int64) minio.PutObjectOptions {
	opts := minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"filename": name},
	}
	if size < 0 {
		opts.PartSize = unknownSizePartSize
	}
	return opts
}

// Get retrieves file metadata by ID.
func (s *MinioStore) Get(id string) (*models.FileInfo, error) {
	return s.get(id)
}

// List returns the most recent files.
func (s *MinioStore) List(limit int) ([]*models.FileInfo, error) {
	return s.list(limit), nil
}

// Delete removes the object and its metadata.
func (s *MinioStore) Delete(ctx context.Context, id string) error {
	if _, err := s.get(id); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, s.prefix+id, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("removing object: %w", err)
	}
	s.remove(id)
	return nil
}

// Open builds the configured Store backend.
func Open(ctx context.Context, cfg *config.AppConfig) (Store, error) {
	switch cfg.Storage.Backend {
	case config.StorageMinio:
		return NewMinioStore(ctx, cfg.Storage.Minio)
	default:
		return NewLocalStore(cfg.GetUploadDir())
	}
}
