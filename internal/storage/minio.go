package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore is a Store backed by the MinIO client, for self-hosted buckets.
type MinioStore struct {
	Bucket string
	Client *minio.Client
}

func NewMinioStore(opts Options) (*MinioStore, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("minio store: bucket is required")
	}
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("minio store: endpoint is required")
	}

	// minio wants a bare host[:port]
	endpoint := strings.TrimPrefix(strings.TrimPrefix(opts.Endpoint, "https://"), "http://")
	endpoint = strings.TrimSuffix(endpoint, "/")

	region := opts.Region
	if region == "auto" {
		region = ""
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: opts.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinioStore{Bucket: opts.Bucket, Client: client}, nil
}

func (m *MinioStore) Download(ctx context.Context, key string, dst io.Writer) error {
	obj, err := m.Client.GetObject(ctx, m.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return classifyMinioError("get object "+key, err)
	}
	defer obj.Close()

	// GetObject is lazy; Stat surfaces a missing key before any bytes are copied.
	if _, err := obj.Stat(); err != nil {
		return classifyMinioError("stat object "+key, err)
	}

	if _, err := io.Copy(dst, obj); err != nil {
		return unavailable("copy object "+key, err)
	}
	return nil
}

func (m *MinioStore) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	_, err := m.Client.PutObject(ctx, m.Bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return classifyMinioError("put object "+key, err)
	}
	return nil
}

func classifyMinioError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || resp.Code == "NotFound":
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case resp.Code == "" && resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return unavailable(op, err)
}

var _ Store = (*MinioStore)(nil)
