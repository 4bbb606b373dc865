// Package storage talks to the S3-compatible bucket holding background tracks
// and published previews.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Key prefixes inside the bucket.
const (
	SourcePrefix  = "LevelBgm/"
	PreviewPrefix = "LevelPreview/"

	PreviewContentType = "audio/mpeg"
)

var (
	// ErrNotFound is returned when the requested object does not exist.
	ErrNotFound = errors.New("object not found")
	// ErrUnavailable wraps every other failure reported by the store.
	ErrUnavailable = errors.New("storage unavailable")
)

// Store is the object store used by the preview service.
type Store interface {
	// Download streams the object at key into dst. A missing object yields
	// an error wrapping ErrNotFound; other store failures wrap ErrUnavailable.
	Download(ctx context.Context, key string, dst io.Writer) error

	// Upload writes size bytes from body to key, overwriting any existing object.
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
}

// SourceKey returns the key of the background track identified by hash.
func SourceKey(hash string) string {
	return SourcePrefix + hash
}

// PreviewKey returns the key of the preview clip with the given content hash.
func PreviewKey(hash string) string {
	return PreviewPrefix + hash
}

// Options configures a Store driver.
type Options struct {
	Bucket          string
	Endpoint        string // empty = AWS default endpoint resolution
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool // minio only
}

// unavailable wraps a transport failure in ErrUnavailable. A canceled context
// is passed through untouched so callers can tell a dropped request from an
// outage.
func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}
