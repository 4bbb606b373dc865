package storage

import (
	"context"
	"fmt"
)

// Supported store drivers.
const (
	DriverS3    = "s3"
	DriverMinio = "minio"
)

// Open creates the Store for the named driver.
func Open(ctx context.Context, driver string, opts Options) (Store, error) {
	switch driver {
	case DriverS3, "":
		return NewS3Store(ctx, opts)
	case DriverMinio:
		return NewMinioStore(opts)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
