package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ethpandaops/mperf/pkg/config"
	"github.com/sirupsen/logrus"
)

// ErrDirectoryNotExist is wrapped by Put when the object's parent directory
// does not exist. It is the only storage failure the uploader recovers from.
var ErrDirectoryNotExist = errors.New("parent directory does not exist")

// IsDirectoryNotExist reports whether err was caused by a missing parent directory.
func IsDirectoryNotExist(err error) bool {
	return errors.Is(err, ErrDirectoryNotExist)
}

// Metadata is sent along with every object.
type Metadata struct {
	Size        int64
	ContentType string
}

// Store is an object storage backend with directory semantics.
type Store interface {
	// Put streams body to objectPath. It returns nil only once the whole
	// body, exactly meta.Size bytes, has been accepted by the backend.
	// A missing parent directory yields an error wrapping ErrDirectoryNotExist.
	Put(ctx context.Context, objectPath string, body io.Reader, meta Metadata) error

	// MkdirAll creates dir and every missing ancestor. It is idempotent and
	// safe to call concurrently for the same directory.
	MkdirAll(ctx context.Context, dir string) error

	// Type returns the backend name for logging.
	Type() string
}

// Preflighter is implemented by stores that can verify up front that the
// backend is reachable and writable.
type Preflighter interface {
	Preflight(ctx context.Context) error
}

// New creates the store selected by cfg.Backend.
func New(log logrus.FieldLogger, cfg *config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendLocal:
		return NewLocalStore(log, &cfg.Local)
	case config.BackendS3:
		return NewS3Store(log, &cfg.S3), nil
	case config.BackendMinio:
		return NewMinioStore(log, &cfg.Minio)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
