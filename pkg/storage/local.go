package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"

	"github.com/ethpandaops/mperf/pkg/config"
	"github.com/ethpandaops/mperf/pkg/fsutil"
	"github.com/sirupsen/logrus"
)

// Compile-time interface check.
var _ Store = (*localStore)(nil)

// localStore keeps objects as files below a base directory. Directories are
// real, so a missing parent is reported by the filesystem itself.
type localStore struct {
	log     logrus.FieldLogger
	baseDir string
	owner   *fsutil.Owner
}

// NewLocalStore creates a Store backed by the local filesystem.
func NewLocalStore(log logrus.FieldLogger, cfg *config.LocalStorageConfig) (Store, error) {
	owner, err := fsutil.ParseOwner(cfg.Owner)
	if err != nil {
		return nil, fmt.Errorf("parsing owner: %w", err)
	}

	return &localStore{
		log:     log.WithField("component", "local-store"),
		baseDir: cfg.BaseDir,
		owner:   owner,
	}, nil
}

func (s *localStore) Type() string {
	return config.BackendLocal
}

// resolve maps a storage path onto the filesystem below baseDir.
func (s *localStore) resolve(p string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(CleanPath(p)))
}

// Put writes body to a new file at objectPath.
func (s *localStore) Put(
	_ context.Context, objectPath string, body io.Reader, meta Metadata,
) error {
	full := s.resolve(objectPath)

	f, err := fsutil.CreateFile(full, s.owner)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("creating %s: %w: %w", objectPath, ErrDirectoryNotExist, err)
		}

		return fmt.Errorf("creating %s: %w", objectPath, err)
	}

	n, err := io.Copy(f, body)
	if err != nil {
		_ = f.Close()

		return fmt.Errorf("writing %s: %w", objectPath, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", objectPath, err)
	}

	if n != meta.Size {
		return fmt.Errorf("writing %s: short write: %d of %d bytes", objectPath, n, meta.Size)
	}

	s.log.WithFields(logrus.Fields{
		"path":  full,
		"bytes": n,
	}).Debug("Wrote object")

	return nil
}

// MkdirAll creates dir and its parents below baseDir.
func (s *localStore) MkdirAll(_ context.Context, dir string) error {
	if err := fsutil.MkdirAll(s.resolve(dir), s.owner); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	return nil
}
