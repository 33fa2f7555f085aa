package session

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/docker/go-units"
	"github.com/ethpandaops/mperf/pkg/admission"
	"github.com/ethpandaops/mperf/pkg/config"
	"github.com/ethpandaops/mperf/pkg/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// BootstrapError reports that the session root could not be prepared.
// No upload may run without a confirmed root directory.
type BootstrapError struct {
	Root string
	Err  error
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("bootstrapping session root %s: %v", e.Root, e.Err)
}

func (e *BootstrapError) Unwrap() error {
	return e.Err
}

// Session is the state of one load generator run. It lives until the
// process exits.
type Session struct {
	// ID is unique per run and is the last element of Root.
	ID string
	// Root is the directory all objects of this run are written below.
	Root       string
	ObjectSize int64
	Interval   time.Duration
	// Gate bounds the number of outstanding uploads.
	Gate *admission.Gate
}

// New creates a session below cfg.ParentDir. The root is not created
// until Bootstrap is called.
func New(cfg *config.UploadConfig) *Session {
	id := uuid.NewString()

	return &Session{
		ID:         id,
		Root:       path.Join(cfg.ParentDir, id),
		ObjectSize: cfg.ObjectSizeBytes(),
		Interval:   cfg.Interval(),
		Gate:       admission.NewGate(cfg.MaxOutstanding),
	}
}

// Bootstrap preflights the store when it supports it and creates the
// session root with all missing ancestors. Failures are returned as
// *BootstrapError.
func (s *Session) Bootstrap(ctx context.Context, log logrus.FieldLogger, store storage.Store) error {
	if p, ok := store.(storage.Preflighter); ok {
		if err := p.Preflight(ctx); err != nil {
			return &BootstrapError{Root: s.Root, Err: fmt.Errorf("preflight: %w", err)}
		}
	}

	if err := store.MkdirAll(ctx, s.Root); err != nil {
		return &BootstrapError{Root: s.Root, Err: err}
	}

	log.WithFields(logrus.Fields{
		"session":         s.ID,
		"root":            s.Root,
		"backend":         store.Type(),
		"object_size":     units.BytesSize(float64(s.ObjectSize)),
		"max_outstanding": s.Gate.Capacity(),
		"interval":        s.Interval,
	}).Info("Session root created")

	return nil
}
