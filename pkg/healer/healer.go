package healer

import (
	"context"
	"fmt"

	"github.com/ethpandaops/mperf/pkg/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// HealError reports that a missing directory could not be created.
type HealError struct {
	Dir string
	Err error
}

func (e *HealError) Error() string {
	return fmt.Sprintf("healing directory %s: %v", e.Dir, e.Err)
}

func (e *HealError) Unwrap() error {
	return e.Err
}

// Healer recreates missing directories. Uploads that discover the same
// missing directory at the same time share a single MkdirAll call.
type Healer struct {
	log   logrus.FieldLogger
	store storage.Store
	group singleflight.Group
}

// New creates a Healer working on store.
func New(log logrus.FieldLogger, store storage.Store) *Healer {
	return &Healer{
		log:   log.WithField("component", "healer"),
		store: store,
	}
}

// Ensure creates dir and all missing ancestors. It is idempotent: an existing
// directory is left untouched and Ensure returns nil. Failures are returned
// as *HealError.
func (h *Healer) Ensure(ctx context.Context, dir string) error {
	_, err, shared := h.group.Do(dir, func() (any, error) {
		return nil, h.store.MkdirAll(ctx, dir)
	})

	h.log.WithFields(logrus.Fields{
		"dir":    dir,
		"shared": shared,
	}).Debug("Healed directory")

	if err != nil {
		return &HealError{Dir: dir, Err: err}
	}

	return nil
}
