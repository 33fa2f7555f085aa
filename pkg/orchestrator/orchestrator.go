package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/ethpandaops/mperf/pkg/healer"
	"github.com/ethpandaops/mperf/pkg/metrics"
	"github.com/ethpandaops/mperf/pkg/session"
	"github.com/ethpandaops/mperf/pkg/storage"
	"github.com/ethpandaops/mperf/pkg/zerostream"
	"github.com/sirupsen/logrus"
)

// ContentType is the content type advertised for every generated object.
const ContentType = "text/plain"

// UploadError reports a failed object write. Retry is set when the failure
// happened on the single retry after a directory heal.
type UploadError struct {
	Path  string
	Retry bool
	Err   error
}

func (e *UploadError) Error() string {
	if e.Retry {
		return fmt.Sprintf("retrying upload of %s: %v", e.Path, e.Err)
	}

	return fmt.Sprintf("uploading %s: %v", e.Path, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// Orchestrator turns ticks into bounded, concurrent uploads.
type Orchestrator interface {
	// Tick admits and starts one upload if a slot is free. It never blocks
	// on the upload and reports whether the tick was admitted.
	Tick(ctx context.Context) bool
	// Run calls Tick on every session interval until ctx is done.
	Run(ctx context.Context) error
	// Wait blocks until every started upload is terminal.
	Wait()
	// Outstanding returns the number of uploads holding a slot.
	Outstanding() int
}

// Option configures an Orchestrator.
type Option func(*orchestrator)

// WithMetrics records tick and upload outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *orchestrator) {
		o.metrics = m
	}
}

// WithAdmissionHook calls fn with the outcome of every tick.
func WithAdmissionHook(fn func(admitted bool)) Option {
	return func(o *orchestrator) {
		o.onAdmission = fn
	}
}

// WithCompletionHook calls fn with every attempt once it is terminal and its
// slot has been released.
func WithCompletionHook(fn func(*Attempt)) Option {
	return func(o *orchestrator) {
		o.onComplete = fn
	}
}

// WithIDGenerator replaces NewObjectID.
func WithIDGenerator(fn func() string) Option {
	return func(o *orchestrator) {
		o.newID = fn
	}
}

type orchestrator struct {
	log     logrus.FieldLogger
	sess    *session.Session
	store   storage.Store
	healer  *healer.Healer
	metrics *metrics.Metrics

	onAdmission func(bool)
	onComplete  func(*Attempt)
	newID       func() string

	wg sync.WaitGroup
}

// Ensure interface compliance.
var _ Orchestrator = (*orchestrator)(nil)

// New creates an orchestrator writing below the session root of sess.
func New(
	log logrus.FieldLogger,
	sess *session.Session,
	store storage.Store,
	h *healer.Healer,
	opts ...Option,
) Orchestrator {
	o := &orchestrator{
		log:    log.WithField("component", "orchestrator"),
		sess:   sess,
		store:  store,
		healer: h,
		newID:  NewObjectID,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

func (o *orchestrator) Tick(ctx context.Context) bool {
	gate := o.sess.Gate

	if !gate.TryAcquire() {
		o.log.WithFields(logrus.Fields{
			"outstanding":     gate.Outstanding(),
			"max_outstanding": gate.Capacity(),
		}).Info("Rate limiting upload")

		o.metrics.Tick(false)
		o.admitted(false)

		return false
	}

	o.metrics.Tick(true)
	o.admitted(true)

	a := newAttempt(o.sess.Root, o.newID())

	o.wg.Add(1)

	// An attempt always runs to a terminal state, even after shutdown starts.
	go o.execute(context.WithoutCancel(ctx), a)

	return true
}

func (o *orchestrator) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.sess.Interval)
	defer ticker.Stop()

	o.log.WithFields(logrus.Fields{
		"interval":        o.sess.Interval,
		"object_size":     units.BytesSize(float64(o.sess.ObjectSize)),
		"max_outstanding": o.sess.Gate.Capacity(),
		"root":            o.sess.Root,
	}).Info("Starting upload ticker")

	for {
		select {
		case <-ctx.Done():
			o.log.Info("Upload ticker stopped")

			return nil
		case <-ticker.C:
			o.Tick(ctx)
		}
	}
}

func (o *orchestrator) Wait() {
	o.wg.Wait()
}

func (o *orchestrator) Outstanding() int {
	return o.sess.Gate.Outstanding()
}

func (o *orchestrator) admitted(ok bool) {
	if o.onAdmission != nil {
		o.onAdmission(ok)
	}
}

// execute drives a single attempt through its states. A missing parent
// directory is healed once and the write retried once.
func (o *orchestrator) execute(ctx context.Context, a *Attempt) {
	defer o.wg.Done()
	defer o.finish(a)

	log := o.log.WithFields(logrus.Fields{
		"object": a.ID,
		"path":   a.Path,
	})

	a.transition(StateStreaming)

	err := o.transfer(ctx, a)
	if err == nil {
		a.transition(StateSucceeded)

		return
	}

	if !storage.IsDirectoryNotExist(err) {
		o.fail(log, a, &UploadError{Path: a.Path, Err: err}, metrics.KindUpload)

		return
	}

	o.metrics.UploadError(metrics.KindMissingParent)
	log.WithField("dir", a.Dir).Debug("Parent directory missing, healing")

	a.transition(StateHealing)

	herr := o.healer.Ensure(ctx, a.Dir)
	o.metrics.Heal(herr)

	if herr != nil {
		o.fail(log, a, herr, metrics.KindHeal)

		return
	}

	a.transition(StateRetrying)
	o.metrics.Retry()

	if err := o.transfer(ctx, a); err != nil {
		o.fail(log, a, &UploadError{Path: a.Path, Retry: true, Err: err}, metrics.KindUpload)

		return
	}

	a.transition(StateSucceeded)
}

// transfer streams one fresh zero stream of the session object size.
func (o *orchestrator) transfer(ctx context.Context, a *Attempt) error {
	size := o.sess.ObjectSize
	stream := zerostream.New(size)

	meta := storage.Metadata{Size: size, ContentType: ContentType}
	if err := o.store.Put(ctx, a.Path, stream, meta); err != nil {
		return err
	}

	if rem := stream.Remaining(); rem != 0 {
		return fmt.Errorf("short transfer: %d of %d bytes consumed", size-rem, size)
	}

	a.Bytes = size

	return nil
}

func (o *orchestrator) fail(log logrus.FieldLogger, a *Attempt, err error, kind string) {
	a.Err = err
	a.transition(StateFailed)

	o.metrics.UploadError(kind)
	log.WithError(err).Warn("Upload failed")
}

// finish releases the slot and reports the terminal attempt.
func (o *orchestrator) finish(a *Attempt) {
	a.Duration = time.Since(a.Started)

	o.sess.Gate.Release()
	o.metrics.Finished(a.State() == StateSucceeded, a.Bytes, a.Duration)

	if a.State() == StateSucceeded {
		o.log.WithFields(logrus.Fields{
			"object":   a.ID,
			"retried":  a.Retried(),
			"duration": a.Duration,
		}).Debug("Upload complete")
	}

	if o.onComplete != nil {
		o.onComplete(a)
	}
}
