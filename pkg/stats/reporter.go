package stats

import (
	"context"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"
)

// Reporter periodically logs a throughput summary.
type Reporter struct {
	log         logrus.FieldLogger
	counters    *Counters
	host        HostReader
	outstanding func() int
	interval    time.Duration

	mu   sync.Mutex
	last *Snapshot
}

// NewReporter creates a reporter over counters. host and outstanding may be nil.
func NewReporter(
	log logrus.FieldLogger,
	counters *Counters,
	host HostReader,
	outstanding func() int,
	interval time.Duration,
) *Reporter {
	return &Reporter{
		log:         log.WithField("component", "reporter"),
		counters:    counters,
		host:        host,
		outstanding: outstanding,
		interval:    interval,
	}
}

// Snapshot returns the counters together with the outstanding count and,
// when readable, the host network counters.
func (r *Reporter) Snapshot(ctx context.Context) Snapshot {
	snap := r.counters.Snapshot()

	if r.outstanding != nil {
		snap.Outstanding = r.outstanding()
	}

	if r.host != nil {
		host, err := r.host.ReadStats(ctx)
		if err != nil {
			r.log.WithError(err).Debug("Failed to read host stats")
		} else {
			snap.Host = host
		}
	}

	return snap
}

// Run logs a summary every interval until ctx is done. A zero interval
// disables reporting and Run returns immediately.
func (r *Reporter) Run(ctx context.Context) error {
	if r.interval <= 0 {
		return nil
	}

	r.Report(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Report(ctx)
		}
	}
}

// Report logs the change since the previous report and returns it. The first
// call only records a baseline and returns nil.
func (r *Reporter) Report(ctx context.Context) *Delta {
	snap := r.Snapshot(ctx)

	r.mu.Lock()
	prev := r.last
	r.last = &snap
	r.mu.Unlock()

	if prev == nil {
		return nil
	}

	delta := ComputeDelta(prev, &snap)

	fields := logrus.Fields{
		"uploads":     delta.Succeeded,
		"failed":      delta.Failed,
		"retried":     delta.Retried,
		"denied":      delta.Denied,
		"outstanding": snap.Outstanding,
		"written":     units.BytesSize(float64(delta.Bytes)),
		"rate":        units.BytesSize(delta.BytesPerSecond()) + "/s",
	}

	if snap.Host != nil && prev.Host != nil {
		fields["host_sent"] = units.BytesSize(float64(delta.HostBytesSent))
	}

	r.log.WithFields(fields).Info("Throughput")

	return delta
}
