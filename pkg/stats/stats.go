package stats

import (
	"sync/atomic"
	"time"
)

// Counters aggregates upload outcomes. It is safe for concurrent use.
type Counters struct {
	admitted  atomic.Int64
	denied    atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	retried   atomic.Int64
	bytes     atomic.Int64
}

// Snapshot is a point-in-time copy of the counters. All values are cumulative
// except Outstanding.
type Snapshot struct {
	Time        time.Time `json:"time"`
	Admitted    int64     `json:"admitted"`
	Denied      int64     `json:"denied"`
	Succeeded   int64     `json:"succeeded"`
	Failed      int64     `json:"failed"`
	Retried     int64     `json:"retried"`
	Bytes       int64     `json:"bytes"`
	Outstanding int       `json:"outstanding"`
	// Host is nil when host counters are unavailable.
	Host *HostStats `json:"host,omitempty"`
}

// Delta is the difference between two snapshots.
type Delta struct {
	Elapsed   time.Duration
	Admitted  int64
	Denied    int64
	Succeeded int64
	Failed    int64
	Retried   int64
	Bytes     int64
	// HostBytesSent is zero when either snapshot lacks host counters.
	HostBytesSent uint64
}

// Admitted records an admitted tick.
func (c *Counters) Admitted() {
	c.admitted.Add(1)
}

// Denied records a tick dropped by admission control.
func (c *Counters) Denied() {
	c.denied.Add(1)
}

// Finished records a terminal upload attempt.
func (c *Counters) Finished(succeeded, retried bool, bytes int64) {
	if retried {
		c.retried.Add(1)
	}

	if succeeded {
		c.succeeded.Add(1)
		c.bytes.Add(bytes)

		return
	}

	c.failed.Add(1)
}

// Snapshot returns the current counter values.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Time:      time.Now(),
		Admitted:  c.admitted.Load(),
		Denied:    c.denied.Load(),
		Succeeded: c.succeeded.Load(),
		Failed:    c.failed.Load(),
		Retried:   c.retried.Load(),
		Bytes:     c.bytes.Load(),
	}
}

// ComputeDelta calculates the difference between after and before.
func ComputeDelta(before, after *Snapshot) *Delta {
	if before == nil || after == nil {
		return nil
	}

	delta := &Delta{
		Elapsed:   after.Time.Sub(before.Time),
		Admitted:  after.Admitted - before.Admitted,
		Denied:    after.Denied - before.Denied,
		Succeeded: after.Succeeded - before.Succeeded,
		Failed:    after.Failed - before.Failed,
		Retried:   after.Retried - before.Retried,
		Bytes:     after.Bytes - before.Bytes,
	}

	// Host counters are cumulative but may wrap or reset with the interface.
	if before.Host != nil && after.Host != nil && after.Host.BytesSent >= before.Host.BytesSent {
		delta.HostBytesSent = after.Host.BytesSent - before.Host.BytesSent
	}

	return delta
}

// BytesPerSecond returns the upload rate over the delta's interval.
func (d *Delta) BytesPerSecond() float64 {
	if d.Elapsed <= 0 {
		return 0
	}

	return float64(d.Bytes) / d.Elapsed.Seconds()
}
