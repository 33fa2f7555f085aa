package stats

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersConcurrent(t *testing.T) {
	var (
		c  Counters
		wg sync.WaitGroup
	)

	for range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			c.Admitted()
			c.Denied()
			c.Finished(true, true, 100)
			c.Finished(false, false, 100)
		}()
	}

	wg.Wait()

	snap := c.Snapshot()
	assert.Equal(t, int64(50), snap.Admitted)
	assert.Equal(t, int64(50), snap.Denied)
	assert.Equal(t, int64(50), snap.Succeeded)
	assert.Equal(t, int64(50), snap.Failed)
	assert.Equal(t, int64(50), snap.Retried)
	assert.Equal(t, int64(5000), snap.Bytes, "failed uploads do not count bytes")
}

func TestComputeDelta(t *testing.T) {
	now := time.Now()

	before := &Snapshot{
		Time:      now,
		Succeeded: 10,
		Failed:    1,
		Bytes:     10 << 20,
		Host:      &HostStats{BytesSent: 1000},
	}
	after := &Snapshot{
		Time:      now.Add(2 * time.Second),
		Succeeded: 14,
		Failed:    2,
		Bytes:     14 << 20,
		Host:      &HostStats{BytesSent: 5000},
	}

	delta := ComputeDelta(before, after)
	require.NotNil(t, delta)

	assert.Equal(t, 2*time.Second, delta.Elapsed)
	assert.Equal(t, int64(4), delta.Succeeded)
	assert.Equal(t, int64(1), delta.Failed)
	assert.Equal(t, int64(4<<20), delta.Bytes)
	assert.Equal(t, uint64(4000), delta.HostBytesSent)
	assert.InDelta(t, float64(2<<20), delta.BytesPerSecond(), 0.001)

	assert.Nil(t, ComputeDelta(nil, after))
}

func TestComputeDelta_HostCounterReset(t *testing.T) {
	before := &Snapshot{Host: &HostStats{BytesSent: 5000}}
	after := &Snapshot{Host: &HostStats{BytesSent: 10}}

	assert.Zero(t, ComputeDelta(before, after).HostBytesSent)
	assert.Zero(t, ComputeDelta(before, &Snapshot{}).HostBytesSent)
	assert.Zero(t, (&Delta{}).BytesPerSecond())
}

type fakeHost struct {
	stats *HostStats
	err   error
}

func (f *fakeHost) ReadStats(context.Context) (*HostStats, error) {
	return f.stats, f.err
}

func (f *fakeHost) Type() string {
	return "fake"
}

func TestReporter(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	var c Counters

	host := &fakeHost{stats: &HostStats{BytesSent: 100}}
	r := NewReporter(log, &c, host, func() int { return 3 }, time.Second)
	ctx := context.Background()

	assert.Nil(t, r.Report(ctx), "first report records the baseline")

	c.Finished(true, false, 4096)
	host.stats = &HostStats{BytesSent: 8292}

	delta := r.Report(ctx)
	require.NotNil(t, delta)
	assert.Equal(t, int64(1), delta.Succeeded)
	assert.Equal(t, uint64(8192), delta.HostBytesSent)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "Throughput", entry.Message)
	assert.Equal(t, 3, entry.Data["outstanding"])
	assert.Contains(t, entry.Data, "host_sent")
}

func TestReporterWithoutHostStats(t *testing.T) {
	log, _ := test.NewNullLogger()

	var c Counters

	r := NewReporter(log, &c, &fakeHost{err: errors.New("unsupported")}, nil, time.Second)

	snap := r.Snapshot(context.Background())
	assert.Nil(t, snap.Host)
	assert.Zero(t, snap.Outstanding)
}

func TestReporterRunDisabled(t *testing.T) {
	log, hook := test.NewNullLogger()

	var c Counters

	r := NewReporter(log, &c, nil, nil, 0)
	require.NoError(t, r.Run(context.Background()))
	assert.Empty(t, hook.AllEntries())
}

func TestReporterRunStopsOnCancel(t *testing.T) {
	log, _ := test.NewNullLogger()

	var c Counters

	r := NewReporter(log, &c, nil, nil, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, r.Run(ctx))
}
