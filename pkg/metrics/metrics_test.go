package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.Tick(true)
		m.Tick(false)
		m.Finished(true, 10, time.Second)
		m.Heal(nil)
		m.Retry()
		m.UploadError(KindUpload)
		m.Session("id", "local")
	})
}

func TestMetricsRecording(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Tick(true)
	m.Tick(true)
	m.Tick(false)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Ticks.WithLabelValues("admitted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Ticks.WithLabelValues("denied")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Outstanding))

	m.Finished(true, 1024, 50*time.Millisecond)
	m.Finished(false, 0, 10*time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Outstanding))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Uploads.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Uploads.WithLabelValues("failed")))
	assert.Equal(t, 1024.0, testutil.ToFloat64(m.BytesUploaded))

	m.Heal(nil)
	m.Heal(errors.New("mkdir failed"))
	m.Retry()
	m.UploadError(KindMissingParent)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Heals.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Heals.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Retries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues(KindMissingParent)))
}
