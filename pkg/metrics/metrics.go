package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mperf"

// Error kinds recorded by UploadError.
const (
	KindMissingParent = "missing_parent"
	KindHeal          = "heal"
	KindUpload        = "upload"
)

// Metrics holds the Prometheus collectors of the upload orchestrator.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	Ticks          *prometheus.CounterVec // mperf_ticks_total{result}
	Uploads        *prometheus.CounterVec // mperf_uploads_total{outcome}
	Retries        prometheus.Counter     // mperf_upload_retries_total
	Heals          *prometheus.CounterVec // mperf_heals_total{result}
	Errors         *prometheus.CounterVec // mperf_upload_errors_total{kind}
	BytesUploaded  prometheus.Counter     // mperf_bytes_uploaded_total
	Outstanding    prometheus.Gauge       // mperf_outstanding_uploads
	UploadDuration prometheus.Histogram   // mperf_upload_duration_seconds
	Info           *prometheus.GaugeVec   // mperf_session_info{session,backend}
}

// New registers the collectors on registry. A nil registry uses the
// default registerer.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		Ticks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Timer ticks by admission result",
		}, []string{"result"}),

		Uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Finished upload attempts by outcome",
		}, []string{"outcome"}),

		Retries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_retries_total",
			Help:      "Uploads retried after healing a missing directory",
		}),

		Heals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heals_total",
			Help:      "Directory heal attempts by result",
		}, []string{"result"}),

		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_errors_total",
			Help:      "Upload errors by kind",
		}, []string{"kind"}),

		BytesUploaded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_uploaded_total",
			Help:      "Bytes of successfully uploaded objects",
		}),

		Outstanding: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outstanding_uploads",
			Help:      "Uploads currently holding an admission slot",
		}),

		UploadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "Duration of finished upload attempts, including heal and retry",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),

		Info: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_info",
			Help:      "Constant 1, labelled with the running session",
		}, []string{"session", "backend"}),
	}
}

// Tick records an admission decision.
func (m *Metrics) Tick(admitted bool) {
	if m == nil {
		return
	}

	if admitted {
		m.Ticks.WithLabelValues("admitted").Inc()
		m.Outstanding.Inc()

		return
	}

	m.Ticks.WithLabelValues("denied").Inc()
}

// Finished records a terminal attempt and the release of its slot.
func (m *Metrics) Finished(succeeded bool, bytes int64, duration time.Duration) {
	if m == nil {
		return
	}

	m.Outstanding.Dec()
	m.UploadDuration.Observe(duration.Seconds())

	if succeeded {
		m.Uploads.WithLabelValues("succeeded").Inc()
		m.BytesUploaded.Add(float64(bytes))

		return
	}

	m.Uploads.WithLabelValues("failed").Inc()
}

// Heal records a directory heal attempt.
func (m *Metrics) Heal(err error) {
	if m == nil {
		return
	}

	if err != nil {
		m.Heals.WithLabelValues("error").Inc()

		return
	}

	m.Heals.WithLabelValues("ok").Inc()
}

// Retry records a retried upload.
func (m *Metrics) Retry() {
	if m == nil {
		return
	}

	m.Retries.Inc()
}

// UploadError records an error of the given kind.
func (m *Metrics) UploadError(kind string) {
	if m == nil {
		return
	}

	m.Errors.WithLabelValues(kind).Inc()
}

// Session publishes the session info gauge.
func (m *Metrics) Session(id, backend string) {
	if m == nil {
		return
	}

	m.Info.WithLabelValues(id, backend).Set(1)
}
