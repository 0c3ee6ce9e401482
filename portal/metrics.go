package portal

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the set of prometheus instruments a Client reports against. A
// nil *Metrics is valid everywhere it is accepted: every method is a no-op
// on a nil receiver, so metrics are opt-in.
type Metrics struct {
	BufferedBytes     prometheus.Gauge
	BlocksDelivered   prometheus.Counter
	BatchesDelivered  prometheus.Counter
	HTTPRequests      prometheus.Counter
	HTTPRetries       prometheus.Counter
	TransientTimeouts prometheus.Counter
	HeadPolls         prometheus.Counter
	BackpressureWait  prometheus.Histogram

	mu                sync.Mutex
	backpressureStart time.Time
}

// NewMetrics builds and, if reg is non-nil, registers the portal client's
// instruments under the "portal" namespace.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BufferedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "portal", Subsystem: "buffer", Name: "bytes",
			Help: "Bytes currently buffered awaiting handoff to the consumer.",
		}),
		BlocksDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portal", Name: "blocks_delivered_total",
			Help: "Blocks handed off to a stream consumer.",
		}),
		BatchesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portal", Name: "batches_delivered_total",
			Help: "Batches handed off to a stream consumer.",
		}),
		HTTPRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portal", Subsystem: "http", Name: "requests_total",
			Help: "Requests issued to the portal, excluding retries.",
		}),
		HTTPRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portal", Subsystem: "http", Name: "retries_total",
			Help: "Retry attempts issued by the HTTP transport.",
		}),
		TransientTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portal", Subsystem: "http", Name: "transient_timeouts_total",
			Help: "Body-read timeouts resumed from mid-range rather than treated as fatal.",
		}),
		HeadPolls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portal", Name: "head_polls_total",
			Help: "Calls to the finalized height endpoint that were not served from cache.",
		}),
		BackpressureWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "portal", Name: "backpressure_wait_seconds",
			Help:    "Time a producer spent blocked on the buffer's backpressure ceiling.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.BufferedBytes, m.BlocksDelivered, m.BatchesDelivered,
			m.HTTPRequests, m.HTTPRetries, m.TransientTimeouts,
			m.HeadPolls, m.BackpressureWait,
		)
	}
	return m
}

// OnBufferedBytes implements buffer.Observer.
func (m *Metrics) OnBufferedBytes(n uint64) {
	if m == nil {
		return
	}
	m.BufferedBytes.Set(float64(n))
}

// OnHandoff implements buffer.Observer.
func (m *Metrics) OnHandoff(items int, bytes uint64) {
	if m == nil {
		return
	}
	m.BatchesDelivered.Inc()
	m.BlocksDelivered.Add(float64(items))
	m.BufferedBytes.Set(0)
}

// OnBackpressureStart implements buffer.Observer.
func (m *Metrics) OnBackpressureStart() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.backpressureStart = time.Now()
	m.mu.Unlock()
}

// OnBackpressureEnd implements buffer.Observer.
func (m *Metrics) OnBackpressureEnd() {
	if m == nil {
		return
	}
	m.mu.Lock()
	start := m.backpressureStart
	m.backpressureStart = time.Time{}
	m.mu.Unlock()
	if !start.IsZero() {
		m.BackpressureWait.Observe(time.Since(start).Seconds())
	}
}
