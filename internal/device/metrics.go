package device

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace       = "reiserfs"
	deviceSubsystem = "device"
)

// Metrics collects device level counters for Prometheus
type Metrics struct {
	reads        prometheus.Counter
	bytesRead    prometheus.Counter
	errors       prometheus.Counter
	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter
	readDuration prometheus.Histogram
}

// NewMetrics creates device metrics and registers them with reg.
// A nil registerer leaves the collectors unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: deviceSubsystem,
			Name:      "reads_total",
			Help:      "Number of read requests served by the device",
		}),
		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: deviceSubsystem,
			Name:      "read_bytes_total",
			Help:      "Number of bytes returned by device reads",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: deviceSubsystem,
			Name:      "read_errors_total",
			Help:      "Number of failed device reads",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: deviceSubsystem,
			Name:      "cache_hits_total",
			Help:      "Number of block cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: deviceSubsystem,
			Name:      "cache_misses_total",
			Help:      "Number of block cache misses",
		}),
		readDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: deviceSubsystem,
			Name:      "read_duration_seconds",
			Help:      "Device read handling time",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
	}

	if reg != nil {
		reg.MustRegister(m.reads, m.bytesRead, m.errors, m.cacheHits, m.cacheMisses, m.readDuration)
	}

	return m
}

func (m *Metrics) observeRead(n int, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.reads.Inc()
	m.readDuration.Observe(d.Seconds())
	if err != nil {
		m.errors.Inc()
		return
	}
	m.bytesRead.Add(float64(n))
}

func (m *Metrics) observeCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}
