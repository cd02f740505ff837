// Package metrics exposes Prometheus collectors for download runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cwygoda/nftfolder/internal/domain"
)

const namespace = "nftfolder"

// Metrics reports pipeline activity. A nil *Metrics is a no-op.
type Metrics struct {
	discovered      prometheus.Counter
	outcomes        *prometheus.CounterVec
	locatorFailures prometheus.Counter
	bytes           prometheus.Counter
	inFlight        prometheus.Gauge
	duration        *prometheus.HistogramVec
	pages           *prometheus.CounterVec
}

// MustNewMetrics registers the collectors with reg, reusing collectors that
// are already registered. Other registration errors panic.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		discovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_discovered_total",
			Help:      "Records located and scheduled.",
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Resolved records by outcome kind.",
		}, []string{"kind"}),
		locatorFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locator_failures_total",
			Help:      "Records rejected before scheduling.",
		}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloaded_bytes_total",
			Help:      "Bytes written to disk.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "downloads_in_flight",
			Help:      "Fetches currently holding a permit.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "download_duration_seconds",
			Help:      "Time spent fetching one asset.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"fetcher", "kind"}),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_total",
			Help:      "Listing pages fetched by result.",
		}, []string{"result"}),
	}

	m.discovered = register(reg, m.discovered)
	m.outcomes = register(reg, m.outcomes)
	m.locatorFailures = register(reg, m.locatorFailures)
	m.bytes = register(reg, m.bytes)
	m.inFlight = register(reg, m.inFlight)
	m.duration = register(reg, m.duration)
	m.pages = register(reg, m.pages)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// Discovered counts a scheduled record.
func (m *Metrics) Discovered() {
	if m == nil {
		return
	}
	m.discovered.Inc()
}

// LocatorFailure counts a record that could not be located.
func (m *Metrics) LocatorFailure() {
	if m == nil {
		return
	}
	m.locatorFailures.Inc()
}

// Completed counts a resolved record.
func (m *Metrics) Completed(o domain.Outcome) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(string(o.Kind)).Inc()
	if o.Kind == domain.OutcomeSaved {
		m.bytes.Add(float64(o.Bytes))
	}
}

// FetchStarted marks a fetch as holding a permit.
func (m *Metrics) FetchStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// FetchFinished releases the in-flight mark and observes the duration.
func (m *Metrics) FetchFinished(fetcher string, kind domain.OutcomeKind, d time.Duration) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.duration.WithLabelValues(fetcher, string(kind)).Observe(d.Seconds())
}

// Page counts a listing page by result ("ok" or "error").
func (m *Metrics) Page(result string) {
	if m == nil {
		return
	}
	m.pages.WithLabelValues(result).Inc()
}
