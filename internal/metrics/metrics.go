package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	labelMethod = "method"
	labelPath   = "path"
	labelStatus = "status"
	labelResult = "result"

	resultOK    = "ok"
	resultError = "error"
)

// Metrics groups the collectors exported by the service
type Metrics struct {
	Requests     *prometheus.CounterVec
	Latency      *prometheus.HistogramVec
	CatalogRows  prometheus.Gauge
	Reloads      *prometheus.CounterVec
	QuoteMatches prometheus.Histogram
	CacheHits    prometheus.Counter
	RateLimited  prometheus.Counter
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{labelMethod, labelPath, labelStatus},
		),
		Latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "HTTP latency",
			},
			[]string{labelMethod, labelPath},
		),
		CatalogRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "catalog_rows",
			Help: "Rows in the catalog currently served",
		}),
		Reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_reloads_total",
				Help: "Catalog load attempts by result",
			},
			[]string{labelResult},
		),
		QuoteMatches: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quote_matches",
			Help:    "Matches returned per query",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quote_cache_hits_total",
			Help: "Quotations answered from the result cache",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Requests rejected by the per-client rate limiter",
		}),
	}

	reg.MustRegister(m.Requests, m.Latency, m.CatalogRows, m.Reloads, m.QuoteMatches, m.CacheHits, m.RateLimited)
	return m
}

// ObserveRequest records one served HTTP request
func (m *Metrics) ObserveRequest(method, path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Latency.WithLabelValues(method, path).Observe(elapsed.Seconds())
	m.Requests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

// ObserveReload records a catalog load attempt. rows is ignored on failure.
func (m *Metrics) ObserveReload(rows int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Reloads.WithLabelValues(resultError).Inc()
		return
	}
	m.Reloads.WithLabelValues(resultOK).Inc()
	m.CatalogRows.Set(float64(rows))
}

// ObserveMatches records the number of matches for one query
func (m *Metrics) ObserveMatches(n int) {
	if m == nil {
		return
	}
	m.QuoteMatches.Observe(float64(n))
}

// ObserveCacheHit counts a quotation served from cache
func (m *Metrics) ObserveCacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

// ObserveRateLimited counts a rejected request
func (m *Metrics) ObserveRateLimited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}
