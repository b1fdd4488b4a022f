// Package metrics registers the radar's Prometheus collectors and the
// optional HTTP listener exposing them.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics aggregates the radar's collectors. A nil *Metrics is valid and
// drops every observation, so tests and disabled deployments skip
// registration entirely.
type Metrics struct {
	scanCycles         prometheus.Counter
	scanDuration       prometheus.Histogram
	instrumentsScanned prometheus.Counter
	fetchErrors        prometheus.Counter
	signals            *prometheus.CounterVec
	alertsFired        *prometheus.CounterVec
	alertsSuppressed   prometheus.Counter
	notifyErrors       prometheus.Counter
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	breadth            prometheus.Gauge
	lastScan           prometheus.Gauge
}

// New registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		scanCycles: f.NewCounter(prometheus.CounterOpts{
			Name: "radar_scan_cycles_total",
			Help: "Completed scan cycles.",
		}),
		scanDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "radar_scan_duration_seconds",
			Help:    "Wall time of one scan cycle.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		instrumentsScanned: f.NewCounter(prometheus.CounterOpts{
			Name: "radar_instruments_scanned_total",
			Help: "Instruments evaluated across all cycles.",
		}),
		fetchErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "radar_fetch_errors_total",
			Help: "Upstream fetch failures (per instrument, per cycle).",
		}),
		signals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "radar_signals_total",
			Help: "Classification outcomes by signal state.",
		}, []string{"signal"}),
		alertsFired: f.NewCounterVec(prometheus.CounterOpts{
			Name: "radar_alerts_fired_total",
			Help: "Alerts sent, by alert kind.",
		}, []string{"kind"}),
		alertsSuppressed: f.NewCounter(prometheus.CounterOpts{
			Name: "radar_alerts_suppressed_total",
			Help: "Candidate alerts blocked by an active cooldown.",
		}),
		notifyErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "radar_notify_errors_total",
			Help: "Notification delivery failures.",
		}),
		cacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "radar_cache_hits_total",
			Help: "Result cache hits, by cache name.",
		}, []string{"cache"}),
		cacheMisses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "radar_cache_misses_total",
			Help: "Result cache misses, by cache name.",
		}, []string{"cache"}),
		breadth: f.NewGauge(prometheus.GaugeOpts{
			Name: "radar_market_breadth",
			Help: "Fraction of the universe trading below its short MA.",
		}),
		lastScan: f.NewGauge(prometheus.GaugeOpts{
			Name: "radar_last_scan_unixtime",
			Help: "Unix time of the last completed scan cycle.",
		}),
	}
}

func (m *Metrics) ScanCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.scanCycles.Inc()
	m.scanDuration.Observe(d.Seconds())
	m.lastScan.SetToCurrentTime()
}

func (m *Metrics) InstrumentScanned() {
	if m == nil {
		return
	}
	m.instrumentsScanned.Inc()
}

func (m *Metrics) FetchError() {
	if m == nil {
		return
	}
	m.fetchErrors.Inc()
}

func (m *Metrics) Signal(signal string) {
	if m == nil {
		return
	}
	m.signals.WithLabelValues(signal).Inc()
}

func (m *Metrics) AlertFired(kind string) {
	if m == nil {
		return
	}
	m.alertsFired.WithLabelValues(kind).Inc()
}

func (m *Metrics) AlertSuppressed() {
	if m == nil {
		return
	}
	m.alertsSuppressed.Inc()
}

func (m *Metrics) NotifyError() {
	if m == nil {
		return
	}
	m.notifyErrors.Inc()
}

func (m *Metrics) CacheHit(cache string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(cache).Inc()
}

func (m *Metrics) CacheMiss(cache string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(cache).Inc()
}

func (m *Metrics) Breadth(ratio float64) {
	if m == nil {
		return
	}
	m.breadth.Set(ratio)
}

// Server starts an HTTP listener serving /metrics and /healthz in the
// background and returns it for shutdown.
func Server(addr string, gatherer prometheus.Gatherer, log zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	return srv
}
