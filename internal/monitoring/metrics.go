// internal/monitoring/metrics.go

// Package monitoring exposes Prometheus metrics and health checks for the
// resolver, the collector and the output stage.
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/valpere/FeedScrapexter/internal/selector"
	"github.com/valpere/FeedScrapexter/pkg/types"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "feedscrapexter"

// Metrics records resolver and collector activity on its own registry. It
// implements selector.Observer and collector.Observer.
type Metrics struct {
	registry *prometheus.Registry

	// Resolution metrics
	resolutions *prometheus.CounterVec
	escalations *prometheus.CounterVec

	// Collection metrics
	passes         *prometheus.CounterVec
	passDuration   *prometheus.HistogramVec
	records        *prometheus.CounterVec
	droppedPasses  prometheus.Counter
	deliveries     *prometheus.CounterVec
	retainedGauge  prometheus.Gauge
	flushedBatches prometheus.Counter
}

// NewMetrics creates the metrics on a fresh registry that also carries the Go
// runtime and process collectors.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		resolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "resolver",
				Name:      "resolutions_total",
				Help:      "Query resolutions by page type, target and the tier that produced the query",
			},
			[]string{"page_type", "target", "tier", "matched"},
		),
		escalations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "resolver",
				Name:      "escalations_total",
				Help:      "Escalation attempts by outcome",
			},
			[]string{"page_type", "target", "outcome"},
		),

		passes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "collector",
				Name:      "passes_total",
				Help:      "Completed collection passes",
			},
			[]string{"page_type"},
		),
		passDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "collector",
				Name:      "pass_duration_seconds",
				Help:      "Collection pass duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"page_type"},
		),
		records: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "collector",
				Name:      "records_total",
				Help:      "Records collected by page type and batch list",
			},
			[]string{"page_type", "list"},
		),
		droppedPasses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "dropped_passes_total",
			Help:      "Pass requests dropped because another pass was in flight",
		}),
		deliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "output",
				Name:      "deliveries_total",
				Help:      "Batch deliveries by status",
			},
			[]string{"status"},
		),
		retainedGauge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "output",
			Name:      "retained_batches",
			Help:      "Batches waiting in the outbox for redelivery",
		}),
		flushedBatches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "output",
			Name:      "flushed_batches_total",
			Help:      "Retained batches delivered by a flush",
		}),
	}
}

// Registry returns the registry the metrics live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveResolution(pageType selector.PageType, target selector.Target, tier selector.Tier, matched bool) {
	m.resolutions.WithLabelValues(string(pageType), string(target), string(tier), strconv.FormatBool(matched)).Inc()
}

func (m *Metrics) ObserveEscalation(pageType selector.PageType, target selector.Target, outcome string) {
	m.escalations.WithLabelValues(string(pageType), string(target), outcome).Inc()
}

func (m *Metrics) ObservePass(pageType selector.PageType, batch *types.Batch, elapsed time.Duration) {
	pt := string(pageType)
	m.passes.WithLabelValues(pt).Inc()
	m.passDuration.WithLabelValues(pt).Observe(elapsed.Seconds())
	if batch == nil {
		return
	}
	m.records.WithLabelValues(pt, "videos").Add(float64(len(batch.Videos)))
	m.records.WithLabelValues(pt, "shorts").Add(float64(len(batch.Shorts)))
	m.records.WithLabelValues(pt, "recommended").Add(float64(len(batch.RecommendedVideos)))
	m.records.WithLabelValues(pt, "subscriptions").Add(float64(len(batch.Subscriptions)))
}

func (m *Metrics) ObserveDroppedPass() {
	m.droppedPasses.Inc()
}

// ObserveDelivery counts a delivery as delivered or failed. Retained batches
// count as failed.
func (m *Metrics) ObserveDelivery(err error) {
	status := "delivered"
	if err != nil {
		status = "failed"
	}
	m.deliveries.WithLabelValues(status).Inc()
}

// SetRetained sets the outbox size gauge.
func (m *Metrics) SetRetained(n int) {
	m.retainedGauge.Set(float64(n))
}

// ObserveFlush counts batches delivered from the outbox.
func (m *Metrics) ObserveFlush(delivered int) {
	m.flushedBatches.Add(float64(delivered))
}
