package harvest

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RunMetrics counts what one harvest run did.
type RunMetrics struct {
	pages       *prometheus.CounterVec
	records     prometheus.Counter
	rateLimited prometheus.Counter
	duplicates  prometheus.Counter
	lastSuccess prometheus.Gauge
	duration    prometheus.Gauge
}

// NewRunMetrics creates unregistered run metrics.
func NewRunMetrics() *RunMetrics {
	return &RunMetrics{
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "issue_stats_harvest_pages_total",
			Help: "Non-empty issue pages fetched, by requested state.",
		}, []string{"state"}),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "issue_stats_harvest_records_total",
			Help: "Issue and pull request records received.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "issue_stats_harvest_rate_limited_total",
			Help: "Rate-limited responses that were retried or exhausted the retry budget.",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "issue_stats_harvest_duplicates_total",
			Help: "Records whose issue number was already harvested.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "issue_stats_harvest_last_success_timestamp_seconds",
			Help: "Unix time of the last completed harvest.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "issue_stats_harvest_duration_seconds",
			Help: "Wall time of the last completed harvest.",
		}),
	}
}

// Collectors returns the metrics for registration.
func (m *RunMetrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.pages,
		m.records,
		m.rateLimited,
		m.duplicates,
		m.lastSuccess,
		m.duration,
	}
}
