// Package metrics is the ambient observability layer wiring C3's rate
// governor, C8's download pipeline, and C9's scheduler into Prometheus
// collectors — the teacher wires prometheus for its own tuner/gateway hot
// path; this package generalizes the same role to the scan/download engine.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles every collector this module exposes. The zero value is
// not usable; construct with New.
type Registry struct {
	gatherer prometheus.Gatherer

	cycleDuration     prometheus.Histogram
	cycleAbortsTotal  prometheus.Counter
	itemSubtaskResult *prometheus.CounterVec
	backoffMultiplier *prometheus.GaugeVec
}

// New creates a Registry and registers its collectors against reg. Passing
// nil uses prometheus.NewRegistry() (convenient for tests that don't care
// about a process-wide default registry).
func New(reg *prometheus.Registry) *Registry {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	r := &Registry{
		gatherer: reg,
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bilisync",
			Subsystem: "scheduler",
			Name:      "cycle_duration_seconds",
			Help:      "Wall-clock duration of one scheduler cycle (enumerate+download+drain).",
			Buckets:   prometheus.DefBuckets,
		}),
		cycleAbortsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bilisync",
			Subsystem: "scheduler",
			Name:      "cycle_aborts_total",
			Help:      "Number of scheduler cycles cut short by a risk-control abort.",
		}),
		itemSubtaskResult: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bilisync",
			Subsystem: "download",
			Name:      "subtask_result_total",
			Help:      "Terminal subtask outcomes, labeled by subtask name and result.",
		}, []string{"subtask", "result"}),
		backoffMultiplier: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "bilisync",
			Subsystem: "ratelimit",
			Name:      "backoff_multiplier",
			Help:      "Current auto-backoff multiplier per source id.",
		}, []string{"source_id"}),
	}
	reg.MustRegister(r.cycleDuration, r.cycleAbortsTotal, r.itemSubtaskResult, r.backoffMultiplier)
	return r
}

// ObserveCycleSeconds records one scheduler cycle's wall-clock duration and,
// if aborted, increments the abort counter.
func (r *Registry) ObserveCycleSeconds(seconds float64, aborted bool) {
	if r == nil {
		return
	}
	r.cycleDuration.Observe(seconds)
	if aborted {
		r.cycleAbortsTotal.Inc()
	}
}

// ObserveSubtaskResult records one terminal subtask outcome (e.g. "cover",
// "succeeded").
func (r *Registry) ObserveSubtaskResult(subtask, result string) {
	if r == nil {
		return
	}
	r.itemSubtaskResult.WithLabelValues(subtask, result).Inc()
}

// Gatherer exposes the underlying collector registry so a caller can serve
// it over HTTP with promhttp. Returns nil if r is nil.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return nil
	}
	return r.gatherer
}

// SetBackoffMultiplier publishes a source's current auto-backoff
// multiplier (§4.3) for operator visibility.
func (r *Registry) SetBackoffMultiplier(sourceID int64, multiplier float64) {
	if r == nil {
		return
	}
	r.backoffMultiplier.WithLabelValues(strconv.FormatInt(sourceID, 10)).Set(multiplier)
}
