// Package perf is the performance optimizer sidecar: it tracks per-stage
// latency via Prometheus, schedules precomputation for hot pools, and raises
// alerts when a chain's pipeline degrades past configured thresholds.
package perf

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Thresholds configures when the optimizer raises an alert. Exceeding any
// bound for ConsecutiveBreaches consecutive observations raises one.
type Thresholds struct {
	MaxDetectLatency  time.Duration
	MaxBuildLatency   time.Duration
	MaxSubmitLatency  time.Duration
	ConsecutiveBreach int
}

// DefaultThresholds matches §4.10's suggested envelope for a competitive
// sandwich pipeline against a 400ms-block chain.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxDetectLatency:  50 * time.Millisecond,
		MaxBuildLatency:   30 * time.Millisecond,
		MaxSubmitLatency:  100 * time.Millisecond,
		ConsecutiveBreach: 5,
	}
}

// Optimizer records stage latencies as Prometheus histograms and tracks
// consecutive-breach counters per stage for alerting.
type Optimizer struct {
	thresholds Thresholds

	detectLatency prometheus.Histogram
	buildLatency  prometheus.Histogram
	submitLatency prometheus.Histogram
	hotPoolGauge  prometheus.Gauge

	mu       sync.Mutex
	breaches map[string]int
	alerts   chan Alert
}

// Alert reports that a stage has breached its threshold ConsecutiveBreach
// times in a row.
type Alert struct {
	Stage   string
	Latency time.Duration
}

// New builds an Optimizer and registers its metrics against reg.
func New(reg prometheus.Registerer, thresholds Thresholds) *Optimizer {
	o := &Optimizer{
		thresholds: thresholds,
		detectLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "sandwichcore_detect_latency_seconds",
			Help: "Opportunity detection latency from pending-swap observation to scored Opportunity.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		buildLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "sandwichcore_build_latency_seconds",
			Help: "Bundle construction latency from Opportunity to signed Bundle.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		submitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "sandwichcore_submit_latency_seconds",
			Help: "Relay submission round-trip latency.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		hotPoolGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sandwichcore_hot_pools",
			Help: "Number of pools currently pinned for precomputation.",
		}),
		breaches: make(map[string]int),
		alerts:   make(chan Alert, 64),
	}
	reg.MustRegister(o.detectLatency, o.buildLatency, o.submitLatency, o.hotPoolGauge)
	return o
}

// Alerts returns the channel of raised threshold-breach alerts.
func (o *Optimizer) Alerts() <-chan Alert { return o.alerts }

// ObserveDetect records a detection-stage latency sample.
func (o *Optimizer) ObserveDetect(d time.Duration) {
	o.detectLatency.Observe(d.Seconds())
	o.checkThreshold("detect", d, o.thresholds.MaxDetectLatency)
}

// ObserveBuild records a build-stage latency sample.
func (o *Optimizer) ObserveBuild(d time.Duration) {
	o.buildLatency.Observe(d.Seconds())
	o.checkThreshold("build", d, o.thresholds.MaxBuildLatency)
}

// ObserveSubmit records a submit-stage latency sample.
func (o *Optimizer) ObserveSubmit(d time.Duration) {
	o.submitLatency.Observe(d.Seconds())
	o.checkThreshold("submit", d, o.thresholds.MaxSubmitLatency)
}

func (o *Optimizer) checkThreshold(stage string, observed, limit time.Duration) {
	if limit <= 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if observed > limit {
		o.breaches[stage]++
		if o.breaches[stage] >= o.thresholds.ConsecutiveBreach {
			select {
			case o.alerts <- Alert{Stage: stage, Latency: observed}:
			default:
			}
			o.breaches[stage] = 0
		}
	} else {
		o.breaches[stage] = 0
	}
}

// SetHotPoolCount reports the number of pools currently pinned for
// precomputation, e.g. by the pool cache's Pin calls.
func (o *Optimizer) SetHotPoolCount(n int) {
	o.hotPoolGauge.Set(float64(n))
}
