package flow

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics collects interpreter metrics under the "storyflow"
// namespace:
//
//   - ticks_total (counter): Update calls.
//   - commands_total (counter): commands started. Labels: kind, mode (live/simulated).
//   - transitions_total (counter): state machine transitions. Labels: transition.
//   - loaded_blocks (gauge): blocks currently loaded.
//   - jump_stack_depth (gauge): pending jump stack entries. Labels: block.
//   - restore_wait_seconds (histogram): time from restore start to completion.
//   - save_errors_total (counter): failed autosaves.
//
// Expose with:
//
//	registry := prometheus.NewRegistry()
//	metrics := flow.NewPrometheusMetrics(registry)
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
type PrometheusMetrics struct {
	ticks          prometheus.Counter
	commands       *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	loadedBlocks   prometheus.Gauge
	jumpStackDepth *prometheus.GaugeVec
	restoreWait    prometheus.Histogram
	saveErrors     prometheus.Counter

	mu      sync.RWMutex
	enabled bool
}

// NewPrometheusMetrics creates and registers the metrics. A nil registry
// means prometheus.DefaultRegisterer.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &PrometheusMetrics{
		enabled: true,
		ticks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "storyflow",
			Name:      "ticks_total",
			Help:      "Number of interpreter update ticks",
		}),
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storyflow",
			Name:      "commands_total",
			Help:      "Commands started, by kind and mode",
		}, []string{"kind", "mode"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storyflow",
			Name:      "transitions_total",
			Help:      "Block state machine transitions",
		}, []string{"transition"}),
		loadedBlocks: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "storyflow",
			Name:      "loaded_blocks",
			Help:      "Number of currently loaded blocks",
		}),
		jumpStackDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "storyflow",
			Name:      "jump_stack_depth",
			Help:      "Pending command jump stack entries per block",
		}, []string{"block"}),
		restoreWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "storyflow",
			Name:      "restore_wait_seconds",
			Help:      "Time spent waiting for the host to restore after simulation",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		saveErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "storyflow",
			Name:      "save_errors_total",
			Help:      "Autosave attempts that failed",
		}),
	}
}

func (pm *PrometheusMetrics) on() bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.enabled
}

// RecordTick counts one Update call.
func (pm *PrometheusMetrics) RecordTick() {
	if !pm.on() {
		return
	}
	pm.ticks.Inc()
}

// RecordCommand counts a started command.
func (pm *PrometheusMetrics) RecordCommand(kind string, simulated bool) {
	if !pm.on() {
		return
	}
	mode := "live"
	if simulated {
		mode = "simulated"
	}
	pm.commands.WithLabelValues(kind, mode).Inc()
}

// RecordTransition counts a transition.
func (pm *PrometheusMetrics) RecordTransition(t Transition) {
	if !pm.on() {
		return
	}
	pm.transitions.WithLabelValues(t.String()).Inc()
}

// SetLoadedBlocks sets the loaded block gauge.
func (pm *PrometheusMetrics) SetLoadedBlocks(n int) {
	if !pm.on() {
		return
	}
	pm.loadedBlocks.Set(float64(n))
}

// SetJumpStackDepth sets the jump stack gauge of a block.
func (pm *PrometheusMetrics) SetJumpStackDepth(blockID string, depth int) {
	if !pm.on() {
		return
	}
	pm.jumpStackDepth.WithLabelValues(blockID).Set(float64(depth))
}

// ObserveRestore records how long a restore took.
func (pm *PrometheusMetrics) ObserveRestore(d time.Duration) {
	if !pm.on() {
		return
	}
	pm.restoreWait.Observe(d.Seconds())
}

// IncrementSaveErrors counts a failed autosave.
func (pm *PrometheusMetrics) IncrementSaveErrors() {
	if !pm.on() {
		return
	}
	pm.saveErrors.Inc()
}

// Disable stops recording until Enable is called.
func (pm *PrometheusMetrics) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

// Enable resumes recording.
func (pm *PrometheusMetrics) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}

// Reset zeroes the gauges. Counters and histograms are cumulative.
func (pm *PrometheusMetrics) Reset() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.loadedBlocks.Set(0)
	pm.jumpStackDepth.Reset()
}
