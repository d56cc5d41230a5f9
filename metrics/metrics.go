// Package metrics exposes solver counters and histograms to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "allocator"

// Recorder records solve outcomes. A nil *Recorder is valid and records nothing.
type Recorder struct {
	solves     *prometheus.CounterVec
	iterations prometheus.Histogram
	duration   prometheus.Histogram
}

// NewRecorder creates the solver collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solves_total",
			Help:      "Number of portfolio solves by terminal status.",
		}, []string{"status"}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solve_iterations",
			Help:      "Simplex iterations per solve.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solve_duration_seconds",
			Help:      "Wall time of a single solve.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
	}
	for _, c := range []prometheus.Collector{r.solves, r.iterations, r.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ObserveSolve records one finished solve.
func (r *Recorder) ObserveSolve(status string, iterations int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.solves.WithLabelValues(status).Inc()
	r.iterations.Observe(float64(iterations))
	r.duration.Observe(elapsed.Seconds())
}
