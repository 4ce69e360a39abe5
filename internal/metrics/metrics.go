package metrics

import (
	"io"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Registry holds every invocation metric. It is private to this module so
// embedding programs can decide whether to expose it.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(Invocations, InvocationDuration, InFlight)
}

// Invocations counts finished calls by convention (blocking|suspending) and
// outcome (value|stdout or an error kind).
var Invocations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rfn_invocations_total",
		Help: "Finished R function invocations.",
	},
	[]string{"convention", "outcome"},
)

var InvocationDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "rfn_invocation_duration_seconds",
		Help:    "Wall time of R function invocations, workspace setup included.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
	},
	[]string{"convention"},
)

var InFlight = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "rfn_inflight_invocations",
		Help: "Interpreter processes currently running.",
	},
	[]string{"convention"},
)

// Track marks a call as started and returns the function that records its
// outcome. The returned function must be called exactly once.
func Track(convention string) func(outcome string) {
	convention = normalize(convention)
	start := time.Now()
	InFlight.WithLabelValues(convention).Inc()
	return func(outcome string) {
		InFlight.WithLabelValues(convention).Dec()
		Invocations.WithLabelValues(convention, normalize(outcome)).Inc()
		InvocationDuration.WithLabelValues(convention).Observe(time.Since(start).Seconds())
	}
}

// WritePrometheus writes the registry in the Prometheus text format.
func WritePrometheus(w io.Writer) error {
	families, err := Registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "unknown"
	}
	return s
}
