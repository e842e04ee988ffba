package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Command result labels for the commands_total counter.
const (
	ResultOK     = "ok"
	ResultRange  = "range"
	ResultFormat = "format"
)

var (
	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "servolink",
		Name:      "commands_total",
		Help:      "Number of command lines handled, by result.",
	}, []string{"result"})

	currentAngle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "servolink",
		Name:      "commanded_angle_degrees",
		Help:      "Last validated commanded angle in degrees.",
	})

	moveSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "servolink",
		Name:      "actuator_move_seconds",
		Help:      "Latency of actuator move operations.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	})
)

// RecordCommand increments the command counter for the given result label.
func RecordCommand(result string) {
	commandsTotal.WithLabelValues(result).Inc()
}

// SetCommandedAngle updates the commanded angle gauge.
func SetCommandedAngle(angle int) {
	currentAngle.Set(float64(angle))
}

// ObserveMove records the duration of one actuator move.
func ObserveMove(seconds float64) {
	moveSeconds.Observe(seconds)
}

// MetricsHandler returns the HTTP handler serving the Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
