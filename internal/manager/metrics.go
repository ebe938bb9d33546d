package manager

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "modelserve",
		Subsystem: "model",
		Name:      "loads_total",
		Help:      "Model loads by outcome",
	}, []string{"result"})

	loadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "modelserve",
		Subsystem: "model",
		Name:      "load_duration_seconds",
		Help:      "Time spent constructing the model handle",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	queueWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "modelserve",
		Subsystem: "inference",
		Name:      "queue_wait_seconds",
		Help:      "Time requests waited for an inference slot",
		Buckets:   prometheus.DefBuckets,
	})

	inferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "modelserve",
		Subsystem: "inference",
		Name:      "duration_seconds",
		Help:      "Duration of runtime calls by operation",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"operation", "status"})
)

// ObserveInference records one runtime call.
func ObserveInference(operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	inferenceDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}
