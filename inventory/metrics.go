package inventory

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// operationsTotal counts row-store calls by operation and result
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boxgrid_store_operations_total",
		Help: "Row-store operations by operation and result",
	}, []string{"op", "result"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "boxgrid_store_operation_duration_seconds",
		Help:    "Row-store operation latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
	}, []string{"op"})

	legacyMigratedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxgrid_legacy_boxes_migrated_total",
		Help: "Boxes copied from a legacy local-storage dump into the row-store",
	})
)

func observe(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	operationsTotal.WithLabelValues(op, result).Inc()
	operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
