package inventory

import "github.com/prometheus/client_golang/prometheus"

func OpsCounter(op, result string) prometheus.Counter {
	return operationsTotal.WithLabelValues(op, result)
}

func LegacyMigratedCounter() prometheus.Counter { return legacyMigratedTotal }
