// ABOUTME: Prometheus counters for best-effort failures
// ABOUTME: Labelled by the operation that degraded
package crm

import "github.com/prometheus/client_golang/prometheus"

var bestEffortFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "kith",
	Subsystem: "crm",
	Name:      "best_effort_failures_total",
	Help:      "Number of secondary side effects that failed while the primary operation succeeded.",
}, []string{"operation"})

func init() {
	prometheus.MustRegister(bestEffortFailures)
}
