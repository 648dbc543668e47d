// ABOUTME: Prometheus counters for notification scheduling and delivery
// ABOUTME: Registered once at package init
package notify

import "github.com/prometheus/client_golang/prometheus"

var (
	scheduledCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "kith",
		Subsystem: "notify",
		Name:      "scheduled_total",
		Help:      "Number of notifications scheduled.",
	})

	cancelledCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "kith",
		Subsystem: "notify",
		Name:      "cancelled_total",
		Help:      "Number of scheduled notifications cancelled.",
	})

	deliveredCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "kith",
		Subsystem: "notify",
		Name:      "delivered_total",
		Help:      "Number of notifications delivered to a sink.",
	})

	failureCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kith",
		Subsystem: "notify",
		Name:      "failures_total",
		Help:      "Number of dispatcher failures grouped by operation.",
	}, []string{"operation"})
)

func init() {
	prometheus.MustRegister(scheduledCounter, cancelledCounter, deliveredCounter, failureCounter)
}
