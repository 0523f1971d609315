package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the provisioning counters. Metrics are exposed by scrape
// on the API's /metrics route.
type Collector struct {
	provisionRuns     *prometheus.CounterVec
	deletionsApplied  prometheus.Counter
	queuePushFailures prometheus.Counter
}

func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		provisionRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "presshost_provision_runs_total",
			Help: "Provisioning runs by result",
		}, []string{"result"}),
		deletionsApplied: factory.NewCounter(prometheus.CounterOpts{
			Name: "presshost_deletions_applied_total",
			Help: "Site deletions applied by workers",
		}),
		queuePushFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "presshost_queue_push_failures_total",
			Help: "Jobs that could not be enqueued",
		}),
	}
}

func (c *Collector) RecordProvision(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.provisionRuns.WithLabelValues(result).Inc()
}

func (c *Collector) RecordDeletion() {
	c.deletionsApplied.Inc()
}

func (c *Collector) RecordQueuePushFailure() {
	c.queuePushFailures.Inc()
}
