package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(webhookEventsTotal, reconcileMissTotal, webhookDropsTotal, sweeperDeletedTotal) }

var webhookEventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Inbound webhook events, labeled by kind (status/content).",
	},
	[]string{"kind"},
)

var reconcileMissTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_reconcile_miss_total",
		Help: "Events referencing a message or context this system does not know.",
	},
	[]string{"kind"},
)

var webhookDropsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "webhook_events_dropped_total",
		Help: "Events dropped because the reconcile pool was saturated; the provider redelivers.",
	},
)

var sweeperDeletedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "retention_deleted_total",
		Help: "Rows removed by the retention sweeper, labeled by kind (jobs/credentials).",
	},
	[]string{"kind"},
)

func IncWebhookEvent(kind string)  { webhookEventsTotal.WithLabelValues(norm(kind)).Inc() }
func IncReconcileMiss(kind string) { reconcileMissTotal.WithLabelValues(norm(kind)).Inc() }
func IncWebhookDrop()              { webhookDropsTotal.Inc() }

func AddSwept(kind string, n int) {
	if n > 0 {
		sweeperDeletedTotal.WithLabelValues(norm(kind)).Add(float64(n))
	}
}
