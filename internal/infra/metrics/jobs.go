package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(jobsEnqueuedTotal, jobsDedupedTotal, jobsProcessedTotal, jobsRetriedTotal, rateLimitDeferrals, jobsRequeuedStale)
}

var jobsEnqueuedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "delivery_jobs_enqueued_total",
		Help: "Jobs accepted by the enqueuer, labeled by category.",
	},
	[]string{"category"},
)

var jobsDedupedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "delivery_jobs_deduped_total",
		Help: "Enqueue calls dropped because a live job with the same fingerprint exists.",
	},
	[]string{"category"},
)

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "delivery_jobs_processed_total",
		Help: "Jobs reaching a terminal attempt outcome, labeled by category and status.",
	},
	[]string{"category", "status"}, // 'completed', 'retry_pending', 'exhausted'
)

var jobsRetriedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "delivery_jobs_retried_total",
		Help: "Retry attempts scheduled after a transient delivery failure.",
	},
	[]string{"category"},
)

var rateLimitDeferrals = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "delivery_rate_limit_deferrals_total",
		Help: "Take calls deferred to the next one-second send window.",
	},
	[]string{"category"},
)

var jobsRequeuedStale = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "delivery_jobs_requeued_stale_total",
		Help: "Orphaned in-flight jobs returned to the queue after a worker crash.",
	},
	[]string{"category"},
)

func IncEnqueued(category string)   { jobsEnqueuedTotal.WithLabelValues(norm(category)).Inc() }
func IncDeduped(category string)    { jobsDedupedTotal.WithLabelValues(norm(category)).Inc() }
func IncRetried(category string)    { jobsRetriedTotal.WithLabelValues(norm(category)).Inc() }
func IncRateDeferred(category string) {
	rateLimitDeferrals.WithLabelValues(norm(category)).Inc()
}

func IncJobProcessed(category, status string) {
	jobsProcessedTotal.WithLabelValues(norm(category), norm(status)).Inc()
}

func IncRequeuedStale(category string, n int) {
	jobsRequeuedStale.WithLabelValues(norm(category)).Add(float64(n))
}
