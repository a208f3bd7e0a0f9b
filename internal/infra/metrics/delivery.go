package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(deliveryLatencyMs) }

var deliveryLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "delivery_send_latency_ms",
		Help:    "Provider send latency distribution in milliseconds.",
		Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 10000, 30000, 60000},
	},
	[]string{"category", "success"},
)

func ObserveDelivery(category string, latencyMs int, success bool) {
	deliveryLatencyMs.WithLabelValues(norm(category), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}
