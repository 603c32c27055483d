package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(statusPollsTotal, pollLatencyMs) }

var statusPollsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chat_status_polls_total",
		Help: "Status polls issued, labeled by outcome.",
	},
	[]string{"outcome"}, // 'ok', 'not_found', 'transient', 'error'
)

var pollLatencyMs = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "chat_status_poll_latency_ms",
		Help:    "Status poll latency distribution in milliseconds.",
		Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000},
	},
)

func IncPoll(outcome string) {
	statusPollsTotal.WithLabelValues(norm(outcome)).Inc()
}

func ObservePollLatency(ms int) {
	pollLatencyMs.Observe(float64(ms))
}
