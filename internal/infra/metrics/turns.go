package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(turnsSubmittedTotal, turnsCompletedTotal) }

var turnsSubmittedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chat_turns_submitted_total",
		Help: "Turn submissions, labeled by result.",
	},
	[]string{"result"}, // 'accepted', 'rejected', 'admission_timeout', 'start_failed'
)

var turnsCompletedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chat_turns_completed_total",
		Help: "Turns reaching a terminal state, labeled by status.",
	},
	[]string{"status"}, // 'done', 'failed', 'cancelled', 'orphaned'
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncTurnSubmitted(result string) {
	turnsSubmittedTotal.WithLabelValues(norm(result)).Inc()
}

func IncTurnCompleted(status string) {
	turnsCompletedTotal.WithLabelValues(norm(status)).Inc()
}
