package upgrade

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricModulesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arena",
		Name:      "upgrade_modules_total",
		Help:      "Number of modules by terminal status.",
	}, []string{"status"})
	metricStepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arena",
		Name:      "upgrade_steps_total",
		Help:      "Number of steps by terminal status.",
	}, []string{"status"})
	metricWinnersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arena",
		Name:      "upgrade_winners_total",
		Help:      "Step winners by variant.",
	}, []string{"variant"})
	metricMergesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arena",
		Name:      "upgrade_merges_total",
		Help:      "Winner merges by method.",
	}, []string{"method"})
)

func recordModule(status string) {
	metricModulesTotal.WithLabelValues(status).Inc()
}

func recordStep(status, winner, method string) {
	metricStepsTotal.WithLabelValues(status).Inc()
	if winner != "" {
		metricWinnersTotal.WithLabelValues(winner).Inc()
	}
	if method != "" {
		metricMergesTotal.WithLabelValues(method).Inc()
	}
}
