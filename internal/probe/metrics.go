package probe

import "github.com/prometheus/client_golang/prometheus"

var probeAttemptsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "llamad",
		Subsystem: "probe",
		Name:      "attempts_total",
		Help:      "Probe attempts by stage and outcome",
	},
	[]string{"stage", "outcome"},
)

func init() {
	prometheus.MustRegister(probeAttemptsTotal)
}

func observeAttempt(stage, outcome string) {
	probeAttemptsTotal.WithLabelValues(stage, outcome).Inc()
}
