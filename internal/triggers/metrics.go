package triggers

import "github.com/prometheus/client_golang/prometheus"

var jobsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "trigger_jobs_total",
		Help: "Trigger jobs executed, by type and result",
	},
	[]string{"type", "result"},
)

func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(jobsTotal)
}
