package task

import "github.com/prometheus/client_golang/prometheus"

var Executions = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "mathline_task_executions",
	Help: "Number of currently live task executions across all schedulers",
})

func init() {
	prometheus.MustRegister(Executions)
}
