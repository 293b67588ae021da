package core

import "github.com/prometheus/client_golang/prometheus"

var (
	ConnectedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mathline_connected_clients",
		Help: "Number of currently connected clients",
	})

	LinesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mathline_lines_total",
		Help: "Total lines by direction (received, sent, dropped)",
	}, []string{"direction"})

	LineHandlingDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mathline_line_handling_seconds",
		Help:    "Time spent handling one received line",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(ConnectedClients)
	prometheus.MustRegister(LinesTotal)
	prometheus.MustRegister(LineHandlingDuration)
}
