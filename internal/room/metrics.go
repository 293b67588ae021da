package room

import "github.com/prometheus/client_golang/prometheus"

var ActiveRooms = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "mathline_active_rooms",
	Help: "Number of rooms currently registered",
})

func init() {
	prometheus.MustRegister(ActiveRooms)
}
