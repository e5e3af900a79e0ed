package ws

import "github.com/prometheus/client_golang/prometheus"

var (
	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "readearn_ws_connections",
		Help: "Open websocket connections",
	})
	wsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "readearn_ws_dropped_events_total",
		Help: "Session events dropped for slow websocket clients",
	})
)

func init() {
	prometheus.MustRegister(wsConnections)
	prometheus.MustRegister(wsDropped)
}
