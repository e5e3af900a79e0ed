package reading

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readearn_reading_transitions_total",
			Help: "Reading session state transitions by target state",
		},
		[]string{"state"},
	)
	giftsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readearn_gifts_total",
			Help: "Gift attempts by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(transitionsTotal)
	prometheus.MustRegister(giftsTotal)
}
