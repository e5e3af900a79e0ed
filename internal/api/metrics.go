package api

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readearn_api_requests_total",
			Help: "Outbound requests to the platform API",
		},
		[]string{"method", "status"},
	)
	refreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readearn_token_refresh_total",
			Help: "Access token refresh attempts by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal)
	prometheus.MustRegister(refreshTotal)
}
