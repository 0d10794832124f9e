package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "api_requests_total",
	Help: "HTTP admin requests by method and status class",
}, []string{"method", "status"})
