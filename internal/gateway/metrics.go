package gateway

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "frictionlog",
		Subsystem: "gateway",
		Name:      "requests_total",
		Help:      "Backend requests by endpoint and outcome",
	}, []string{"endpoint", "outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "frictionlog",
		Subsystem: "gateway",
		Name:      "request_duration_seconds",
		Help:      "Backend request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})
)

func outcome(err error) string {
	var (
		te *TransportError
		de *DecodeError
		se *StatusError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &te):
		return "transport"
	case errors.As(err, &de):
		return "decode"
	case errors.As(err, &se):
		return "status"
	}
	return "error"
}

func observe(endpoint string, start time.Time, err error) {
	requestsTotal.WithLabelValues(endpoint, outcome(err)).Inc()
	requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
