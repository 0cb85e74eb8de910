package server

import (
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
)

// Telemetry
var (
	requestDurations = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace: "filegate",
			Name:      "requests_duration_seconds",
			Help:      "Amounts of time filegate has spent answering requests.",
		},
		[]string{"route", "method"},
	)
	deliveredBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "filegate",
			Name:      "delivered_bytes_total",
			Help:      "Total volume of object content delivered in bytes.",
		},
	)
)

func init() {
	prometheus.MustRegister(requestDurations)
	prometheus.MustRegister(deliveredBytes)
}

// metricsWrapper records how long the wrapped handler took, labeled by the
// route pattern rather than the raw URL to keep cardinality down.
func metricsWrapper(route string, handler httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		began := time.Now()
		handler(w, r, ps)
		requestDurations.WithLabelValues(route, r.Method).
			Observe(time.Since(began).Seconds())
	}
}
