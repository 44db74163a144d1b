package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChangeRequestsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "change_requests_submitted_total",
		Help: "Change requests created in pending state.",
	}, []string{"kind"})

	ChangeRequestsDecided = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "change_requests_decided_total",
		Help: "Change requests moved out of pending state.",
	}, []string{"kind", "outcome"})

	ChangeRequestFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "change_request_failures_total",
		Help: "Workflow operations that returned an error, by error kind.",
	}, []string{"operation", "kind"})
)

// Handler exposes the default registry for scraping.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
