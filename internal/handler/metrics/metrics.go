package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler serves the settlement, HTTP and job collectors registered on
// the service registry.
type MetricsHandler struct {
	registry *prometheus.Registry
}

func NewMetricsHandler(registry *prometheus.Registry) *MetricsHandler {
	return &MetricsHandler{
		registry: registry,
	}
}

// Handler returns a Gin handler function for the /metrics endpoint
func (h *MetricsHandler) Handler() gin.HandlerFunc {
	handler := promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
		// counts scrapes and scrape errors on the same registry
		Registry: h.registry,
	})

	return gin.WrapH(handler)
}
