package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthInfoResponse represents the health check response
type HealthInfoResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// Health handles health check requests
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthInfoResponse{Status: "ok", Version: s.version})
}

// Metrics serves the Prometheus registry.
func (s *Server) Metrics() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
