package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"gambler/settlement/domain/errs"
	"gambler/settlement/infrastructure/observability"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// metricsMiddleware records request counts and latency per route template
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)

		observability.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		observability.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(elapsed.Seconds())

		log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"route":    route,
			"status":   c.Writer.Status(),
			"duration": elapsed,
		}).Debug("Handled request")
	}
}

// recoveryMiddleware turns panics into INTERNAL responses
func recoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.WithFields(log.Fields{
			"route": c.FullPath(),
			"panic": recovered,
		}).Error("Recovered from panic in handler")
		c.AbortWithStatusJSON(http.StatusInternalServerError, Envelope{
			Error: &ErrorBody{Code: string(errs.CodeInternal), Message: "internal error"},
		})
	})
}
