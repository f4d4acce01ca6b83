package middleware

import (
	"time"

	"github.com/collegetransit/booking-service/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CorrelationIDKey is the gin context key holding the request correlation id
const CorrelationIDKey = "correlation_id"

// CorrelationID reuses the caller's X-Correlation-ID or mints one, echoes it
// on the response and stores it on the request context
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(utils.CorrelationIDHeader)
		if id == "" {
			id = utils.NewCorrelationID()
		}

		c.Set(CorrelationIDKey, id)
		c.Header(utils.CorrelationIDHeader, id)
		c.Request = c.Request.WithContext(utils.ContextWithCorrelationID(c.Request.Context(), id))

		c.Next()
	}
}

// RequestLogger logs one line per request
func RequestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := logrus.Fields{
			"status":         c.Writer.Status(),
			"method":         c.Request.Method,
			"path":           path,
			"ip":             c.ClientIP(),
			"latency":        time.Since(start).String(),
			"correlation_id": c.GetString(CorrelationIDKey),
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		entry := logger.WithFields(fields)
		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("HTTP request")
		case status >= 400:
			entry.Warn("HTTP request")
		default:
			entry.Info("HTTP request")
		}
	}
}
