package middleware

import (
	"time"

	"eclairia/pkg/logger"
	"eclairia/pkg/utils"

	"github.com/gin-gonic/gin"
)

const (
	RequestIDHeader = "X-Request-ID"
	maxRequestIDLen = 64
)

// RequestIDMiddleware propagates X-Request-ID, generating one when absent.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := utils.CleanToken(c.GetHeader(RequestIDHeader), maxRequestIDLen)
		if id == "" {
			id = utils.NewRequestID()
		}

		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// RequestRecorder is satisfied by the Prometheus collector.
type RequestRecorder interface {
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
}

// AccessLogMiddleware logs every request and records it in metrics when a
// recorder is given.
func AccessLogMiddleware(log *logger.ContextLogger, recorder RequestRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		log.LogRequest(c.Request.Context(), c.Request.Method, c.Request.URL.Path, status, elapsed.Milliseconds())
		if recorder != nil {
			recorder.RecordHTTPRequest(c.Request.Method, route, status, elapsed)
		}
	}
}
