package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKey is where the request-scoped logger lives in the gin context.
const ContextKey = "logger"

// RequestIDHeader is echoed back on every response.
const RequestIDHeader = "X-Request-ID"

// Middleware attaches a request-scoped logger and writes one access-log line
// per request once the handler chain has finished.
func Middleware(base *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		reqLogger := base.WithRequestID(requestID)
		c.Set(ContextKey, reqLogger)

		start := time.Now()
		c.Next()

		// auth middleware runs inside the chain, so the user is only known now
		if uid := c.GetString("userID"); uid != "" {
			reqLogger = reqLogger.WithUserID(uid)
		}

		method, path := c.Request.Method, c.Request.URL.Path
		reqLogger.LogRequest(method, path, c.Writer.Status(), time.Since(start))
		for _, e := range c.Errors {
			reqLogger.LogError(e.Err, "request error", "method", method, "path", path)
		}
	}
}

// FromGin returns the request logger, or the global logger outside a request.
func FromGin(c *gin.Context) *Logger {
	if v, ok := c.Get(ContextKey); ok {
		if l, ok := v.(*Logger); ok {
			if uid := c.GetString("userID"); uid != "" {
				return l.WithUserID(uid)
			}
			return l
		}
	}
	return GetGlobal()
}
