package middleware

import (
	"net/http"
	"time"

	"example.com/chemtrack/services/ledger/internal/ledger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// principalKey is the gin context key the principal middleware sets.
const principalKey = "principal"

// PrincipalHeader carries the authenticated caller identity. Authentication
// happens upstream (gateway/signature layer); by the time a request reaches
// this service the header value is trusted as-is.
const PrincipalHeader = "X-Principal"

// RequestID assigns a request id when the caller did not send one
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// CORS handles cross-origin requests
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, X-Request-ID, "+PrincipalHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestLogger logs every request with its outcome
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		event := log.Info()
		status := c.Writer.Status()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Int("status", status).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("client_ip", c.ClientIP()).
			Dur("latency", time.Since(start)).
			Str("request_id", c.GetString("request_id")).
			Msg("Request processed")
	}
}

// Principal extracts the caller identity from the request headers. Requests
// without one are rejected before reaching any handler; the ledger requires
// a caller on every operation.
func Principal() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := ledger.Principal(c.GetHeader(PrincipalHeader))
		if p.IsZero() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing " + PrincipalHeader + " header",
			})
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// CallerPrincipal returns the principal the middleware extracted.
func CallerPrincipal(c *gin.Context) ledger.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(ledger.Principal); ok {
			return p
		}
	}
	return ledger.Principal("")
}
