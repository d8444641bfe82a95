package handlers

import (
	"net/http"
	"strconv"

	"example.com/chemtrack/services/ledger/internal/ledger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ErrorResponse is the error body every endpoint returns. Code carries the
// ledger's stable numeric rejection code; collaborators dispatch on it, the
// HTTP status is only a convenience mapping.
type ErrorResponse struct {
	Code  int    `json:"code,omitempty"`
	Error string `json:"error"`
}

// statusForCode maps ledger rejection codes to HTTP statuses.
func statusForCode(code int) int {
	switch code {
	case ledger.CodeNotAuthorized:
		return http.StatusForbidden
	case ledger.CodeInvalidBatch:
		return http.StatusNotFound
	case ledger.CodeInvalidStage, ledger.CodeZeroAddress:
		return http.StatusBadRequest
	case ledger.CodePaused:
		return http.StatusServiceUnavailable
	case ledger.CodeAlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err. Ledger rejections keep their numeric code; the
// pause breaker additionally advertises retryability. Anything else is an
// infrastructure failure and surfaces as a plain 500.
func writeError(c *gin.Context, err error) {
	if code := ledger.CodeOf(err); code != 0 {
		if code == ledger.CodePaused {
			c.Header("Retry-After", strconv.Itoa(30))
		}
		c.JSON(statusForCode(code), ErrorResponse{Code: code, Error: err.Error()})
		return
	}

	log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Unhandled error")
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}
