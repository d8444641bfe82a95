package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
)

// newrelicTransaction returns the transaction the nrgin middleware started
// for this request, or nil when tracing is disabled.
func newrelicTransaction(c *gin.Context) *newrelic.Transaction {
	return nrgin.Transaction(c)
}
