package handlers

import (
	"net/http"
	"strconv"

	"example.com/chemtrack/services/ledger/internal/api/middleware"
	"example.com/chemtrack/services/ledger/internal/ledger"
	"example.com/chemtrack/services/ledger/internal/services"
	"example.com/chemtrack/services/ledger/internal/tracing"

	"github.com/gin-gonic/gin"
)

// BatchHandler serves the batch ledger HTTP surface
type BatchHandler struct {
	svc    *services.LedgerService
	tracer tracing.Tracer
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(svc *services.LedgerService, tracer tracing.Tracer) *BatchHandler {
	return &BatchHandler{svc: svc, tracer: tracer}
}

// CreateBatchRequest is the body of POST /batches
type CreateBatchRequest struct {
	Composition string `json:"composition" binding:"required,max=256"`
	Owner       string `json:"owner" binding:"required,max=128"`
}

// UpdateStatusRequest is the body of POST /batches/:id/status
type UpdateStatusRequest struct {
	Stage    int    `json:"stage"`
	Metadata string `json:"metadata" binding:"max=256"`
}

// TransferRequest is the body of POST /batches/:id/transfer
type TransferRequest struct {
	NewOwner string `json:"new_owner" binding:"required,max=128"`
}

// SetPrincipalRequest is the body of the admin/oracle endpoints
type SetPrincipalRequest struct {
	Principal string `json:"principal" binding:"required,max=128"`
}

// SetPausedRequest is the body of POST /ledger/pause
type SetPausedRequest struct {
	Paused *bool `json:"paused" binding:"required"`
}

// HandleCreateBatch registers a new batch
func (h *BatchHandler) HandleCreateBatch(c *gin.Context) {
	var req CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	caller := middleware.CallerPrincipal(c)
	id, err := h.svc.CreateBatch(c.Request.Context(), caller, req.Composition, ledger.Principal(req.Owner))
	if err != nil {
		h.noticeError(c, err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"batch_id": id})
}

// HandleGetBatch returns the current state of a batch
func (h *BatchHandler) HandleGetBatch(c *gin.Context) {
	id, ok := batchIDParam(c)
	if !ok {
		return
	}

	batch, err := h.svc.GetBatch(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, batch)
}

// HandleUpdateStatus moves a batch to a new lifecycle stage
func (h *BatchHandler) HandleUpdateStatus(c *gin.Context) {
	id, ok := batchIDParam(c)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	caller := middleware.CallerPrincipal(c)
	if err := h.svc.UpdateBatchStatus(c.Request.Context(), caller, id, ledger.Stage(req.Stage), req.Metadata); err != nil {
		h.noticeError(c, err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// HandleTransfer hands ownership of a batch to a new owner
func (h *BatchHandler) HandleTransfer(c *gin.Context) {
	id, ok := batchIDParam(c)
	if !ok {
		return
	}

	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	caller := middleware.CallerPrincipal(c)
	if err := h.svc.TransferBatch(c.Request.Context(), caller, id, ledger.Principal(req.NewOwner)); err != nil {
		h.noticeError(c, err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// HandleDeactivate irreversibly ends a batch's mutability
func (h *BatchHandler) HandleDeactivate(c *gin.Context) {
	id, ok := batchIDParam(c)
	if !ok {
		return
	}

	caller := middleware.CallerPrincipal(c)
	if err := h.svc.DeactivateBatch(c.Request.Context(), caller, id); err != nil {
		h.noticeError(c, err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// HandleGetHistory returns the full audit trail of a batch
func (h *BatchHandler) HandleGetHistory(c *gin.Context) {
	id, ok := batchIDParam(c)
	if !ok {
		return
	}

	records, err := h.svc.BatchHistory(id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"batch_id": id, "records": records})
}

// HandleGetHistoryRecord returns one audit record by sequence index
func (h *BatchHandler) HandleGetHistoryRecord(c *gin.Context) {
	id, ok := batchIDParam(c)
	if !ok {
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "index must be an integer"})
		return
	}

	record, err := h.svc.GetBatchHistory(id, index)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// HandleGetLedgerState returns the scalar ledger state
func (h *BatchHandler) HandleGetLedgerState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"admin":         h.svc.Admin(),
		"oracle":        h.svc.Oracle(),
		"paused":        h.svc.IsPaused(),
		"batch_counter": h.svc.BatchCounter(),
	})
}

// HandleTransferAdmin hands the admin capability to a new principal
func (h *BatchHandler) HandleTransferAdmin(c *gin.Context) {
	var req SetPrincipalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	caller := middleware.CallerPrincipal(c)
	if err := h.svc.TransferAdmin(c.Request.Context(), caller, ledger.Principal(req.Principal)); err != nil {
		h.noticeError(c, err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// HandleSetOracle designates the off-chain feed identity
func (h *BatchHandler) HandleSetOracle(c *gin.Context) {
	var req SetPrincipalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	caller := middleware.CallerPrincipal(c)
	if err := h.svc.SetOracle(c.Request.Context(), caller, ledger.Principal(req.Principal)); err != nil {
		h.noticeError(c, err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// HandleSetPaused flips the circuit breaker
func (h *BatchHandler) HandleSetPaused(c *gin.Context) {
	var req SetPausedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	caller := middleware.CallerPrincipal(c)
	paused, err := h.svc.SetPaused(c.Request.Context(), caller, *req.Paused)
	if err != nil {
		h.noticeError(c, err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"paused": paused})
}

// HandleSearchEvents runs a raw query against the audit-trail search index
func (h *BatchHandler) HandleSearchEvents(c *gin.Context) {
	var query map[string]interface{}
	if err := c.ShouldBindJSON(&query); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	docs, err := h.svc.SearchEvents(c.Request.Context(), query)
	if err != nil {
		h.noticeError(c, err)
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": docs})
}

// RegisterRoutes registers the handler's routes
func (h *BatchHandler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.Use(middleware.Principal())

	batches := v1.Group("/batches")
	batches.POST("", h.HandleCreateBatch)
	batches.GET("/:id", h.HandleGetBatch)
	batches.POST("/:id/status", h.HandleUpdateStatus)
	batches.POST("/:id/transfer", h.HandleTransfer)
	batches.POST("/:id/deactivate", h.HandleDeactivate)
	batches.GET("/:id/history", h.HandleGetHistory)
	batches.GET("/:id/history/:index", h.HandleGetHistoryRecord)

	ledgerGroup := v1.Group("/ledger")
	ledgerGroup.GET("", h.HandleGetLedgerState)
	ledgerGroup.POST("/admin", h.HandleTransferAdmin)
	ledgerGroup.POST("/oracle", h.HandleSetOracle)
	ledgerGroup.POST("/pause", h.HandleSetPaused)

	v1.POST("/events/search", h.HandleSearchEvents)
}

func batchIDParam(c *gin.Context) (ledger.BatchID, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "batch id must be a positive integer"})
		return 0, false
	}
	return ledger.BatchID(id), true
}

// noticeError reports a failed mutation to the tracer's current transaction.
func (h *BatchHandler) noticeError(c *gin.Context, err error) {
	if h.tracer == nil {
		return
	}
	txn := newrelicTransaction(c)
	h.tracer.RecordError(txn, err)
}
