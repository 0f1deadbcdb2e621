package handlers

import (
	"github.com/gin-gonic/gin"

	"grnflow/internal/core/apperror"
	"grnflow/internal/domain/grn"
	"grnflow/internal/infrastructure/http/v1/dto"
)

// BatchHandler serves the GRN batch workflow endpoints.
type BatchHandler struct {
	*BaseHandler
	service *grn.Service
}

// NewBatchHandler creates a batch handler.
func NewBatchHandler(base *BaseHandler, service *grn.Service) *BatchHandler {
	return &BatchHandler{BaseHandler: base, service: service}
}

// Create handles POST /batches.
func (h *BatchHandler) Create(c *gin.Context) {
	var req dto.CreateBatchRequest
	if !h.BindJSON(c, &req) {
		return
	}

	b, err := h.service.Create(c.Request.Context(), grn.CreateBatchInput{
		CustomerCode:  req.CustomerCode,
		CustomerName:  req.CustomerName,
		DocSeriesID:   req.DocSeriesID,
		DocSeriesName: req.DocSeriesName,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, b)
}

// List handles GET /batches.
func (h *BatchHandler) List(c *gin.Context) {
	var q dto.ListBatchesQuery
	if !h.BindQuery(c, &q) {
		return
	}

	filter := grn.ListFilter{
		Search:      q.Search,
		CreatedFrom: q.CreatedFrom,
		CreatedTo:   q.CreatedTo,
		OrderBy:     q.OrderBy,
		Limit:       q.Limit,
		Offset:      q.Offset,
	}
	if q.Status != "" {
		status := grn.BatchStatus(q.Status)
		switch status {
		case grn.StatusDraft, grn.StatusPendingQC, grn.StatusQCApproved, grn.StatusQCRejected, grn.StatusCompleted:
			filter.Status = &status
		default:
			h.Error(c, apperror.NewValidation("unknown status").WithDetail("status", q.Status))
			return
		}
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{
		Items:      result.Items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Get handles GET /batches/:id. Returns the full aggregate.
func (h *BatchHandler) Get(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	b, err := h.service.Get(c.Request.Context(), batchID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, b)
}

// Delete handles DELETE /batches/:id. Draft batches only.
func (h *BatchHandler) Delete(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteBatch(c.Request.Context(), batchID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// SelectPOs handles POST /batches/:id/purchase-orders.
func (h *BatchHandler) SelectPOs(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.SelectPOsRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.service.SelectPurchaseOrders(c.Request.Context(), batchID, req.Selections)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Submit handles POST /batches/:id/submit.
func (h *BatchHandler) Submit(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.service.SubmitForQC(c.Request.Context(), batchID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "batch submitted for QC review")
}

// PendingQC handles GET /qc/pending.
func (h *BatchHandler) PendingQC(c *gin.Context) {
	result, err := h.service.PendingQC(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{
		Items:      result.Items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Approve handles POST /batches/:id/qc-approve.
func (h *BatchHandler) Approve(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.QCReviewRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if err := h.service.QCApprove(c.Request.Context(), batchID, req.Notes); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "batch approved")
}

// Reject handles POST /batches/:id/qc-reject.
func (h *BatchHandler) Reject(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.QCReviewRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if err := h.service.QCReject(c.Request.Context(), batchID, req.Notes); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "batch rejected")
}

// Reset handles POST /batches/:id/reset. Returns a rejected batch to draft.
func (h *BatchHandler) Reset(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.service.ResetForResubmission(c.Request.Context(), batchID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "batch reset for resubmission")
}

// Post handles POST /batches/:id/post. Posts every pending PO link.
func (h *BatchHandler) Post(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	outcome, err := h.service.Post(c.Request.Context(), batchID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, outcome)
}

// Retry handles POST /batches/:id/retry. Re-posts only the failed links.
func (h *BatchHandler) Retry(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	outcome, err := h.service.RetryPosting(c.Request.Context(), batchID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, outcome)
}
