package handlers

import (
	"github.com/gin-gonic/gin"

	"grnflow/internal/domain/grn"
	"grnflow/internal/infrastructure/http/v1/dto"
)

// LineHandler serves line selection and detail endpoints.
type LineHandler struct {
	*BaseHandler
	service *grn.Service
}

// NewLineHandler creates a line handler.
func NewLineHandler(base *BaseHandler, service *grn.Service) *LineHandler {
	return &LineHandler{BaseHandler: base, service: service}
}

// SelectLines handles POST /po-links/:id/lines.
func (h *LineHandler) SelectLines(c *gin.Context) {
	linkID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.SelectLinesRequest
	if !h.BindJSON(c, &req) {
		return
	}

	selected, err := h.service.SelectLineItems(c.Request.Context(), linkID, req.Lines)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.SelectedCountResponse{Selected: selected})
}

// AddManualItem handles POST /po-links/:id/manual-items.
func (h *LineHandler) AddManualItem(c *gin.Context) {
	linkID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req grn.ManualItemInput
	if !h.BindJSON(c, &req) {
		return
	}

	line, err := h.service.AddManualItem(c.Request.Context(), linkID, req)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, line)
}

// Update handles PATCH /lines/:id.
func (h *LineHandler) Update(c *gin.Context) {
	lineID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req grn.UpdateLineInput
	if !h.BindJSON(c, &req) {
		return
	}

	line, err := h.service.UpdateLine(c.Request.Context(), lineID, req)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, line)
}

// SetBatchDetails handles PUT /lines/:id/batch-details.
func (h *LineHandler) SetBatchDetails(c *gin.Context) {
	lineID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.SetBatchDetailsRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if err := h.service.SetBatchDetails(c.Request.Context(), lineID, req.Entries); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "batch details saved")
}

// SetSerialDetails handles PUT /lines/:id/serial-details.
func (h *LineHandler) SetSerialDetails(c *gin.Context) {
	lineID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.SetSerialDetailsRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if err := h.service.SetSerialDetails(c.Request.Context(), lineID, req.Entries); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "serial details saved")
}

// SetPackDetails handles PUT /lines/:id/pack-details.
func (h *LineHandler) SetPackDetails(c *gin.Context) {
	lineID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.SetPackDetailsRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if err := h.service.SetPackDetails(c.Request.Context(), lineID, req.NoOfPacks, req.ExpiryDate); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "pack details saved")
}

// Complete handles POST /lines/:id/complete.
func (h *LineHandler) Complete(c *gin.Context) {
	lineID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.service.CompleteLine(c.Request.Context(), lineID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "line completed")
}

// Labels handles GET /lines/:id/labels.
func (h *LineHandler) Labels(c *gin.Context) {
	lineID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	labels, err := h.service.GenerateLabels(c.Request.Context(), lineID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"labels": labels})
}
