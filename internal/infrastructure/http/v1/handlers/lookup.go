package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"grnflow/internal/core/apperror"
	"grnflow/internal/domain/sap"
	"grnflow/internal/infrastructure/http/v1/dto"
)

// LookupHandler serves the ERP reference-data lookups backing the batch
// creation wizard.
type LookupHandler struct {
	*BaseHandler
	query sap.QueryFacade
}

// NewLookupHandler creates a lookup handler.
func NewLookupHandler(base *BaseHandler, query sap.QueryFacade) *LookupHandler {
	return &LookupHandler{BaseHandler: base, query: query}
}

// BusinessPartners handles GET /lookups/business-partners.
func (h *LookupHandler) BusinessPartners(c *gin.Context) {
	partners, err := h.query.BusinessPartners(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"partners": partners})
}

// DocumentSeries handles GET /lookups/series.
func (h *LookupHandler) DocumentSeries(c *gin.Context) {
	series, err := h.query.DocumentSeries(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"series": series})
}

// CardCodes handles GET /lookups/series/:seriesId/card-codes.
func (h *LookupHandler) CardCodes(c *gin.Context) {
	seriesID, err := strconv.ParseInt(c.Param("seriesId"), 10, 64)
	if err != nil || seriesID <= 0 {
		h.Error(c, apperror.NewValidation("invalid series id"))
		return
	}

	partners, err := h.query.CardCodesBySeries(c.Request.Context(), seriesID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"partners": partners})
}

// OpenPOs handles GET /lookups/open-pos.
func (h *LookupHandler) OpenPOs(c *gin.Context) {
	var q dto.OpenPOsQuery
	if !h.BindQuery(c, &q) {
		return
	}

	pos, err := h.query.OpenPOsBySeries(c.Request.Context(), q.SeriesID, q.CardCode)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"purchaseOrders": pos})
}

// OpenLines handles GET /lookups/open-lines.
func (h *LookupHandler) OpenLines(c *gin.Context) {
	var q dto.OpenLinesQuery
	if !h.BindQuery(c, &q) {
		return
	}

	lines, err := h.query.OpenLines(c.Request.Context(), q.DocEntries)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"lines": lines})
}

// ValidateItem handles GET /lookups/items/:code.
func (h *LookupHandler) ValidateItem(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		h.Error(c, apperror.NewValidation("item code is required"))
		return
	}

	validation, err := h.query.ValidateItem(c.Request.Context(), code)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, validation)
}
