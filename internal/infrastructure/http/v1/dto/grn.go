package dto

import (
	"time"

	"grnflow/internal/domain/grn"
)

// CreateBatchRequest starts a new GRN batch.
type CreateBatchRequest struct {
	CustomerCode  string `json:"customerCode" binding:"required"`
	CustomerName  string `json:"customerName" binding:"required"`
	DocSeriesID   int64  `json:"docSeriesId" binding:"required"`
	DocSeriesName string `json:"docSeriesName" binding:"required"`
}

// ListBatchesQuery filters the batch list.
type ListBatchesQuery struct {
	Search      string     `form:"search"`
	Status      string     `form:"status"`
	CreatedFrom *time.Time `form:"createdFrom" time_format:"2006-01-02"`
	CreatedTo   *time.Time `form:"createdTo" time_format:"2006-01-02"`
	OrderBy     string     `form:"orderBy"`
	Limit       int        `form:"limit"`
	Offset      int        `form:"offset"`
}

// SelectPOsRequest links chosen purchase orders to a batch.
type SelectPOsRequest struct {
	Selections []grn.POSelection `json:"selections" binding:"required,min=1"`
}

// SelectLinesRequest records the chosen lines for one PO link.
type SelectLinesRequest struct {
	Lines []grn.LineChoice `json:"lines" binding:"required,min=1"`
}

// SetBatchDetailsRequest replaces a line's batch allocations.
type SetBatchDetailsRequest struct {
	Entries []grn.BatchDetailInput `json:"entries" binding:"required,min=1"`
}

// SetSerialDetailsRequest replaces a line's serial allocations.
type SetSerialDetailsRequest struct {
	Entries []grn.SerialDetailInput `json:"entries" binding:"required,min=1"`
}

// SetPackDetailsRequest splits a non-managed line into packs.
type SetPackDetailsRequest struct {
	NoOfPacks  int        `json:"noOfPacks" binding:"required,min=1"`
	ExpiryDate *time.Time `json:"expiryDate,omitempty"`
}

// QCReviewRequest carries reviewer notes. Notes are mandatory on rejection.
type QCReviewRequest struct {
	Notes string `json:"notes"`
}

// OpenLinesQuery lists open PO lines across document entries.
type OpenLinesQuery struct {
	DocEntries []int64 `form:"docEntries" binding:"required,min=1"`
}

// OpenPOsQuery lists open purchase orders for a series and card code.
type OpenPOsQuery struct {
	SeriesID int64  `form:"seriesId" binding:"required"`
	CardCode string `form:"cardCode" binding:"required"`
}

// SelectedCountResponse reports how many lines were recorded.
type SelectedCountResponse struct {
	Selected int `json:"selected"`
}
