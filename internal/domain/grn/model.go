// Package grn implements the multi-PO goods receipt batch workflow:
// batch creation, PO and line selection, batch/serial/pack detail aggregation,
// QC gating and posting to SAP Business One.
package grn

import (
	"context"
	"fmt"
	"time"

	"grnflow/internal/core/apperror"
	"grnflow/internal/core/id"
	"grnflow/internal/core/types"
)

// BatchStatus is the batch lifecycle state.
type BatchStatus string

const (
	StatusDraft      BatchStatus = "draft"
	StatusPendingQC  BatchStatus = "pending_qc"
	StatusQCApproved BatchStatus = "qc_approved"
	StatusQCRejected BatchStatus = "qc_rejected"
	StatusCompleted  BatchStatus = "completed"
)

// QCStatus tracks the review verdict independently of the lifecycle state.
type QCStatus string

const (
	QCPending  QCStatus = "pending"
	QCApproved QCStatus = "approved"
	QCRejected QCStatus = "rejected"
)

// LinkStatus is the posting state of one PO link.
type LinkStatus string

const (
	LinkSelected LinkStatus = "selected"
	LinkPosted   LinkStatus = "posted"
	LinkFailed   LinkStatus = "failed"
)

// Origin distinguishes PO-sourced lines from manually added ones.
type Origin string

const (
	OriginPO     Origin = "po"
	OriginManual Origin = "manual"
)

// Batch is one GRN-creation session. It owns PO links, which own line
// selections, which own detail rows. Version guards concurrent status
// transitions (compare-and-swap on update).
type Batch struct {
	ID          id.ID  `db:"id" json:"id"`
	BatchNumber string `db:"batch_number" json:"batchNumber"`
	UserID      string `db:"user_id" json:"userId"`

	CustomerCode  string `db:"customer_code" json:"customerCode"`
	CustomerName  string `db:"customer_name" json:"customerName"`
	DocSeriesID   int64  `db:"doc_series_id" json:"docSeriesId"`
	DocSeriesName string `db:"doc_series_name" json:"docSeriesName"`

	Status   BatchStatus `db:"status" json:"status"`
	QCStatus QCStatus    `db:"qc_status" json:"qcStatus"`

	QCApproverID string     `db:"qc_approver_id" json:"qcApproverId,omitempty"`
	QCReviewedAt *time.Time `db:"qc_reviewed_at" json:"qcReviewedAt,omitempty"`
	QCNotes      string     `db:"qc_notes" json:"qcNotes,omitempty"`

	TotalPOs         int    `db:"total_pos" json:"totalPos"`
	TotalGRNsCreated int    `db:"total_grns_created" json:"totalGrnsCreated"`
	ErrorLog         string `db:"error_log" json:"errorLog,omitempty"`

	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	SubmittedAt *time.Time `db:"submitted_at" json:"submittedAt,omitempty"`
	PostedAt    *time.Time `db:"posted_at" json:"postedAt,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completedAt,omitempty"`
	PostedByID  string     `db:"posted_by_id" json:"postedById,omitempty"`

	Version int `db:"version" json:"version"`

	POLinks []*POLink `db:"-" json:"poLinks,omitempty"`
}

// POLink is one purchase order selected into a batch.
// Unique per (batch, PO document number).
type POLink struct {
	ID      id.ID `db:"id" json:"id"`
	BatchID id.ID `db:"batch_id" json:"batchId"`

	PODocEntry int64       `db:"po_doc_entry" json:"poDocEntry"`
	PODocNum   string      `db:"po_doc_num" json:"poDocNum"`
	POCardCode string      `db:"po_card_code" json:"poCardCode"`
	POCardName string      `db:"po_card_name" json:"poCardName"`
	PODocDate  *time.Time  `db:"po_doc_date" json:"poDocDate,omitempty"`
	PODocTotal types.Money `db:"po_doc_total" json:"poDocTotal"`

	Status       LinkStatus `db:"status" json:"status"`
	GRNDocNum    string     `db:"grn_doc_num" json:"grnDocNum,omitempty"`
	GRNDocEntry  *int64     `db:"grn_doc_entry" json:"grnDocEntry,omitempty"`
	PostedAt     *time.Time `db:"posted_at" json:"postedAt,omitempty"`
	ErrorMessage string     `db:"error_message" json:"errorMessage,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`

	Lines []*LineSelection `db:"-" json:"lines,omitempty"`
}

// IsPosted reports whether this link already produced an external document.
// Links carrying a document entry are never re-posted.
func (l *POLink) IsPosted() bool {
	return l.Status == LinkPosted || l.GRNDocEntry != nil
}

// LineSelection is one line item chosen from a PO, or added manually.
// Origin is a tagged union: PO-sourced lines carry a source line number,
// manual lines carry none.
type LineSelection struct {
	ID       id.ID `db:"id" json:"id"`
	POLinkID id.ID `db:"po_link_id" json:"poLinkId"`

	Origin    Origin `db:"origin" json:"origin"`
	POLineNum *int   `db:"po_line_num" json:"poLineNum,omitempty"`

	ItemCode        string `db:"item_code" json:"itemCode"`
	ItemDescription string `db:"item_description" json:"itemDescription,omitempty"`

	OrderedQuantity  types.Quantity `db:"ordered_quantity" json:"orderedQuantity"`
	OpenQuantity     types.Quantity `db:"open_quantity" json:"openQuantity"`
	SelectedQuantity types.Quantity `db:"selected_quantity" json:"selectedQuantity"`

	WarehouseCode string      `db:"warehouse_code" json:"warehouseCode,omitempty"`
	BinLocation   string      `db:"bin_location" json:"binLocation,omitempty"`
	UnitPrice     types.Money `db:"unit_price" json:"unitPrice"`
	UnitOfMeasure string      `db:"unit_of_measure" json:"unitOfMeasure,omitempty"`
	LineStatus    string      `db:"line_status" json:"lineStatus,omitempty"`

	// InventoryType is the server-validated management classification,
	// one of the sap.InventoryType* values. Never taken from client input.
	InventoryType string `db:"inventory_type" json:"inventoryType"`

	IsComplete bool     `db:"is_complete" json:"isComplete"`
	QCStatus   QCStatus `db:"qc_status" json:"qcStatus"`

	AdminDate  *time.Time `db:"admin_date" json:"adminDate,omitempty"`
	ExpiryDate *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`

	QtyPerPack *types.Quantity `db:"qty_per_pack" json:"qtyPerPack,omitempty"`
	NoOfPacks  int             `db:"no_of_packs" json:"noOfPacks"`

	// Legacy allocations stored as raw JSON, used by the posting fallback
	// when no detail rows exist. Batch takes precedence over serial.
	BatchNumbersJSON  string `db:"batch_numbers_json" json:"-"`
	SerialNumbersJSON string `db:"serial_numbers_json" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`

	BatchDetails  []*BatchDetail  `db:"-" json:"batchDetails,omitempty"`
	SerialDetails []*SerialDetail `db:"-" json:"serialDetails,omitempty"`
	PackDetails   []*PackDetail   `db:"-" json:"packDetails,omitempty"`
}

// IsManual reports whether the line was added outside the PO-derived flow.
func (l *LineSelection) IsManual() bool {
	return l.Origin == OriginManual
}

// BatchDetail allocates part of a line's quantity to one batch lot.
type BatchDetail struct {
	ID              id.ID `db:"id" json:"id"`
	LineSelectionID id.ID `db:"line_selection_id" json:"lineSelectionId"`

	BatchNumber string         `db:"batch_number" json:"batchNumber"`
	Quantity    types.Quantity `db:"quantity" json:"quantity"`

	ManufacturerSerialNumber string `db:"manufacturer_serial_number" json:"manufacturerSerialNumber,omitempty"`
	InternalSerialNumber     string `db:"internal_serial_number" json:"internalSerialNumber,omitempty"`

	ExpiryDate *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`
	AdminDate  *time.Time `db:"admin_date" json:"adminDate,omitempty"`

	GRNNumber  string          `db:"grn_number" json:"grnNumber,omitempty"`
	QtyPerPack *types.Quantity `db:"qty_per_pack" json:"qtyPerPack,omitempty"`
	NoOfPacks  int             `db:"no_of_packs" json:"noOfPacks"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// SerialDetail records exactly one serialized unit (quantity implicitly 1).
type SerialDetail struct {
	ID              id.ID `db:"id" json:"id"`
	LineSelectionID id.ID `db:"line_selection_id" json:"lineSelectionId"`

	SerialNumber             string `db:"serial_number" json:"serialNumber"`
	ManufacturerSerialNumber string `db:"manufacturer_serial_number" json:"manufacturerSerialNumber,omitempty"`
	InternalSerialNumber     string `db:"internal_serial_number" json:"internalSerialNumber,omitempty"`

	ExpiryDate *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`
	AdminDate  *time.Time `db:"admin_date" json:"adminDate,omitempty"`

	GRNNumber string `db:"grn_number" json:"grnNumber,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// PackDetail is the per-pack breakdown for non-managed items: one row per
// pack with an even share of the line quantity and a 1-based pack index.
type PackDetail struct {
	ID              id.ID `db:"id" json:"id"`
	LineSelectionID id.ID `db:"line_selection_id" json:"lineSelectionId"`

	Quantity   types.Quantity `db:"quantity" json:"quantity"`
	QtyPerPack types.Quantity `db:"qty_per_pack" json:"qtyPerPack"`
	NoOfPacks  int            `db:"no_of_packs" json:"noOfPacks"`
	PackNumber int            `db:"pack_number" json:"packNumber"`

	ExpiryDate *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`
	AdminDate  *time.Time `db:"admin_date" json:"adminDate,omitempty"`

	GRNNumber string `db:"grn_number" json:"grnNumber,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewBatch creates a draft batch with a timestamp-derived batch number.
func NewBatch(userID, customerCode, customerName string, seriesID int64, seriesName string) *Batch {
	now := time.Now().UTC()
	return &Batch{
		ID:            id.New(),
		BatchNumber:   fmt.Sprintf("MGRN-%s", now.Format("20060102150405")),
		UserID:        userID,
		CustomerCode:  customerCode,
		CustomerName:  customerName,
		DocSeriesID:   seriesID,
		DocSeriesName: seriesName,
		Status:        StatusDraft,
		QCStatus:      QCPending,
		CreatedAt:     now,
		Version:       1,
	}
}

// Validate checks batch fields required at creation time.
func (b *Batch) Validate(ctx context.Context) error {
	if b.CustomerCode == "" || b.CustomerName == "" {
		return apperror.NewValidation("customer is required").
			WithDetail("field", "customerCode")
	}
	if b.DocSeriesID == 0 || b.DocSeriesName == "" {
		return apperror.NewValidation("document series is required").
			WithDetail("field", "docSeriesId")
	}
	if b.UserID == "" {
		return apperror.NewValidation("owner is required").
			WithDetail("field", "userId")
	}
	return nil
}

// guardTransition returns an invalid-transition error unless the batch is in
// one of the allowed states.
func (b *Batch) guardTransition(action string, allowed ...BatchStatus) error {
	for _, s := range allowed {
		if b.Status == s {
			return nil
		}
	}
	return apperror.NewInvalidTransition(string(b.Status), action).
		WithDetail("batchId", b.ID)
}
