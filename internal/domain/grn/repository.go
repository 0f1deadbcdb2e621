package grn

import (
	"context"
	"time"

	"grnflow/internal/core/id"
)

// Repository defines persistence operations for the GRN batch aggregate.
// All mutations are expected to run inside a transaction started by the
// service; the implementation resolves the active transaction from context.
type Repository interface {
	// Batch operations
	CreateBatch(ctx context.Context, b *Batch) error
	GetBatch(ctx context.Context, batchID id.ID) (*Batch, error)
	// GetBatchFull loads the batch with PO links, line selections and details.
	GetBatchFull(ctx context.Context, batchID id.ID) (*Batch, error)
	// UpdateBatch persists batch fields with a compare-and-swap on Version;
	// returns a concurrent-modification error when the row moved underneath.
	UpdateBatch(ctx context.Context, b *Batch) error
	// DeleteBatch removes the batch and everything it owns, children first.
	DeleteBatch(ctx context.Context, batchID id.ID) error
	ListBatches(ctx context.Context, filter ListFilter) (ListResult, error)

	// PO link operations
	CreatePOLink(ctx context.Context, link *POLink) error
	GetPOLink(ctx context.Context, linkID id.ID) (*POLink, error)
	GetPOLinkByDocNum(ctx context.Context, batchID id.ID, poDocNum string) (*POLink, error)
	UpdatePOLink(ctx context.Context, link *POLink) error
	GetPOLinks(ctx context.Context, batchID id.ID) ([]*POLink, error)
	CountPOLinks(ctx context.Context, batchID id.ID) (int, error)

	// Line selection operations
	CreateLine(ctx context.Context, line *LineSelection) error
	GetLine(ctx context.Context, lineID id.ID) (*LineSelection, error)
	GetLineByKey(ctx context.Context, poLinkID id.ID, poLineNum int, itemCode string) (*LineSelection, error)
	GetLineByItem(ctx context.Context, poLinkID id.ID, itemCode string) (*LineSelection, error)
	UpdateLine(ctx context.Context, line *LineSelection) error
	GetLines(ctx context.Context, poLinkID id.ID) ([]*LineSelection, error)
	// SetLinesQCStatus cascades a QC verdict to every line under the batch.
	SetLinesQCStatus(ctx context.Context, batchID id.ID, status QCStatus) error

	// Detail operations. Replace semantics: existing rows for the line are
	// removed before the new set is inserted, inside the caller's transaction.
	ReplaceBatchDetails(ctx context.Context, lineID id.ID, details []*BatchDetail) error
	GetBatchDetails(ctx context.Context, lineID id.ID) ([]*BatchDetail, error)
	ReplaceSerialDetails(ctx context.Context, lineID id.ID, details []*SerialDetail) error
	GetSerialDetails(ctx context.Context, lineID id.ID) ([]*SerialDetail, error)
	ReplacePackDetails(ctx context.Context, lineID id.ID, details []*PackDetail) error
	GetPackDetails(ctx context.Context, lineID id.ID) ([]*PackDetail, error)
}

// ListFilter narrows and paginates batch listings.
type ListFilter struct {
	// UserID scopes to the owner; empty means no owner filter (elevated roles).
	UserID string

	// Search matches batch number, customer name/code, or id prefix.
	Search string

	Status *BatchStatus

	CreatedFrom *time.Time
	CreatedTo   *time.Time

	OrderBy string
	Limit   int
	Offset  int
}

// DefaultListFilter returns sensible defaults for batch listings.
func DefaultListFilter() ListFilter {
	return ListFilter{
		Limit:   10,
		OrderBy: "-created_at",
	}
}

// ListResult contains one page of batches.
type ListResult struct {
	Items      []*Batch `json:"items"`
	TotalCount int64    `json:"totalCount"`
	Limit      int      `json:"limit"`
	Offset     int      `json:"offset"`
}
