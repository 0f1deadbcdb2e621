package grn

import (
	"context"
	"fmt"
	"time"

	"grnflow/internal/core/apperror"
	"grnflow/internal/core/appcontext"
	"grnflow/internal/core/id"
	"grnflow/internal/core/security"
	"grnflow/internal/core/tx"
	"grnflow/internal/core/types"
	"grnflow/internal/domain/sap"
	"grnflow/pkg/logger"
)

// Service drives the GRN batch workflow: the five-step creation flow, the
// QC state machine, detail aggregation and posting.
type Service struct {
	repo      Repository
	txManager tx.Manager
	query     sap.QueryFacade
	poster    sap.DocumentPoster
	policy    *security.BatchPolicy
	audit     AuditRecorder // optional
	branchID  int
}

// NewService creates the workflow service.
func NewService(
	repo Repository,
	txManager tx.Manager,
	query sap.QueryFacade,
	poster sap.DocumentPoster,
	policy *security.BatchPolicy,
	audit AuditRecorder,
) *Service {
	if policy == nil {
		policy = security.DefaultBatchPolicy()
	}
	return &Service{
		repo:      repo,
		txManager: txManager,
		query:     query,
		poster:    poster,
		policy:    policy,
		audit:     audit,
	}
}

func (s *Service) recordAudit(ctx context.Context, entityID id.ID, action string, changes map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogChange(ctx, "grn_batch", entityID, action, changes); err != nil {
		logger.Warn(ctx, "audit record failed", "action", action, "error", err)
	}
}

// requireWorkflowAccess gates the batch-owner entry points.
func requireWorkflowAccess(ctx context.Context) error {
	return security.GetScope(ctx).RequirePermission(appcontext.PermMultipleGRN)
}

// requireQCAccess gates approve/reject/retry. The qc_dashboard permission or
// an elevated role both qualify.
func requireQCAccess(ctx context.Context, roles ...string) error {
	user := appcontext.GetUser(ctx)
	if user.HasPermission(appcontext.PermQCDashboard) || user.HasRole(roles...) {
		return nil
	}
	return apperror.NewAccessDenied("QC permissions required")
}

// loadOwnedBatch fetches a batch and enforces the access policy against its owner.
func (s *Service) loadOwnedBatch(ctx context.Context, batchID id.ID) (*Batch, error) {
	b, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.RequireAccess(ctx, b.UserID); err != nil {
		return nil, err
	}
	return b, nil
}

// CreateBatchInput carries the customer/series selection of step 1.
type CreateBatchInput struct {
	CustomerCode  string `json:"customerCode"`
	CustomerName  string `json:"customerName"`
	DocSeriesID   int64  `json:"docSeriesId"`
	DocSeriesName string `json:"docSeriesName"`
}

// Create starts a new GRN session in draft.
func (s *Service) Create(ctx context.Context, in CreateBatchInput) (*Batch, error) {
	if err := requireWorkflowAccess(ctx); err != nil {
		return nil, err
	}

	b := NewBatch(appcontext.GetUserID(ctx), in.CustomerCode, in.CustomerName, in.DocSeriesID, in.DocSeriesName)
	if err := b.Validate(ctx); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.CreateBatch(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, b.ID, AuditCreate, map[string]any{
		"batchNumber": b.BatchNumber,
		"customer":    b.CustomerCode,
		"series":      b.DocSeriesID,
	})
	logger.Info(ctx, "grn batch created",
		"batch_id", b.ID,
		"batch_number", b.BatchNumber,
		"customer", b.CustomerName)
	return b, nil
}

// Get loads a batch with its full aggregate.
func (s *Service) Get(ctx context.Context, batchID id.ID) (*Batch, error) {
	b, err := s.repo.GetBatchFull(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.RequireAccess(ctx, b.UserID); err != nil {
		return nil, err
	}
	return b, nil
}

// List returns batches visible to the current user. Plain users only see
// their own; elevated roles may pass an explicit owner filter or none.
func (s *Service) List(ctx context.Context, filter ListFilter) (ListResult, error) {
	scope := security.GetScope(ctx)
	if !scope.IsAdmin && !appcontext.GetUser(ctx).HasRole(appcontext.RoleManager, appcontext.RoleQC) {
		filter.UserID = scope.UserID
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultListFilter().Limit
	}
	if filter.OrderBy == "" {
		filter.OrderBy = DefaultListFilter().OrderBy
	}
	return s.repo.ListBatches(ctx, filter)
}

// PendingQC returns batches awaiting review, newest submission first.
func (s *Service) PendingQC(ctx context.Context) (ListResult, error) {
	if err := requireQCAccess(ctx, appcontext.RoleQC, appcontext.RoleAdmin); err != nil {
		return ListResult{}, err
	}
	status := StatusPendingQC
	return s.repo.ListBatches(ctx, ListFilter{
		Status:  &status,
		OrderBy: "-submitted_at",
		Limit:   100,
	})
}

// POSelection is one purchase order chosen in step 2, already normalized by
// the query facade.
type POSelection struct {
	DocEntry    int64       `json:"docEntry"`
	DocNum      string      `json:"docNum"`
	CardCode    string      `json:"cardCode"`
	CardName    string      `json:"cardName"`
	PostingDate string      `json:"postingDate"`
	DocTotal    types.Money `json:"docTotal"`
}

// SelectPOsResult reports how many selections were linked vs already present.
type SelectPOsResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

// SelectPurchaseOrders links the chosen POs to the batch. Re-selecting a PO
// already linked (by document number) is counted as skipped, never an error.
func (s *Service) SelectPurchaseOrders(ctx context.Context, batchID id.ID, selections []POSelection) (*SelectPOsResult, error) {
	if len(selections) == 0 {
		return nil, apperror.NewValidation("select at least one purchase order")
	}

	b, err := s.loadOwnedBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if err := b.guardTransition("select_purchase_orders", StatusDraft); err != nil {
		return nil, err
	}

	result := &SelectPOsResult{}
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, sel := range selections {
			existing, err := s.repo.GetPOLinkByDocNum(ctx, b.ID, sel.DocNum)
			if err != nil && !apperror.IsNotFound(err) {
				return err
			}
			if existing != nil {
				result.Skipped++
				continue
			}

			link := &POLink{
				ID:         id.New(),
				BatchID:    b.ID,
				PODocEntry: sel.DocEntry,
				PODocNum:   sel.DocNum,
				POCardCode: sel.CardCode,
				POCardName: sel.CardName,
				PODocDate:  parsePostingDate(sel.PostingDate),
				PODocTotal: sel.DocTotal,
				Status:     LinkSelected,
				CreatedAt:  time.Now().UTC(),
			}
			if link.POCardCode == "" {
				link.POCardCode = b.CustomerCode
			}
			if link.POCardName == "" {
				link.POCardName = b.CustomerName
			}
			if err := s.repo.CreatePOLink(ctx, link); err != nil {
				return fmt.Errorf("create po link %s: %w", sel.DocNum, err)
			}
			result.Added++
		}

		count, err := s.repo.CountPOLinks(ctx, b.ID)
		if err != nil {
			return err
		}
		b.TotalPOs = count
		return s.repo.UpdateBatch(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "purchase orders selected",
		"batch_id", b.ID,
		"added", result.Added,
		"skipped", result.Skipped)
	return result, nil
}

// parsePostingDate accepts the two date shapes the ERP emits (YYYYMMDD and
// ISO with optional time suffix). Unparseable input yields nil, never an error.
func parsePostingDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	if len(raw) == 8 {
		if t, err := time.Parse("20060102", raw); err == nil {
			return &t
		}
		return nil
	}
	if len(raw) >= 10 {
		if t, err := time.Parse("2006-01-02", raw[:10]); err == nil {
			return &t
		}
	}
	return nil
}

// LineChoice is one PO line picked in step 3. SelectedQuantity overrides the
// quantity; nil falls back to the open quantity, then the ordered quantity.
type LineChoice struct {
	LineNum          int             `json:"lineNum"`
	ItemCode         string          `json:"itemCode"`
	ItemDescription  string          `json:"itemDescription"`
	OrderedQuantity  types.Quantity  `json:"orderedQuantity"`
	OpenQuantity     types.Quantity  `json:"openQuantity"`
	SelectedQuantity *types.Quantity `json:"selectedQuantity,omitempty"`
	WarehouseCode    string          `json:"warehouseCode"`
	UnitPrice        types.Money     `json:"unitPrice"`
	LineStatus       string          `json:"lineStatus"`
	InventoryType    string          `json:"inventoryType"`
}

func (c LineChoice) effectiveQuantity() types.Quantity {
	if c.SelectedQuantity != nil {
		return *c.SelectedQuantity
	}
	if c.OpenQuantity.IsPositive() {
		return c.OpenQuantity
	}
	return c.OrderedQuantity
}

// SelectLineItems records the chosen lines for one PO link. A line already
// selected (same source line and item) has its quantity updated instead of
// being duplicated. Fails only if zero lines end up selected.
func (s *Service) SelectLineItems(ctx context.Context, poLinkID id.ID, choices []LineChoice) (int, error) {
	link, err := s.repo.GetPOLink(ctx, poLinkID)
	if err != nil {
		return 0, err
	}
	b, err := s.loadOwnedBatch(ctx, link.BatchID)
	if err != nil {
		return 0, err
	}
	if err := b.guardTransition("select_line_items", StatusDraft); err != nil {
		return 0, err
	}

	selected := 0
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, choice := range choices {
			qty := choice.effectiveQuantity()
			if !qty.IsPositive() {
				continue
			}

			existing, err := s.repo.GetLineByKey(ctx, link.ID, choice.LineNum, choice.ItemCode)
			if err != nil && !apperror.IsNotFound(err) {
				return err
			}
			if existing != nil {
				existing.SelectedQuantity = qty
				if err := s.repo.UpdateLine(ctx, existing); err != nil {
					return fmt.Errorf("update line %s: %w", choice.ItemCode, err)
				}
				selected++
				continue
			}

			lineNum := choice.LineNum
			inventoryType := choice.InventoryType
			if inventoryType == "" {
				inventoryType = sap.InventoryTypeStandard
			}
			line := &LineSelection{
				ID:               id.New(),
				POLinkID:         link.ID,
				Origin:           OriginPO,
				POLineNum:        &lineNum,
				ItemCode:         choice.ItemCode,
				ItemDescription:  choice.ItemDescription,
				OrderedQuantity:  choice.OrderedQuantity,
				OpenQuantity:     choice.OpenQuantity,
				SelectedQuantity: qty,
				WarehouseCode:    choice.WarehouseCode,
				UnitPrice:        choice.UnitPrice,
				LineStatus:       choice.LineStatus,
				InventoryType:    inventoryType,
				QCStatus:         QCPending,
				NoOfPacks:        1,
				CreatedAt:        time.Now().UTC(),
			}
			if err := s.repo.CreateLine(ctx, line); err != nil {
				return fmt.Errorf("create line %s: %w", choice.ItemCode, err)
			}
			selected++
		}

		if selected == 0 {
			return apperror.NewValidation("select at least one line item")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.Info(ctx, "line items selected",
		"batch_id", b.ID,
		"po_doc_num", link.PODocNum,
		"count", selected)
	return selected, nil
}

// UpdateLineInput carries the editable fields of a line selection.
// Nil/empty fields are left unchanged.
type UpdateLineInput struct {
	SelectedQuantity *types.Quantity `json:"selectedQuantity,omitempty"`
	WarehouseCode    string          `json:"warehouseCode,omitempty"`
	BinLocation      string          `json:"binLocation,omitempty"`
	ExpiryDate       *time.Time      `json:"expiryDate,omitempty"`
}

// UpdateLine edits warehouse, bin, quantity and expiry on a draft line.
func (s *Service) UpdateLine(ctx context.Context, lineID id.ID, in UpdateLineInput) (*LineSelection, error) {
	line, err := s.repo.GetLine(ctx, lineID)
	if err != nil {
		return nil, err
	}
	link, err := s.repo.GetPOLink(ctx, line.POLinkID)
	if err != nil {
		return nil, err
	}
	b, err := s.loadOwnedBatch(ctx, link.BatchID)
	if err != nil {
		return nil, err
	}
	if err := b.guardTransition("update_line", StatusDraft); err != nil {
		return nil, err
	}

	if in.SelectedQuantity != nil {
		if !in.SelectedQuantity.IsPositive() {
			return nil, apperror.NewValidation("quantity must be positive").
				WithDetail("field", "selectedQuantity")
		}
		line.SelectedQuantity = *in.SelectedQuantity
	}
	if in.WarehouseCode != "" {
		line.WarehouseCode = in.WarehouseCode
	}
	if in.BinLocation != "" {
		line.BinLocation = in.BinLocation
	}
	if in.ExpiryDate != nil {
		line.ExpiryDate = in.ExpiryDate
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.UpdateLine(ctx, line)
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// SubmitForQC moves a draft batch to pending_qc. Every line must be complete
// and carry a warehouse code.
func (s *Service) SubmitForQC(ctx context.Context, batchID id.ID) error {
	b, err := s.loadOwnedBatch(ctx, batchID)
	if err != nil {
		return err
	}
	if err := b.guardTransition("submit_for_qc", StatusDraft); err != nil {
		return err
	}

	links, err := s.repo.GetPOLinks(ctx, b.ID)
	if err != nil {
		return err
	}

	var incomplete []string
	for _, link := range links {
		lines, err := s.repo.GetLines(ctx, link.ID)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if !line.IsComplete || line.WarehouseCode == "" {
				incomplete = append(incomplete, fmt.Sprintf("PO %s - %s", link.PODocNum, line.ItemCode))
			}
		}
	}
	if len(incomplete) > 0 {
		return apperror.NewValidation(fmt.Sprintf("cannot submit: %d line(s) incomplete", len(incomplete))).
			WithDetail("incompleteLines", incomplete)
	}

	now := time.Now().UTC()
	b.Status = StatusPendingQC
	b.QCStatus = QCPending
	b.SubmittedAt = &now

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.UpdateBatch(ctx, b)
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, b.ID, AuditSubmitQC, nil)
	logger.Info(ctx, "batch submitted for qc", "batch_id", b.ID, "batch_number", b.BatchNumber)
	return nil
}

// QCApprove approves a pending batch and cascades the verdict to every line.
func (s *Service) QCApprove(ctx context.Context, batchID id.ID, notes string) error {
	return s.qcReview(ctx, batchID, notes, true)
}

// QCReject rejects a pending batch. Rejection notes are mandatory.
func (s *Service) QCReject(ctx context.Context, batchID id.ID, notes string) error {
	if notes == "" {
		return apperror.NewValidation("rejection notes are required").
			WithDetail("field", "notes")
	}
	return s.qcReview(ctx, batchID, notes, false)
}

func (s *Service) qcReview(ctx context.Context, batchID id.ID, notes string, approve bool) error {
	if err := requireQCAccess(ctx, appcontext.RoleQC, appcontext.RoleAdmin); err != nil {
		return err
	}

	b, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}
	if err := b.guardTransition("qc_review", StatusPendingQC); err != nil {
		return err
	}

	now := time.Now().UTC()
	verdict := QCApproved
	action := AuditQCApprove
	if approve {
		b.Status = StatusQCApproved
	} else {
		b.Status = StatusQCRejected
		verdict = QCRejected
		action = AuditQCReject
	}
	b.QCStatus = verdict
	b.QCApproverID = appcontext.GetUserID(ctx)
	b.QCReviewedAt = &now
	b.QCNotes = notes

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateBatch(ctx, b); err != nil {
			return err
		}
		return s.repo.SetLinesQCStatus(ctx, b.ID, verdict)
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, b.ID, action, map[string]any{"notes": notes})
	logger.Info(ctx, "batch qc reviewed",
		"batch_id", b.ID,
		"batch_number", b.BatchNumber,
		"verdict", verdict)
	return nil
}

// ResetForResubmission returns a rejected batch to draft so the owner can
// fix it and resubmit. QC fields are cleared; lines revert to pending.
func (s *Service) ResetForResubmission(ctx context.Context, batchID id.ID) error {
	b, err := s.loadOwnedBatch(ctx, batchID)
	if err != nil {
		return err
	}
	if err := b.guardTransition("reset_for_resubmission", StatusQCRejected); err != nil {
		return err
	}

	b.Status = StatusDraft
	b.QCStatus = QCPending
	b.QCNotes = ""
	b.SubmittedAt = nil

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateBatch(ctx, b); err != nil {
			return err
		}
		return s.repo.SetLinesQCStatus(ctx, b.ID, QCPending)
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, b.ID, AuditReset, nil)
	logger.Info(ctx, "batch reset for resubmission", "batch_id", b.ID, "batch_number", b.BatchNumber)
	return nil
}

// DeleteBatch removes a draft batch with everything it owns. Only the owner
// may delete, and only drafts.
func (s *Service) DeleteBatch(ctx context.Context, batchID id.ID) error {
	if err := requireWorkflowAccess(ctx); err != nil {
		return err
	}

	b, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}
	scope := security.GetScope(ctx)
	if b.UserID != scope.UserID && !scope.IsAdmin {
		return apperror.NewAccessDenied("you can only delete your own batches")
	}
	if b.Status != StatusDraft {
		return apperror.NewBusinessRule("BATCH_NOT_DRAFT", "only draft batches can be deleted").
			WithDetail("status", b.Status)
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.DeleteBatch(ctx, b.ID)
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, b.ID, AuditDelete, map[string]any{"batchNumber": b.BatchNumber})
	logger.Info(ctx, "draft batch deleted", "batch_id", b.ID, "batch_number", b.BatchNumber)
	return nil
}
