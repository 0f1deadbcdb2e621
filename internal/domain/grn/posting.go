package grn

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"grnflow/internal/core/apperror"
	"grnflow/internal/core/appcontext"
	"grnflow/internal/core/id"
	"grnflow/pkg/logger"

	"grnflow/internal/domain/sap"
)

// defaultBranchID is the branch assigned to created delivery notes.
const defaultBranchID = 5

// defaultWarehouseCode is stamped on lines that reach posting without a
// warehouse, such as directly-seeded or legacy rows.
const defaultWarehouseCode = "7000-FG"

// SetBranchID overrides the branch stamped on posted documents.
func (s *Service) SetBranchID(branchID int) {
	s.branchID = branchID
}

func (s *Service) resolveBranchID() int {
	if s.branchID > 0 {
		return s.branchID
	}
	return defaultBranchID
}

// LinkResult is the posting outcome of one PO link.
type LinkResult struct {
	PONum   string `json:"poNum"`
	Success bool   `json:"success"`
	GRNNum  string `json:"grnNum,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PostOutcome aggregates a posting run over a batch.
type PostOutcome struct {
	Results        []LinkResult `json:"results"`
	TotalSuccess   int          `json:"totalSuccess"`
	TotalFailed    int          `json:"totalFailed"`
	TotalPosted    int          `json:"totalPosted"`
	TotalLinks     int          `json:"totalLinks"`
	BatchCompleted bool         `json:"batchCompleted"`
	AllowRetry     bool         `json:"allowRetry"`
	Message        string       `json:"message"`
}

// buildDeliveryNote converts a PO link and its line selections into the
// Service Layer payload. Lines are emitted in stable order; the zero-based
// position of each line within DocumentLines is the BaseLineNumber shared by
// its batch/serial sub-entries.
func (s *Service) buildDeliveryNote(b *Batch, link *POLink, lines []*LineSelection, comments string) (*sap.DeliveryNote, error) {
	today := time.Now().Format("2006-01-02")
	note := &sap.DeliveryNote{
		CardCode:   link.POCardCode,
		DocDate:    today,
		DocDueDate: today,
		Comments:   comments,
		NumAtCard:  fmt.Sprintf("BATCH-%s-PO-%s", b.BatchNumber, link.PODocNum),
		BranchID:   s.resolveBranchID(),
	}

	for position, line := range lines {
		warehouse := line.WarehouseCode
		if warehouse == "" {
			warehouse = defaultWarehouseCode
		}
		docLine := sap.DocumentLine{
			ItemCode:      line.ItemCode,
			Quantity:      line.SelectedQuantity.InexactFloat64(),
			WarehouseCode: warehouse,
		}

		if !line.IsManual() {
			if line.POLineNum == nil {
				return nil, fmt.Errorf("po-sourced line %s has no source line number", line.ItemCode)
			}
			baseType := sap.BaseTypePurchaseOrder
			baseEntry := link.PODocEntry
			baseLine := *line.POLineNum
			docLine.BaseType = &baseType
			docLine.BaseEntry = &baseEntry
			docLine.BaseLine = &baseLine
		}

		if line.BinLocation != "" {
			docLine.BinAllocations = []sap.BinAllocation{{
				BinAbsEntry: line.BinLocation,
				Quantity:    line.SelectedQuantity.InexactFloat64(),
			}}
		}

		switch {
		case len(line.BatchDetails) > 0:
			for _, d := range line.BatchDetails {
				entry := sap.BatchEntry{
					BatchNumber:              d.BatchNumber,
					Quantity:                 d.Quantity.InexactFloat64(),
					BaseLineNumber:           position,
					ManufacturerSerialNumber: d.ManufacturerSerialNumber,
					InternalSerialNumber:     d.InternalSerialNumber,
				}
				if d.ExpiryDate != nil {
					entry.ExpiryDate = d.ExpiryDate.Format("2006-01-02")
				}
				docLine.BatchNumbers = append(docLine.BatchNumbers, entry)
			}
		case len(line.SerialDetails) > 0:
			for _, d := range line.SerialDetails {
				entry := sap.SerialEntry{
					InternalSerialNumber:     d.SerialNumber,
					Quantity:                 1.0,
					BaseLineNumber:           position,
					ManufacturerSerialNumber: d.ManufacturerSerialNumber,
				}
				if d.ExpiryDate != nil {
					entry.ExpiryDate = d.ExpiryDate.Format("2006-01-02")
				}
				docLine.SerialNumbers = append(docLine.SerialNumbers, entry)
			}
		case line.BatchNumbersJSON != "":
			// Legacy allocation fallback for lines without detail rows.
			var entries []sap.BatchEntry
			if err := json.Unmarshal([]byte(line.BatchNumbersJSON), &entries); err != nil {
				return nil, fmt.Errorf("decode legacy batch allocations for %s: %w", line.ItemCode, err)
			}
			for i := range entries {
				entries[i].BaseLineNumber = position
			}
			docLine.BatchNumbers = entries
		case line.SerialNumbersJSON != "":
			var entries []sap.SerialEntry
			if err := json.Unmarshal([]byte(line.SerialNumbersJSON), &entries); err != nil {
				return nil, fmt.Errorf("decode legacy serial allocations for %s: %w", line.ItemCode, err)
			}
			for i := range entries {
				entries[i].Quantity = 1.0
				entries[i].BaseLineNumber = position
			}
			docLine.SerialNumbers = entries
		}

		note.DocumentLines = append(note.DocumentLines, docLine)
	}

	return note, nil
}

// loadLinesWithDetails attaches detail rows to the link's line selections.
func (s *Service) loadLinesWithDetails(ctx context.Context, linkID id.ID) ([]*LineSelection, error) {
	lines, err := s.repo.GetLines(ctx, linkID)
	if err != nil {
		return nil, err
	}
	for _, line := range lines {
		if line.BatchDetails, err = s.repo.GetBatchDetails(ctx, line.ID); err != nil {
			return nil, err
		}
		if line.SerialDetails, err = s.repo.GetSerialDetails(ctx, line.ID); err != nil {
			return nil, err
		}
	}
	return lines, nil
}

// postLink attempts one delivery note and mutates the link in memory.
func (s *Service) postLink(ctx context.Context, b *Batch, link *POLink, lines []*LineSelection, comments string) LinkResult {
	note, err := s.buildDeliveryNote(b, link, lines, comments)
	if err == nil {
		var res *sap.PostResult
		res, err = s.poster.CreatePurchaseDeliveryNote(ctx, note)
		if err == nil {
			now := time.Now().UTC()
			link.Status = LinkPosted
			link.GRNDocNum = res.DocNum
			link.GRNDocEntry = &res.DocEntry
			link.PostedAt = &now
			link.ErrorMessage = ""
			logger.Info(ctx, "grn posted",
				"batch_id", b.ID,
				"po_doc_num", link.PODocNum,
				"grn_doc_num", res.DocNum)
			return LinkResult{PONum: link.PODocNum, Success: true, GRNNum: res.DocNum}
		}
	}

	link.Status = LinkFailed
	link.ErrorMessage = err.Error()
	logger.Error(ctx, "grn posting failed",
		"batch_id", b.ID,
		"po_doc_num", link.PODocNum,
		"error", err)
	return LinkResult{PONum: link.PODocNum, Success: false, Error: err.Error()}
}

// Post creates one delivery note per PO link. Links already posted are
// skipped and counted as success; links without lines are skipped entirely.
// Every link is attempted regardless of prior failures; the batch completes
// only when all attempted links succeeded, otherwise it stays qc_approved
// with an error log and retry remains possible. A system fault never leaves
// the batch unretryable.
func (s *Service) Post(ctx context.Context, batchID id.ID) (outcome *PostOutcome, err error) {
	b, loadErr := s.loadOwnedBatch(ctx, batchID)
	if loadErr != nil {
		return nil, loadErr
	}
	if b.QCStatus != QCApproved {
		return nil, apperror.NewBusinessRule("QC_NOT_APPROVED",
			fmt.Sprintf("batch must be QC approved before posting, current QC status: %s", b.QCStatus))
	}
	if err := b.guardTransition("post", StatusQCApproved, StatusPendingQC); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			outcome = nil
			err = s.forceRetryable(ctx, b, fmt.Sprintf("System error during posting: %v", r))
		}
	}()

	links, err := s.repo.GetPOLinks(ctx, b.ID)
	if err != nil {
		return nil, err
	}

	outcome = &PostOutcome{TotalLinks: len(links)}
	changed := make([]*POLink, 0, len(links))

	for _, link := range links {
		if link.IsPosted() {
			outcome.TotalSuccess++
			outcome.Results = append(outcome.Results, LinkResult{
				PONum:   link.PODocNum,
				Success: true,
				GRNNum:  link.GRNDocNum,
				Skipped: true,
			})
			continue
		}

		lines, err := s.loadLinesWithDetails(ctx, link.ID)
		if err != nil {
			return nil, err
		}
		if len(lines) == 0 {
			continue
		}

		res := s.postLink(ctx, b, link, lines, fmt.Sprintf("Auto-created from batch %s", b.BatchNumber))
		if res.Success {
			outcome.TotalSuccess++
		}
		outcome.Results = append(outcome.Results, res)
		changed = append(changed, link)
	}

	attempted := len(outcome.Results)
	outcome.TotalFailed = attempted - outcome.TotalSuccess

	now := time.Now().UTC()
	if outcome.TotalSuccess == attempted {
		b.Status = StatusCompleted
		b.CompletedAt = &now
		b.PostedAt = &now
		b.PostedByID = appcontext.GetUserID(ctx)
		b.ErrorLog = ""
		outcome.BatchCompleted = true
		outcome.Message = fmt.Sprintf("%d of %d PO links posted successfully", outcome.TotalSuccess, attempted)
	} else {
		b.Status = StatusQCApproved
		b.ErrorLog = fmt.Sprintf(
			"Posting incomplete: %d of %d PO links posted, %d failed. See individual PO error messages; retry is available.",
			outcome.TotalSuccess, attempted, outcome.TotalFailed)
		outcome.AllowRetry = true
		outcome.Message = b.ErrorLog
	}
	b.TotalGRNsCreated = outcome.TotalSuccess
	outcome.TotalPosted = outcome.TotalSuccess

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, link := range changed {
			if err := s.repo.UpdatePOLink(ctx, link); err != nil {
				return err
			}
		}
		return s.repo.UpdateBatch(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, b.ID, AuditPost, map[string]any{
		"success": outcome.TotalSuccess,
		"failed":  outcome.TotalFailed,
	})
	logger.Info(ctx, "batch posting finished",
		"batch_id", b.ID,
		"batch_number", b.BatchNumber,
		"success", outcome.TotalSuccess,
		"failed", outcome.TotalFailed,
		"completed", outcome.BatchCompleted)
	return outcome, nil
}

// RetryPosting re-attempts only the failed PO links. Batch completion is
// always decided by a full rescan of all links, so previously posted ones
// count toward the total.
func (s *Service) RetryPosting(ctx context.Context, batchID id.ID) (outcome *PostOutcome, err error) {
	if err := requireQCAccess(ctx, appcontext.RoleQC, appcontext.RoleAdmin, appcontext.RoleManager); err != nil {
		return nil, err
	}

	b, loadErr := s.repo.GetBatch(ctx, batchID)
	if loadErr != nil {
		return nil, loadErr
	}
	if err := b.guardTransition("retry_posting", StatusQCApproved); err != nil {
		return nil, err
	}

	links, err := s.repo.GetPOLinks(ctx, b.ID)
	if err != nil {
		return nil, err
	}

	var failed []*POLink
	for _, link := range links {
		if link.Status == LinkFailed {
			failed = append(failed, link)
		}
	}
	if len(failed) == 0 {
		return nil, apperror.NewBusinessRule("NO_FAILED_LINKS", "no failed PO links found to retry")
	}

	defer func() {
		if r := recover(); r != nil {
			outcome = nil
			err = s.forceRetryable(ctx, b, fmt.Sprintf("System error during retry: %v", r))
		}
	}()

	logger.Info(ctx, "retrying posting",
		"batch_id", b.ID,
		"failed_links", len(failed))

	outcome = &PostOutcome{TotalLinks: len(links)}
	changed := make([]*POLink, 0, len(failed))

	for _, link := range failed {
		if link.GRNDocEntry != nil {
			outcome.Results = append(outcome.Results, LinkResult{
				PONum:   link.PODocNum,
				Success: false,
				Skipped: true,
				Error:   "already posted, skipping duplicate",
			})
			continue
		}

		lines, err := s.loadLinesWithDetails(ctx, link.ID)
		if err != nil {
			return nil, err
		}
		if len(lines) == 0 {
			outcome.Results = append(outcome.Results, LinkResult{
				PONum:   link.PODocNum,
				Success: false,
				Skipped: true,
				Error:   "no line selections",
			})
			continue
		}

		res := s.postLink(ctx, b, link, lines, fmt.Sprintf("Retry - Auto-created from batch %s", b.BatchNumber))
		if res.Success {
			outcome.TotalSuccess++
		} else {
			link.ErrorMessage = "Retry failed: " + res.Error
		}
		outcome.Results = append(outcome.Results, res)
		changed = append(changed, link)
	}
	outcome.TotalFailed = len(failed) - outcome.TotalSuccess

	// Completion is decided by rescanning every link, not just the retried set.
	totalPosted := 0
	for _, link := range links {
		if link.Status == LinkPosted {
			totalPosted++
		}
	}
	outcome.TotalPosted = totalPosted

	now := time.Now().UTC()
	if totalPosted == len(links) {
		b.Status = StatusCompleted
		b.CompletedAt = &now
		b.PostedAt = &now
		b.PostedByID = appcontext.GetUserID(ctx)
		b.ErrorLog = ""
		outcome.BatchCompleted = true
		outcome.Message = fmt.Sprintf("retry completed: all %d PO links posted", len(links))
	} else {
		if outcome.TotalSuccess > 0 {
			b.ErrorLog = fmt.Sprintf(
				"Retry partially successful: %d of %d retried PO links posted. %d of %d total PO links now posted.",
				outcome.TotalSuccess, len(failed), totalPosted, len(links))
		}
		outcome.AllowRetry = true
		outcome.Message = fmt.Sprintf("retry completed: %d of %d PO links posted", outcome.TotalSuccess, len(failed))
	}
	b.TotalGRNsCreated = totalPosted

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, link := range changed {
			if err := s.repo.UpdatePOLink(ctx, link); err != nil {
				return err
			}
		}
		return s.repo.UpdateBatch(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, b.ID, AuditRetry, map[string]any{
		"retried": len(failed),
		"success": outcome.TotalSuccess,
		"posted":  totalPosted,
	})
	logger.Info(ctx, "retry finished",
		"batch_id", b.ID,
		"succeeded", outcome.TotalSuccess,
		"total_posted", totalPosted,
		"total_links", len(links))
	return outcome, nil
}

// forceRetryable pins the batch back to qc_approved with an error log so a
// system fault never strands it in an ambiguous state.
func (s *Service) forceRetryable(ctx context.Context, b *Batch, msg string) error {
	b.Status = StatusQCApproved
	b.ErrorLog = msg + " Batch remains QC approved; you can retry posting."

	saveErr := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.UpdateBatch(ctx, b)
	})
	if saveErr != nil {
		logger.Error(ctx, "failed to persist retryable state", "batch_id", b.ID, "error", saveErr)
	}

	logger.Error(ctx, "system error during posting", "batch_id", b.ID, "message", msg)
	return apperror.NewSystem(fmt.Errorf("%s", msg))
}
