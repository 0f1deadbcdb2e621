package grn

import (
	"testing"

	"grnflow/internal/core/apperror"
	"grnflow/internal/core/appcontext"
	"grnflow/internal/core/id"
	"grnflow/internal/core/types"
	"grnflow/internal/domain/sap"
)

func (e *testEnv) seedApprovedBatch(owner string, links ...string) (*Batch, []*POLink) {
	b := e.seedBatch(owner, StatusQCApproved, QCApproved)
	var out []*POLink
	for i, docNum := range links {
		link := e.seedLink(b, int64(100+i), docNum)
		out = append(out, link)
	}
	return b, out
}

func (e *testEnv) seedBatchLine(link *POLink, itemCode string, qty float64, allocations ...*BatchDetail) *LineSelection {
	line := e.seedLine(link, 0, itemCode, qty, sap.InventoryTypeBatch)
	for _, d := range allocations {
		d.ID = id.New()
		d.LineSelectionID = line.ID
	}
	e.repo.batchDetails[line.ID] = allocations
	return line
}

func TestPostBuildsDeliveryNote(t *testing.T) {
	env := newTestEnv()
	ctx := ownerCtx("u-1")
	b, links := env.seedApprovedBatch("u-1", "PO-1001")
	link := links[0]
	link.POCardCode = "C001"
	env.repo.links[link.ID] = link

	line := env.seedBatchLine(link, "ITM-A", 100,
		&BatchDetail{BatchNumber: "LOT-1", Quantity: types.NewQuantity(60)},
		&BatchDetail{BatchNumber: "LOT-2", Quantity: types.NewQuantity(40)},
	)
	line.BinLocation = "42"
	env.repo.lines[line.ID] = line

	outcome, err := env.svc.Post(ctx, b.ID)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if !outcome.BatchCompleted || outcome.TotalSuccess != 1 {
		t.Fatalf("outcome = %+v, want completed with 1 success", outcome)
	}

	if len(env.poster.notes) != 1 {
		t.Fatalf("poster calls = %d, want 1", len(env.poster.notes))
	}
	note := env.poster.notes[0]
	if note.CardCode != "C001" {
		t.Errorf("CardCode = %q, want C001", note.CardCode)
	}
	if note.NumAtCard != "BATCH-"+b.BatchNumber+"-PO-PO-1001" {
		t.Errorf("NumAtCard = %q", note.NumAtCard)
	}
	if note.BranchID != 5 {
		t.Errorf("BranchID = %d, want 5", note.BranchID)
	}
	if len(note.DocumentLines) != 1 {
		t.Fatalf("document lines = %d, want 1", len(note.DocumentLines))
	}

	dl := note.DocumentLines[0]
	if dl.BaseType == nil || *dl.BaseType != 22 {
		t.Errorf("BaseType = %v, want 22", dl.BaseType)
	}
	if dl.BaseEntry == nil || *dl.BaseEntry != link.PODocEntry {
		t.Errorf("BaseEntry = %v, want %d", dl.BaseEntry, link.PODocEntry)
	}
	if dl.BaseLine == nil || *dl.BaseLine != 0 {
		t.Errorf("BaseLine = %v, want 0", dl.BaseLine)
	}
	if len(dl.BinAllocations) != 1 || dl.BinAllocations[0].BinAbsEntry != "42" {
		t.Errorf("BinAllocations = %+v", dl.BinAllocations)
	}
	if len(dl.BatchNumbers) != 2 {
		t.Fatalf("batch entries = %d, want 2", len(dl.BatchNumbers))
	}
	if dl.BatchNumbers[0].Quantity != 60 || dl.BatchNumbers[1].Quantity != 40 {
		t.Errorf("batch quantities = %v/%v, want 60/40", dl.BatchNumbers[0].Quantity, dl.BatchNumbers[1].Quantity)
	}
	for _, entry := range dl.BatchNumbers {
		if entry.BaseLineNumber != 0 {
			t.Errorf("BaseLineNumber = %d, want 0", entry.BaseLineNumber)
		}
	}

	got, _ := env.repo.GetBatch(ctx, b.ID)
	if got.Status != StatusCompleted || got.TotalGRNsCreated != 1 {
		t.Errorf("batch = %s grns = %d, want completed/1", got.Status, got.TotalGRNsCreated)
	}
	if got.CompletedAt == nil || got.PostedAt == nil || got.PostedByID != "u-1" {
		t.Errorf("completion stamps missing: %+v", got)
	}
	gotLink, _ := env.repo.GetPOLink(ctx, link.ID)
	if gotLink.Status != LinkPosted || gotLink.GRNDocEntry == nil || gotLink.GRNDocNum == "" {
		t.Errorf("link after post: %+v", gotLink)
	}
}

func TestPostDefaultsMissingWarehouse(t *testing.T) {
	env := newTestEnv()
	ctx := ownerCtx("u-1")
	b, links := env.seedApprovedBatch("u-1", "PO-1001")

	// Legacy and directly-seeded rows can reach posting without a
	// warehouse assignment.
	line := env.seedBatchLine(links[0], "ITM-A", 50,
		&BatchDetail{BatchNumber: "LOT-1", Quantity: types.NewQuantity(50)},
	)
	line.WarehouseCode = ""
	env.repo.lines[line.ID] = line

	if _, err := env.svc.Post(ctx, b.ID); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if len(env.poster.notes) != 1 || len(env.poster.notes[0].DocumentLines) != 1 {
		t.Fatalf("poster notes = %+v, want 1 note with 1 line", env.poster.notes)
	}
	if got := env.poster.notes[0].DocumentLines[0].WarehouseCode; got != "7000-FG" {
		t.Errorf("WarehouseCode = %q, want 7000-FG", got)
	}
}

func TestPostRequiresQCApproval(t *testing.T) {
	env := newTestEnv()
	ctx := ownerCtx("u-1")
	b := env.seedBatch("u-1", StatusQCApproved, QCPending)

	_, err := env.svc.Post(ctx, b.ID)
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeBusinessRule {
		t.Fatalf("post without qc approval: %v, want business rule", err)
	}

	draft := env.seedBatch("u-1", StatusDraft, QCApproved)
	_, err = env.svc.Post(ctx, draft.ID)
	appErr, ok = apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeInvalidTransition {
		t.Fatalf("post from draft: %v, want invalid transition", err)
	}
}

func TestPostPartialFailureKeepsBatchRetryable(t *testing.T) {
	env := newTestEnv()
	ctx := ownerCtx("u-1")
	b, links := env.seedApprovedBatch("u-1", "PO-1", "PO-2", "PO-3")
	for _, link := range links {
		env.seedBatchLine(link, "ITM-"+link.PODocNum, 10,
			&BatchDetail{BatchNumber: "LOT", Quantity: types.NewQuantity(10)})
	}
	env.poster.failFor["PO-2"] = apperror.NewSAPRejected(400, "item blocked for receipt")

	outcome, err := env.svc.Post(ctx, b.ID)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if outcome.BatchCompleted {
		t.Fatal("batch completed despite a failed link")
	}
	if outcome.TotalSuccess != 2 || outcome.TotalFailed != 1 || !outcome.AllowRetry {
		t.Fatalf("outcome = %+v, want 2 success 1 failed retryable", outcome)
	}

	got, _ := env.repo.GetBatch(ctx, b.ID)
	if got.Status != StatusQCApproved {
		t.Errorf("status = %s, want qc_approved for retry", got.Status)
	}
	if got.ErrorLog == "" || got.TotalGRNsCreated != 2 {
		t.Errorf("error log = %q grns = %d", got.ErrorLog, got.TotalGRNsCreated)
	}

	for _, link := range links {
		gotLink, _ := env.repo.GetPOLink(ctx, link.ID)
		if link.PODocNum == "PO-2" {
			if gotLink.Status != LinkFailed || gotLink.ErrorMessage == "" {
				t.Errorf("failed link = %+v", gotLink)
			}
			continue
		}
		if gotLink.Status != LinkPosted {
			t.Errorf("link %s = %s, want posted", link.PODocNum, gotLink.Status)
		}
	}
}

func TestPostSkipsAlreadyPostedLinks(t *testing.T) {
	env := newTestEnv()
	ctx := ownerCtx("u-1")
	b, links := env.seedApprovedBatch("u-1", "PO-1", "PO-2", "PO-3")
	for _, link := range links {
		env.seedBatchLine(link, "ITM-"+link.PODocNum, 10,
			&BatchDetail{BatchNumber: "LOT", Quantity: types.NewQuantity(10)})
	}
	env.poster.failFor["PO-2"] = apperror.NewSAPRejected(400, "temporary lock")

	if _, err := env.svc.Post(ctx, b.ID); err != nil {
		t.Fatalf("first post: %v", err)
	}
	firstCalls := len(env.poster.notes)

	// Second run must not touch the two posted links.
	delete(env.poster.failFor, "PO-2")
	outcome, err := env.svc.Post(ctx, b.ID)
	if err != nil {
		t.Fatalf("second post: %v", err)
	}
	if !outcome.BatchCompleted || outcome.TotalSuccess != 3 {
		t.Fatalf("outcome = %+v, want completed with 3 success", outcome)
	}
	if calls := len(env.poster.notes) - firstCalls; calls != 1 {
		t.Errorf("second run made %d poster calls, want 1 (only the failed link)", calls)
	}

	skipped := 0
	for _, res := range outcome.Results {
		if res.Skipped {
			skipped++
		}
	}
	if skipped != 2 {
		t.Errorf("skipped results = %d, want 2", skipped)
	}

	got, _ := env.repo.GetBatch(ctx, b.ID)
	if got.Status != StatusCompleted || got.TotalGRNsCreated != 3 || got.ErrorLog != "" {
		t.Errorf("batch = %s grns = %d errorLog = %q", got.Status, got.TotalGRNsCreated, got.ErrorLog)
	}
}

func TestPostSkipsLinksWithoutLines(t *testing.T) {
	env := newTestEnv()
	ctx := ownerCtx("u-1")
	b, links := env.seedApprovedBatch("u-1", "PO-1", "PO-EMPTY")
	env.seedBatchLine(links[0], "ITM-A", 10,
		&BatchDetail{BatchNumber: "LOT", Quantity: types.NewQuantity(10)})

	outcome, err := env.svc.Post(ctx, b.ID)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if len(outcome.Results) != 1 || !outcome.BatchCompleted {
		t.Fatalf("outcome = %+v, want 1 attempted and completed", outcome)
	}
	if len(env.poster.notes) != 1 {
		t.Errorf("poster calls = %d, want 1", len(env.poster.notes))
	}
}

func TestRetryPostingConvergesByRescan(t *testing.T) {
	env := newTestEnv()
	owner := ownerCtx("u-1")
	qc := userCtx("qc-1", appcontext.RoleQC)
	b, links := env.seedApprovedBatch("u-1", "PO-1", "PO-2", "PO-3")
	for _, link := range links {
		env.seedBatchLine(link, "ITM-"+link.PODocNum, 10,
			&BatchDetail{BatchNumber: "LOT", Quantity: types.NewQuantity(10)})
	}
	env.poster.failFor["PO-2"] = apperror.NewSAPRejected(400, "blocked")

	if _, err := env.svc.Post(owner, b.ID); err != nil {
		t.Fatalf("post: %v", err)
	}
	firstCalls := len(env.poster.notes)

	delete(env.poster.failFor, "PO-2")
	outcome, err := env.svc.RetryPosting(qc, b.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !outcome.BatchCompleted {
		t.Fatal("retry did not complete the batch")
	}
	if outcome.TotalSuccess != 1 || outcome.TotalPosted != 3 {
		t.Fatalf("outcome = %+v, want 1 retried success and 3 total posted", outcome)
	}
	if calls := len(env.poster.notes) - firstCalls; calls != 1 {
		t.Errorf("retry made %d poster calls, want 1", calls)
	}

	// Retried note carries the retry comment.
	last := env.poster.notes[len(env.poster.notes)-1]
	if last.Comments != "Retry - Auto-created from batch "+b.BatchNumber {
		t.Errorf("retry comments = %q", last.Comments)
	}

	got, _ := env.repo.GetBatch(qc, b.ID)
	if got.Status != StatusCompleted || got.TotalGRNsCreated != 3 || got.ErrorLog != "" {
		t.Errorf("batch = %s grns = %d errorLog = %q", got.Status, got.TotalGRNsCreated, got.ErrorLog)
	}
}

func TestRetryPostingGuards(t *testing.T) {
	env := newTestEnv()
	qc := userCtx("qc-1", appcontext.RoleQC)

	// No failed links.
	b, links := env.seedApprovedBatch("u-1", "PO-1")
	links[0].Status = LinkPosted
	entry := int64(9001)
	links[0].GRNDocEntry = &entry
	env.repo.links[links[0].ID] = links[0]

	_, err := env.svc.RetryPosting(qc, b.ID)
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeBusinessRule {
		t.Fatalf("retry without failed links: %v, want business rule", err)
	}

	// Plain user without QC access.
	plain := ownerCtx("u-1")
	if _, err := env.svc.RetryPosting(plain, b.ID); err == nil {
		t.Fatal("plain user allowed to retry")
	}

	// Manager role qualifies.
	completed := env.seedBatch("u-1", StatusCompleted, QCApproved)
	mgr := userCtx("mgr-1", appcontext.RoleManager)
	_, err = env.svc.RetryPosting(mgr, completed.ID)
	appErr, ok = apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeInvalidTransition {
		t.Fatalf("retry on completed batch: %v, want invalid transition", err)
	}
}

func TestRetryPostingPartial(t *testing.T) {
	env := newTestEnv()
	owner := ownerCtx("u-1")
	qc := userCtx("qc-1", appcontext.RoleQC)
	b, links := env.seedApprovedBatch("u-1", "PO-1", "PO-2", "PO-3")
	for _, link := range links {
		env.seedBatchLine(link, "ITM-"+link.PODocNum, 10,
			&BatchDetail{BatchNumber: "LOT", Quantity: types.NewQuantity(10)})
	}
	env.poster.failFor["PO-2"] = apperror.NewSAPRejected(400, "blocked")
	env.poster.failFor["PO-3"] = apperror.NewSAPRejected(400, "blocked")

	if _, err := env.svc.Post(owner, b.ID); err != nil {
		t.Fatalf("post: %v", err)
	}

	// Only one of the two failures resolves.
	delete(env.poster.failFor, "PO-2")
	outcome, err := env.svc.RetryPosting(qc, b.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if outcome.BatchCompleted {
		t.Fatal("completed with a link still failed")
	}
	if outcome.TotalSuccess != 1 || outcome.TotalPosted != 2 || !outcome.AllowRetry {
		t.Fatalf("outcome = %+v", outcome)
	}

	got, _ := env.repo.GetBatch(qc, b.ID)
	if got.Status != StatusQCApproved || got.TotalGRNsCreated != 2 {
		t.Errorf("batch = %s grns = %d, want qc_approved/2", got.Status, got.TotalGRNsCreated)
	}
	gotLink, _ := env.repo.GetPOLink(qc, links[2].ID)
	if gotLink.Status != LinkFailed || gotLink.ErrorMessage == "" {
		t.Errorf("still-failed link = %+v", gotLink)
	}
}

func TestPostSystemFaultStaysRetryable(t *testing.T) {
	env := newTestEnv()
	ctx := ownerCtx("u-1")
	b, links := env.seedApprovedBatch("u-1", "PO-1")
	env.seedBatchLine(links[0], "ITM-A", 10,
		&BatchDetail{BatchNumber: "LOT", Quantity: types.NewQuantity(10)})
	env.poster.panicFor["PO-1"] = true

	outcome, err := env.svc.Post(ctx, b.ID)
	if outcome != nil {
		t.Errorf("outcome = %+v, want nil on system fault", outcome)
	}
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeSystem {
		t.Fatalf("err = %v, want system error", err)
	}

	got, _ := env.repo.GetBatch(ctx, b.ID)
	if got.Status != StatusQCApproved || got.ErrorLog == "" {
		t.Errorf("batch = %s errorLog = %q, want qc_approved with error log", got.Status, got.ErrorLog)
	}
}

func TestPostSerialLine(t *testing.T) {
	env := newTestEnv()
	ctx := ownerCtx("u-1")
	b, links := env.seedApprovedBatch("u-1", "PO-1")
	line := env.seedLine(links[0], 2, "ITM-S", 2, sap.InventoryTypeSerial)
	env.repo.serialDetails[line.ID] = []*SerialDetail{
		{ID: id.New(), LineSelectionID: line.ID, SerialNumber: "SN-1", ManufacturerSerialNumber: "MFG-1", InternalSerialNumber: "SN-1"},
		{ID: id.New(), LineSelectionID: line.ID, SerialNumber: "SN-2", ManufacturerSerialNumber: "MFG-2", InternalSerialNumber: "SN-2"},
	}

	if _, err := env.svc.Post(ctx, b.ID); err != nil {
		t.Fatalf("Post: %v", err)
	}

	dl := env.poster.notes[0].DocumentLines[0]
	if dl.BaseLine == nil || *dl.BaseLine != 2 {
		t.Errorf("BaseLine = %v, want source line 2", dl.BaseLine)
	}
	if len(dl.SerialNumbers) != 2 {
		t.Fatalf("serial entries = %d, want 2", len(dl.SerialNumbers))
	}
	for i, entry := range dl.SerialNumbers {
		if entry.Quantity != 1.0 {
			t.Errorf("serial %d quantity = %v, want 1.0", i, entry.Quantity)
		}
		if entry.BaseLineNumber != 0 {
			t.Errorf("serial %d BaseLineNumber = %d, want document position 0", i, entry.BaseLineNumber)
		}
	}
	if dl.SerialNumbers[0].InternalSerialNumber != "SN-1" {
		t.Errorf("serial = %q, want SN-1", dl.SerialNumbers[0].InternalSerialNumber)
	}
}

func TestPostLegacyAllocationFallback(t *testing.T) {
	env := newTestEnv()
	ctx := ownerCtx("u-1")
	b, links := env.seedApprovedBatch("u-1", "PO-1")
	line := env.seedLine(links[0], 0, "ITM-L", 10, sap.InventoryTypeBatch)
	// Both legacy columns populated: batch allocations win.
	line.BatchNumbersJSON = `[{"BatchNumber":"LOT-OLD","Quantity":10}]`
	line.SerialNumbersJSON = `[{"InternalSerialNumber":"SN-OLD"}]`
	env.repo.lines[line.ID] = line

	if _, err := env.svc.Post(ctx, b.ID); err != nil {
		t.Fatalf("Post: %v", err)
	}

	dl := env.poster.notes[0].DocumentLines[0]
	if len(dl.BatchNumbers) != 1 || dl.BatchNumbers[0].BatchNumber != "LOT-OLD" {
		t.Errorf("batch entries = %+v, want legacy LOT-OLD", dl.BatchNumbers)
	}
	if len(dl.SerialNumbers) != 0 {
		t.Errorf("serial entries emitted alongside batch fallback: %+v", dl.SerialNumbers)
	}
	if dl.BatchNumbers[0].BaseLineNumber != 0 {
		t.Errorf("BaseLineNumber = %d, want 0", dl.BatchNumbers[0].BaseLineNumber)
	}
}

func TestPostManualLineOmitsBaseReferences(t *testing.T) {
	env := newTestEnv()
	ctx := ownerCtx("u-1")
	b, links := env.seedApprovedBatch("u-1", "PO-1")
	env.seedBatchLine(links[0], "ITM-A", 10,
		&BatchDetail{BatchNumber: "LOT", Quantity: types.NewQuantity(10)})

	manual := &LineSelection{
		ID:               id.New(),
		POLinkID:         links[0].ID,
		Origin:           OriginManual,
		ItemCode:         "ITM-M",
		SelectedQuantity: types.NewQuantity(5),
		WarehouseCode:    "7000-FG",
		InventoryType:    sap.InventoryTypeStandard,
		NoOfPacks:        1,
	}
	env.repo.lines[manual.ID] = manual

	if _, err := env.svc.Post(ctx, b.ID); err != nil {
		t.Fatalf("Post: %v", err)
	}

	note := env.poster.notes[0]
	if len(note.DocumentLines) != 2 {
		t.Fatalf("document lines = %d, want 2", len(note.DocumentLines))
	}
	var manualLine *sap.DocumentLine
	for i := range note.DocumentLines {
		if note.DocumentLines[i].ItemCode == "ITM-M" {
			manualLine = &note.DocumentLines[i]
		}
	}
	if manualLine == nil {
		t.Fatal("manual line missing from payload")
	}
	if manualLine.BaseType != nil || manualLine.BaseEntry != nil || manualLine.BaseLine != nil {
		t.Errorf("manual line carries base references: %+v", manualLine)
	}
}
