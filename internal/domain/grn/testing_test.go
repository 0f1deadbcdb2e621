package grn

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"grnflow/internal/core/appcontext"
	"grnflow/internal/core/apperror"
	"grnflow/internal/core/id"
	"grnflow/internal/core/types"
	"grnflow/internal/domain/sap"
)

// fakeRepo is an in-memory Repository for service tests.
type fakeRepo struct {
	batches map[id.ID]*Batch
	links   map[id.ID]*POLink
	lines   map[id.ID]*LineSelection

	batchDetails  map[id.ID][]*BatchDetail
	serialDetails map[id.ID][]*SerialDetail
	packDetails   map[id.ID][]*PackDetail

	// failUpdateBatch makes UpdateBatch fail once, for error-path tests.
	failUpdateBatch error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		batches:       make(map[id.ID]*Batch),
		links:         make(map[id.ID]*POLink),
		lines:         make(map[id.ID]*LineSelection),
		batchDetails:  make(map[id.ID][]*BatchDetail),
		serialDetails: make(map[id.ID][]*SerialDetail),
		packDetails:   make(map[id.ID][]*PackDetail),
	}
}

func (r *fakeRepo) CreateBatch(_ context.Context, b *Batch) error {
	clone := *b
	r.batches[b.ID] = &clone
	return nil
}

func (r *fakeRepo) GetBatch(_ context.Context, batchID id.ID) (*Batch, error) {
	b, ok := r.batches[batchID]
	if !ok {
		return nil, apperror.NewNotFound("batch", batchID.String())
	}
	clone := *b
	return &clone, nil
}

func (r *fakeRepo) GetBatchFull(ctx context.Context, batchID id.ID) (*Batch, error) {
	b, err := r.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	b.POLinks, _ = r.GetPOLinks(ctx, batchID)
	for _, link := range b.POLinks {
		link.Lines, _ = r.GetLines(ctx, link.ID)
	}
	return b, nil
}

func (r *fakeRepo) UpdateBatch(_ context.Context, b *Batch) error {
	if r.failUpdateBatch != nil {
		err := r.failUpdateBatch
		r.failUpdateBatch = nil
		return err
	}
	current, ok := r.batches[b.ID]
	if !ok {
		return apperror.NewNotFound("batch", b.ID.String())
	}
	if current.Version != b.Version {
		return apperror.NewConcurrentModification("batch", b.ID.String())
	}
	clone := *b
	clone.Version++
	r.batches[b.ID] = &clone
	b.Version = clone.Version
	return nil
}

func (r *fakeRepo) DeleteBatch(_ context.Context, batchID id.ID) error {
	for linkID, link := range r.links {
		if link.BatchID != batchID {
			continue
		}
		for lineID, line := range r.lines {
			if line.POLinkID == linkID {
				delete(r.batchDetails, lineID)
				delete(r.serialDetails, lineID)
				delete(r.packDetails, lineID)
				delete(r.lines, lineID)
			}
		}
		delete(r.links, linkID)
	}
	delete(r.batches, batchID)
	return nil
}

func (r *fakeRepo) ListBatches(_ context.Context, filter ListFilter) (ListResult, error) {
	var items []*Batch
	for _, b := range r.batches {
		if filter.UserID != "" && b.UserID != filter.UserID {
			continue
		}
		if filter.Status != nil && b.Status != *filter.Status {
			continue
		}
		clone := *b
		items = append(items, &clone)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].BatchNumber < items[j].BatchNumber })
	return ListResult{Items: items, TotalCount: int64(len(items)), Limit: filter.Limit, Offset: filter.Offset}, nil
}

func (r *fakeRepo) CreatePOLink(_ context.Context, link *POLink) error {
	clone := *link
	r.links[link.ID] = &clone
	return nil
}

func (r *fakeRepo) GetPOLink(_ context.Context, linkID id.ID) (*POLink, error) {
	link, ok := r.links[linkID]
	if !ok {
		return nil, apperror.NewNotFound("po link", linkID.String())
	}
	clone := *link
	return &clone, nil
}

func (r *fakeRepo) GetPOLinkByDocNum(_ context.Context, batchID id.ID, poDocNum string) (*POLink, error) {
	for _, link := range r.links {
		if link.BatchID == batchID && link.PODocNum == poDocNum {
			clone := *link
			return &clone, nil
		}
	}
	return nil, apperror.NewNotFound("po link", poDocNum)
}

func (r *fakeRepo) UpdatePOLink(_ context.Context, link *POLink) error {
	if _, ok := r.links[link.ID]; !ok {
		return apperror.NewNotFound("po link", link.ID.String())
	}
	clone := *link
	r.links[link.ID] = &clone
	return nil
}

func (r *fakeRepo) GetPOLinks(_ context.Context, batchID id.ID) ([]*POLink, error) {
	var out []*POLink
	for _, link := range r.links {
		if link.BatchID == batchID {
			clone := *link
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PODocNum < out[j].PODocNum })
	return out, nil
}

func (r *fakeRepo) CountPOLinks(ctx context.Context, batchID id.ID) (int, error) {
	links, _ := r.GetPOLinks(ctx, batchID)
	return len(links), nil
}

func (r *fakeRepo) CreateLine(_ context.Context, line *LineSelection) error {
	clone := *line
	r.lines[line.ID] = &clone
	return nil
}

func (r *fakeRepo) GetLine(_ context.Context, lineID id.ID) (*LineSelection, error) {
	line, ok := r.lines[lineID]
	if !ok {
		return nil, apperror.NewNotFound("line selection", lineID.String())
	}
	clone := *line
	return &clone, nil
}

func (r *fakeRepo) GetLineByKey(_ context.Context, poLinkID id.ID, poLineNum int, itemCode string) (*LineSelection, error) {
	for _, line := range r.lines {
		if line.POLinkID == poLinkID && line.ItemCode == itemCode &&
			line.POLineNum != nil && *line.POLineNum == poLineNum {
			clone := *line
			return &clone, nil
		}
	}
	return nil, apperror.NewNotFound("line selection", itemCode)
}

func (r *fakeRepo) GetLineByItem(_ context.Context, poLinkID id.ID, itemCode string) (*LineSelection, error) {
	for _, line := range r.lines {
		if line.POLinkID == poLinkID && line.ItemCode == itemCode {
			clone := *line
			return &clone, nil
		}
	}
	return nil, apperror.NewNotFound("line selection", itemCode)
}

func (r *fakeRepo) UpdateLine(_ context.Context, line *LineSelection) error {
	if _, ok := r.lines[line.ID]; !ok {
		return apperror.NewNotFound("line selection", line.ID.String())
	}
	clone := *line
	r.lines[line.ID] = &clone
	return nil
}

func (r *fakeRepo) GetLines(_ context.Context, poLinkID id.ID) ([]*LineSelection, error) {
	var out []*LineSelection
	for _, line := range r.lines {
		if line.POLinkID == poLinkID {
			clone := *line
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemCode < out[j].ItemCode })
	return out, nil
}

func (r *fakeRepo) SetLinesQCStatus(_ context.Context, batchID id.ID, status QCStatus) error {
	for _, line := range r.lines {
		link, ok := r.links[line.POLinkID]
		if ok && link.BatchID == batchID {
			line.QCStatus = status
		}
	}
	return nil
}

func (r *fakeRepo) ReplaceBatchDetails(_ context.Context, lineID id.ID, details []*BatchDetail) error {
	r.batchDetails[lineID] = details
	return nil
}

func (r *fakeRepo) GetBatchDetails(_ context.Context, lineID id.ID) ([]*BatchDetail, error) {
	return r.batchDetails[lineID], nil
}

func (r *fakeRepo) ReplaceSerialDetails(_ context.Context, lineID id.ID, details []*SerialDetail) error {
	r.serialDetails[lineID] = details
	return nil
}

func (r *fakeRepo) GetSerialDetails(_ context.Context, lineID id.ID) ([]*SerialDetail, error) {
	return r.serialDetails[lineID], nil
}

func (r *fakeRepo) ReplacePackDetails(_ context.Context, lineID id.ID, details []*PackDetail) error {
	r.packDetails[lineID] = details
	return nil
}

func (r *fakeRepo) GetPackDetails(_ context.Context, lineID id.ID) ([]*PackDetail, error) {
	return r.packDetails[lineID], nil
}

// fakeTxManager runs the closure directly; the fake repo has no transactions.
type fakeTxManager struct{}

func (fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakePoster scripts delivery-note outcomes per PO document number, which it
// recovers from the NumAtCard reference ("BATCH-...-PO-<docnum>").
type fakePoster struct {
	notes    []*sap.DeliveryNote
	failFor  map[string]error
	nextDoc  int64
	panicFor map[string]bool
}

func newFakePoster() *fakePoster {
	return &fakePoster{failFor: make(map[string]error), panicFor: make(map[string]bool), nextDoc: 9000}
}

func poNumFromRef(numAtCard string) string {
	idx := strings.Index(numAtCard, "-PO-")
	if idx < 0 {
		return numAtCard
	}
	return numAtCard[idx+len("-PO-"):]
}

func (p *fakePoster) CreatePurchaseDeliveryNote(_ context.Context, note *sap.DeliveryNote) (*sap.PostResult, error) {
	p.notes = append(p.notes, note)
	poNum := poNumFromRef(note.NumAtCard)
	if p.panicFor[poNum] {
		panic("poster wiring fault")
	}
	if err, ok := p.failFor[poNum]; ok {
		return nil, err
	}
	p.nextDoc++
	return &sap.PostResult{DocEntry: p.nextDoc, DocNum: fmt.Sprintf("GRN-%d", p.nextDoc)}, nil
}

// fakeQuery serves scripted item validations; the other lookups are unused in
// workflow tests.
type fakeQuery struct {
	items map[string]*sap.ItemValidation
}

func newFakeQuery() *fakeQuery {
	return &fakeQuery{items: make(map[string]*sap.ItemValidation)}
}

func (q *fakeQuery) BusinessPartners(context.Context) ([]sap.BusinessPartner, error) { return nil, nil }
func (q *fakeQuery) DocumentSeries(context.Context) ([]sap.DocumentSeries, error)    { return nil, nil }
func (q *fakeQuery) CardCodesBySeries(context.Context, int64) ([]sap.BusinessPartner, error) {
	return nil, nil
}
func (q *fakeQuery) OpenPOsBySeries(context.Context, int64, string) ([]sap.OpenPO, error) {
	return nil, nil
}
func (q *fakeQuery) OpenLines(context.Context, []int64) ([]sap.OpenLine, error) { return nil, nil }

func (q *fakeQuery) ValidateItem(_ context.Context, itemCode string) (*sap.ItemValidation, error) {
	v, ok := q.items[itemCode]
	if !ok {
		return nil, apperror.NewNotFound("item", itemCode)
	}
	return v, nil
}

type testEnv struct {
	svc    *Service
	repo   *fakeRepo
	poster *fakePoster
	query  *fakeQuery
}

func newTestEnv() *testEnv {
	repo := newFakeRepo()
	poster := newFakePoster()
	query := newFakeQuery()
	svc := NewService(repo, fakeTxManager{}, query, poster, nil, nil)
	return &testEnv{svc: svc, repo: repo, poster: poster, query: query}
}

func userCtx(userID, role string, perms ...string) context.Context {
	return appcontext.WithUser(context.Background(), &appcontext.UserContext{
		UserID:      userID,
		Username:    userID,
		Role:        role,
		Permissions: perms,
	})
}

func ownerCtx(userID string) context.Context {
	return userCtx(userID, appcontext.RoleUser, appcontext.PermMultipleGRN)
}

func (e *testEnv) seedBatch(owner string, status BatchStatus, qcStatus QCStatus) *Batch {
	b := NewBatch(owner, "V001", "Acme Supplies", 7, "PO 2026")
	b.Status = status
	b.QCStatus = qcStatus
	e.repo.batches[b.ID] = b
	return b
}

func (e *testEnv) seedLink(b *Batch, docEntry int64, docNum string) *POLink {
	link := &POLink{
		ID:         id.New(),
		BatchID:    b.ID,
		PODocEntry: docEntry,
		PODocNum:   docNum,
		POCardCode: b.CustomerCode,
		POCardName: b.CustomerName,
		Status:     LinkSelected,
	}
	e.repo.links[link.ID] = link
	return link
}

func (e *testEnv) seedLine(link *POLink, lineNum int, itemCode string, qty float64, inventoryType string) *LineSelection {
	num := lineNum
	line := &LineSelection{
		ID:               id.New(),
		POLinkID:         link.ID,
		Origin:           OriginPO,
		POLineNum:        &num,
		ItemCode:         itemCode,
		ItemDescription:  itemCode + " description",
		OrderedQuantity:  types.NewQuantity(qty),
		OpenQuantity:     types.NewQuantity(qty),
		SelectedQuantity: types.NewQuantity(qty),
		WarehouseCode:    "7000-FG",
		InventoryType:    inventoryType,
		QCStatus:         QCPending,
		NoOfPacks:        1,
	}
	e.repo.lines[line.ID] = line
	return line
}
