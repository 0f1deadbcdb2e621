package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"grnflow/internal/core/apperror"
	"grnflow/internal/core/id"
	"grnflow/internal/domain/grn"
)

const (
	batchesTable        = "grn_batches"
	poLinksTable        = "grn_po_links"
	lineSelectionsTable = "grn_line_selections"
	batchDetailsTable   = "grn_batch_details"
	serialDetailsTable  = "grn_serial_details"
	packDetailsTable    = "grn_pack_details"
)

var batchColumns = []string{
	"id", "batch_number", "user_id",
	"customer_code", "customer_name", "doc_series_id", "doc_series_name",
	"status", "qc_status", "qc_approver_id", "qc_reviewed_at", "qc_notes",
	"total_pos", "total_grns_created", "error_log",
	"created_at", "submitted_at", "posted_at", "completed_at", "posted_by_id",
	"version",
}

var poLinkColumns = []string{
	"id", "batch_id",
	"po_doc_entry", "po_doc_num", "po_card_code", "po_card_name",
	"po_doc_date", "po_doc_total",
	"status", "grn_doc_num", "grn_doc_entry", "posted_at", "error_message",
	"created_at",
}

var lineColumns = []string{
	"id", "po_link_id", "origin", "po_line_num",
	"item_code", "item_description",
	"ordered_quantity", "open_quantity", "selected_quantity",
	"warehouse_code", "bin_location", "unit_price", "unit_of_measure", "line_status",
	"inventory_type", "is_complete", "qc_status",
	"admin_date", "expiry_date", "qty_per_pack", "no_of_packs",
	"batch_numbers_json", "serial_numbers_json",
	"created_at",
}

var _ grn.Repository = (*GRNRepo)(nil)

// GRNRepo implements grn.Repository on PostgreSQL. All queries resolve the
// active transaction through the TxManager; the service layer decides
// transaction boundaries.
type GRNRepo struct {
	txManager *TxManager
}

// NewGRNRepo creates the GRN repository.
func NewGRNRepo(txManager *TxManager) *GRNRepo {
	return &GRNRepo{txManager: txManager}
}

func (r *GRNRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *GRNRepo) querier(ctx context.Context) Querier {
	return r.txManager.GetQuerier(ctx)
}

// --- Batch ---

func (r *GRNRepo) CreateBatch(ctx context.Context, b *grn.Batch) error {
	sql, args, err := r.builder().
		Insert(batchesTable).
		Columns(batchColumns...).
		Values(
			b.ID, b.BatchNumber, b.UserID,
			b.CustomerCode, b.CustomerName, b.DocSeriesID, b.DocSeriesName,
			b.Status, b.QCStatus, b.QCApproverID, b.QCReviewedAt, b.QCNotes,
			b.TotalPOs, b.TotalGRNsCreated, b.ErrorLog,
			b.CreatedAt, b.SubmittedAt, b.PostedAt, b.CompletedAt, b.PostedByID,
			b.Version,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert batch: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

func (r *GRNRepo) GetBatch(ctx context.Context, batchID id.ID) (*grn.Batch, error) {
	sql, args, err := r.builder().
		Select(batchColumns...).
		From(batchesTable).
		Where(squirrel.Eq{"id": batchID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select batch: %w", err)
	}

	var b grn.Batch
	if err := pgxscan.Get(ctx, r.querier(ctx), &b, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("batch", batchID.String())
		}
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return &b, nil
}

func (r *GRNRepo) GetBatchFull(ctx context.Context, batchID id.ID) (*grn.Batch, error) {
	b, err := r.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	links, err := r.GetPOLinks(ctx, batchID)
	if err != nil {
		return nil, err
	}
	for _, link := range links {
		lines, err := r.GetLines(ctx, link.ID)
		if err != nil {
			return nil, err
		}
		for _, line := range lines {
			if line.BatchDetails, err = r.GetBatchDetails(ctx, line.ID); err != nil {
				return nil, err
			}
			if line.SerialDetails, err = r.GetSerialDetails(ctx, line.ID); err != nil {
				return nil, err
			}
			if line.PackDetails, err = r.GetPackDetails(ctx, line.ID); err != nil {
				return nil, err
			}
		}
		link.Lines = lines
	}
	b.POLinks = links
	return b, nil
}

// UpdateBatch writes every mutable batch field guarded by a compare-and-swap
// on the version column. A zero-row update means the row moved underneath.
func (r *GRNRepo) UpdateBatch(ctx context.Context, b *grn.Batch) error {
	sql, args, err := r.builder().
		Update(batchesTable).
		SetMap(map[string]any{
			"customer_code":      b.CustomerCode,
			"customer_name":      b.CustomerName,
			"doc_series_id":      b.DocSeriesID,
			"doc_series_name":    b.DocSeriesName,
			"status":             b.Status,
			"qc_status":          b.QCStatus,
			"qc_approver_id":     b.QCApproverID,
			"qc_reviewed_at":     b.QCReviewedAt,
			"qc_notes":           b.QCNotes,
			"total_pos":          b.TotalPOs,
			"total_grns_created": b.TotalGRNsCreated,
			"error_log":          b.ErrorLog,
			"submitted_at":       b.SubmittedAt,
			"posted_at":          b.PostedAt,
			"completed_at":       b.CompletedAt,
			"posted_by_id":       b.PostedByID,
			"version":            b.Version + 1,
		}).
		Where(squirrel.Eq{"id": b.ID, "version": b.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update batch: %w", err)
	}

	tag, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("batch", b.ID.String())
	}
	b.Version++
	return nil
}

// DeleteBatch removes the batch and everything it owns, children first.
// The cascade is explicit so the delete order is visible and testable.
func (r *GRNRepo) DeleteBatch(ctx context.Context, batchID id.ID) error {
	q := r.querier(ctx)

	lineIDs := r.builder().
		Select("id").
		From(lineSelectionsTable).
		Where(squirrel.Expr("po_link_id IN (SELECT id FROM "+poLinksTable+" WHERE batch_id = ?)", batchID))
	lineIDsSQL, lineArgs, err := lineIDs.ToSql()
	if err != nil {
		return fmt.Errorf("build line ids: %w", err)
	}

	for _, table := range []string{batchDetailsTable, serialDetailsTable, packDetailsTable} {
		if _, err := q.Exec(ctx,
			"DELETE FROM "+table+" WHERE line_selection_id IN ("+lineIDsSQL+")", lineArgs...); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	if _, err := q.Exec(ctx,
		"DELETE FROM "+lineSelectionsTable+" WHERE po_link_id IN (SELECT id FROM "+poLinksTable+" WHERE batch_id = $1)",
		batchID); err != nil {
		return fmt.Errorf("delete line selections: %w", err)
	}
	if _, err := q.Exec(ctx, "DELETE FROM "+poLinksTable+" WHERE batch_id = $1", batchID); err != nil {
		return fmt.Errorf("delete po links: %w", err)
	}
	if _, err := q.Exec(ctx, "DELETE FROM "+batchesTable+" WHERE id = $1", batchID); err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	return nil
}

func (r *GRNRepo) ListBatches(ctx context.Context, filter grn.ListFilter) (grn.ListResult, error) {
	result := grn.ListResult{Limit: filter.Limit, Offset: filter.Offset}

	q := r.builder().
		Select(batchColumns...).
		From(batchesTable)

	if filter.UserID != "" {
		q = q.Where(squirrel.Eq{"user_id": filter.UserID})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.CreatedFrom != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.CreatedFrom})
	}
	if filter.CreatedTo != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *filter.CreatedTo})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"batch_number": pattern},
			squirrel.ILike{"customer_name": pattern},
			squirrel.ILike{"customer_code": pattern},
		})
	}

	countQ := r.builder().Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}
	querier := r.querier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count batches: %w", err)
	}

	q = q.OrderBy(orderClause(filter.OrderBy, "created_at DESC"))
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build list: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list batches: %w", err)
	}
	return result, nil
}

// sortableColumns whitelists the batch columns a caller may order by.
// OrderBy values come from query strings; nothing outside this set ever
// reaches the SQL text.
var sortableColumns = map[string]bool{
	"created_at":    true,
	"submitted_at":  true,
	"completed_at":  true,
	"batch_number":  true,
	"customer_name": true,
	"status":        true,
}

// orderClause converts the "-column" descending shorthand to SQL.
func orderClause(orderBy, fallback string) string {
	if orderBy == "" {
		return fallback
	}
	column, direction := orderBy, "ASC"
	if orderBy[0] == '-' {
		column, direction = orderBy[1:], "DESC"
	}
	if !sortableColumns[column] {
		return fallback
	}
	return column + " " + direction
}

// --- PO links ---

func (r *GRNRepo) CreatePOLink(ctx context.Context, link *grn.POLink) error {
	sql, args, err := r.builder().
		Insert(poLinksTable).
		Columns(poLinkColumns...).
		Values(
			link.ID, link.BatchID,
			link.PODocEntry, link.PODocNum, link.POCardCode, link.POCardName,
			link.PODocDate, link.PODocTotal,
			link.Status, link.GRNDocNum, link.GRNDocEntry, link.PostedAt, link.ErrorMessage,
			link.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert po link: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert po link: %w", err)
	}
	return nil
}

func (r *GRNRepo) GetPOLink(ctx context.Context, linkID id.ID) (*grn.POLink, error) {
	return r.getPOLink(ctx, squirrel.Eq{"id": linkID}, linkID.String())
}

func (r *GRNRepo) GetPOLinkByDocNum(ctx context.Context, batchID id.ID, poDocNum string) (*grn.POLink, error) {
	return r.getPOLink(ctx, squirrel.Eq{"batch_id": batchID, "po_doc_num": poDocNum}, poDocNum)
}

func (r *GRNRepo) getPOLink(ctx context.Context, where squirrel.Eq, ref string) (*grn.POLink, error) {
	sql, args, err := r.builder().
		Select(poLinkColumns...).
		From(poLinksTable).
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select po link: %w", err)
	}

	var link grn.POLink
	if err := pgxscan.Get(ctx, r.querier(ctx), &link, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("po link", ref)
		}
		return nil, fmt.Errorf("get po link: %w", err)
	}
	return &link, nil
}

func (r *GRNRepo) UpdatePOLink(ctx context.Context, link *grn.POLink) error {
	sql, args, err := r.builder().
		Update(poLinksTable).
		SetMap(map[string]any{
			"po_card_code":  link.POCardCode,
			"po_card_name":  link.POCardName,
			"po_doc_date":   link.PODocDate,
			"po_doc_total":  link.PODocTotal,
			"status":        link.Status,
			"grn_doc_num":   link.GRNDocNum,
			"grn_doc_entry": link.GRNDocEntry,
			"posted_at":     link.PostedAt,
			"error_message": link.ErrorMessage,
		}).
		Where(squirrel.Eq{"id": link.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update po link: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("update po link: %w", err)
	}
	return nil
}

func (r *GRNRepo) GetPOLinks(ctx context.Context, batchID id.ID) ([]*grn.POLink, error) {
	sql, args, err := r.builder().
		Select(poLinkColumns...).
		From(poLinksTable).
		Where(squirrel.Eq{"batch_id": batchID}).
		OrderBy("created_at, po_doc_num").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select po links: %w", err)
	}

	var links []*grn.POLink
	if err := pgxscan.Select(ctx, r.querier(ctx), &links, sql, args...); err != nil {
		return nil, fmt.Errorf("get po links: %w", err)
	}
	return links, nil
}

func (r *GRNRepo) CountPOLinks(ctx context.Context, batchID id.ID) (int, error) {
	sql, args, err := r.builder().
		Select("COUNT(*)").
		From(poLinksTable).
		Where(squirrel.Eq{"batch_id": batchID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count po links: %w", err)
	}

	var count int
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count po links: %w", err)
	}
	return count, nil
}

// --- Line selections ---

func (r *GRNRepo) CreateLine(ctx context.Context, line *grn.LineSelection) error {
	sql, args, err := r.builder().
		Insert(lineSelectionsTable).
		Columns(lineColumns...).
		Values(
			line.ID, line.POLinkID, line.Origin, line.POLineNum,
			line.ItemCode, line.ItemDescription,
			line.OrderedQuantity, line.OpenQuantity, line.SelectedQuantity,
			line.WarehouseCode, line.BinLocation, line.UnitPrice, line.UnitOfMeasure, line.LineStatus,
			line.InventoryType, line.IsComplete, line.QCStatus,
			line.AdminDate, line.ExpiryDate, line.QtyPerPack, line.NoOfPacks,
			line.BatchNumbersJSON, line.SerialNumbersJSON,
			line.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert line: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert line: %w", err)
	}
	return nil
}

func (r *GRNRepo) GetLine(ctx context.Context, lineID id.ID) (*grn.LineSelection, error) {
	return r.getLine(ctx, squirrel.Eq{"id": lineID}, lineID.String())
}

func (r *GRNRepo) GetLineByKey(ctx context.Context, poLinkID id.ID, poLineNum int, itemCode string) (*grn.LineSelection, error) {
	return r.getLine(ctx, squirrel.Eq{
		"po_link_id":  poLinkID,
		"po_line_num": poLineNum,
		"item_code":   itemCode,
	}, itemCode)
}

func (r *GRNRepo) GetLineByItem(ctx context.Context, poLinkID id.ID, itemCode string) (*grn.LineSelection, error) {
	return r.getLine(ctx, squirrel.Eq{
		"po_link_id": poLinkID,
		"item_code":  itemCode,
	}, itemCode)
}

func (r *GRNRepo) getLine(ctx context.Context, where squirrel.Eq, ref string) (*grn.LineSelection, error) {
	sql, args, err := r.builder().
		Select(lineColumns...).
		From(lineSelectionsTable).
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select line: %w", err)
	}

	var line grn.LineSelection
	if err := pgxscan.Get(ctx, r.querier(ctx), &line, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("line selection", ref)
		}
		return nil, fmt.Errorf("get line: %w", err)
	}
	return &line, nil
}

func (r *GRNRepo) UpdateLine(ctx context.Context, line *grn.LineSelection) error {
	sql, args, err := r.builder().
		Update(lineSelectionsTable).
		SetMap(map[string]any{
			"item_description":    line.ItemDescription,
			"ordered_quantity":    line.OrderedQuantity,
			"open_quantity":       line.OpenQuantity,
			"selected_quantity":   line.SelectedQuantity,
			"warehouse_code":      line.WarehouseCode,
			"bin_location":        line.BinLocation,
			"unit_price":          line.UnitPrice,
			"unit_of_measure":     line.UnitOfMeasure,
			"line_status":         line.LineStatus,
			"inventory_type":      line.InventoryType,
			"is_complete":         line.IsComplete,
			"qc_status":           line.QCStatus,
			"admin_date":          line.AdminDate,
			"expiry_date":         line.ExpiryDate,
			"qty_per_pack":        line.QtyPerPack,
			"no_of_packs":         line.NoOfPacks,
			"batch_numbers_json":  line.BatchNumbersJSON,
			"serial_numbers_json": line.SerialNumbersJSON,
		}).
		Where(squirrel.Eq{"id": line.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update line: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("update line: %w", err)
	}
	return nil
}

func (r *GRNRepo) GetLines(ctx context.Context, poLinkID id.ID) ([]*grn.LineSelection, error) {
	sql, args, err := r.builder().
		Select(lineColumns...).
		From(lineSelectionsTable).
		Where(squirrel.Eq{"po_link_id": poLinkID}).
		OrderBy("created_at, item_code").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select lines: %w", err)
	}

	var lines []*grn.LineSelection
	if err := pgxscan.Select(ctx, r.querier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	return lines, nil
}

func (r *GRNRepo) SetLinesQCStatus(ctx context.Context, batchID id.ID, status grn.QCStatus) error {
	sql := `
		UPDATE ` + lineSelectionsTable + ` SET qc_status = $1
		WHERE po_link_id IN (SELECT id FROM ` + poLinksTable + ` WHERE batch_id = $2)
	`
	if _, err := r.querier(ctx).Exec(ctx, sql, status, batchID); err != nil {
		return fmt.Errorf("set lines qc status: %w", err)
	}
	return nil
}

// --- Details (replace semantics: delete existing, insert new set) ---

func (r *GRNRepo) ReplaceBatchDetails(ctx context.Context, lineID id.ID, details []*grn.BatchDetail) error {
	q := r.querier(ctx)
	if _, err := q.Exec(ctx, "DELETE FROM "+batchDetailsTable+" WHERE line_selection_id = $1", lineID); err != nil {
		return fmt.Errorf("delete batch details: %w", err)
	}
	if len(details) == 0 {
		return nil
	}

	ins := r.builder().
		Insert(batchDetailsTable).
		Columns(
			"id", "line_selection_id", "batch_number", "quantity",
			"manufacturer_serial_number", "internal_serial_number",
			"expiry_date", "admin_date", "grn_number", "qty_per_pack", "no_of_packs",
			"created_at",
		)
	for _, d := range details {
		ins = ins.Values(
			d.ID, lineID, d.BatchNumber, d.Quantity,
			d.ManufacturerSerialNumber, d.InternalSerialNumber,
			d.ExpiryDate, d.AdminDate, d.GRNNumber, d.QtyPerPack, d.NoOfPacks,
			d.CreatedAt,
		)
	}
	sql, args, err := ins.ToSql()
	if err != nil {
		return fmt.Errorf("build insert batch details: %w", err)
	}
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert batch details: %w", err)
	}
	return nil
}

func (r *GRNRepo) GetBatchDetails(ctx context.Context, lineID id.ID) ([]*grn.BatchDetail, error) {
	sql, args, err := r.builder().
		Select(
			"id", "line_selection_id", "batch_number", "quantity",
			"manufacturer_serial_number", "internal_serial_number",
			"expiry_date", "admin_date", "grn_number", "qty_per_pack", "no_of_packs",
			"created_at",
		).
		From(batchDetailsTable).
		Where(squirrel.Eq{"line_selection_id": lineID}).
		OrderBy("created_at, batch_number").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select batch details: %w", err)
	}

	var details []*grn.BatchDetail
	if err := pgxscan.Select(ctx, r.querier(ctx), &details, sql, args...); err != nil {
		return nil, fmt.Errorf("get batch details: %w", err)
	}
	return details, nil
}

func (r *GRNRepo) ReplaceSerialDetails(ctx context.Context, lineID id.ID, details []*grn.SerialDetail) error {
	q := r.querier(ctx)
	if _, err := q.Exec(ctx, "DELETE FROM "+serialDetailsTable+" WHERE line_selection_id = $1", lineID); err != nil {
		return fmt.Errorf("delete serial details: %w", err)
	}
	if len(details) == 0 {
		return nil
	}

	ins := r.builder().
		Insert(serialDetailsTable).
		Columns(
			"id", "line_selection_id", "serial_number",
			"manufacturer_serial_number", "internal_serial_number",
			"expiry_date", "admin_date", "grn_number",
			"created_at",
		)
	for _, d := range details {
		ins = ins.Values(
			d.ID, lineID, d.SerialNumber,
			d.ManufacturerSerialNumber, d.InternalSerialNumber,
			d.ExpiryDate, d.AdminDate, d.GRNNumber,
			d.CreatedAt,
		)
	}
	sql, args, err := ins.ToSql()
	if err != nil {
		return fmt.Errorf("build insert serial details: %w", err)
	}
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert serial details: %w", err)
	}
	return nil
}

func (r *GRNRepo) GetSerialDetails(ctx context.Context, lineID id.ID) ([]*grn.SerialDetail, error) {
	sql, args, err := r.builder().
		Select(
			"id", "line_selection_id", "serial_number",
			"manufacturer_serial_number", "internal_serial_number",
			"expiry_date", "admin_date", "grn_number",
			"created_at",
		).
		From(serialDetailsTable).
		Where(squirrel.Eq{"line_selection_id": lineID}).
		OrderBy("created_at, serial_number").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select serial details: %w", err)
	}

	var details []*grn.SerialDetail
	if err := pgxscan.Select(ctx, r.querier(ctx), &details, sql, args...); err != nil {
		return nil, fmt.Errorf("get serial details: %w", err)
	}
	return details, nil
}

func (r *GRNRepo) ReplacePackDetails(ctx context.Context, lineID id.ID, details []*grn.PackDetail) error {
	q := r.querier(ctx)
	if _, err := q.Exec(ctx, "DELETE FROM "+packDetailsTable+" WHERE line_selection_id = $1", lineID); err != nil {
		return fmt.Errorf("delete pack details: %w", err)
	}
	if len(details) == 0 {
		return nil
	}

	ins := r.builder().
		Insert(packDetailsTable).
		Columns(
			"id", "line_selection_id", "quantity", "qty_per_pack", "no_of_packs",
			"pack_number", "expiry_date", "admin_date", "grn_number",
			"created_at",
		)
	for _, d := range details {
		ins = ins.Values(
			d.ID, lineID, d.Quantity, d.QtyPerPack, d.NoOfPacks,
			d.PackNumber, d.ExpiryDate, d.AdminDate, d.GRNNumber,
			d.CreatedAt,
		)
	}
	sql, args, err := ins.ToSql()
	if err != nil {
		return fmt.Errorf("build insert pack details: %w", err)
	}
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert pack details: %w", err)
	}
	return nil
}

func (r *GRNRepo) GetPackDetails(ctx context.Context, lineID id.ID) ([]*grn.PackDetail, error) {
	sql, args, err := r.builder().
		Select(
			"id", "line_selection_id", "quantity", "qty_per_pack", "no_of_packs",
			"pack_number", "expiry_date", "admin_date", "grn_number",
			"created_at",
		).
		From(packDetailsTable).
		Where(squirrel.Eq{"line_selection_id": lineID}).
		OrderBy("pack_number").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select pack details: %w", err)
	}

	var details []*grn.PackDetail
	if err := pgxscan.Select(ctx, r.querier(ctx), &details, sql, args...); err != nil {
		return nil, fmt.Errorf("get pack details: %w", err)
	}
	return details, nil
}
