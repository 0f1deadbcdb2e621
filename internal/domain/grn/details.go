package grn

import (
	"context"
	"fmt"
	"time"

	"grnflow/internal/core/apperror"
	"grnflow/internal/core/id"
	"grnflow/internal/core/types"
	"grnflow/internal/domain/sap"
	"grnflow/pkg/labels"
	"grnflow/pkg/logger"
)

// BatchDetailInput is one batch-lot allocation for a line.
type BatchDetailInput struct {
	BatchNumber              string          `json:"batchNumber"`
	Quantity                 types.Quantity  `json:"quantity"`
	ExpiryDate               *time.Time      `json:"expiryDate,omitempty"`
	ManufacturerSerialNumber string          `json:"manufacturerSerialNumber,omitempty"`
	InternalSerialNumber     string          `json:"internalSerialNumber,omitempty"`
	NoOfPacks                int             `json:"noOfPacks,omitempty"`
	QtyPerPack               *types.Quantity `json:"qtyPerPack,omitempty"`
	GRNNumber                string          `json:"grnNumber,omitempty"`
}

// SerialDetailInput is one serialized unit for a line.
type SerialDetailInput struct {
	SerialNumber             string     `json:"serialNumber,omitempty"`
	ManufacturerSerialNumber string     `json:"manufacturerSerialNumber"`
	InternalSerialNumber     string     `json:"internalSerialNumber"`
	ExpiryDate               *time.Time `json:"expiryDate,omitempty"`
	GRNNumber                string     `json:"grnNumber,omitempty"`
}

// validateBatchEntries enforces positive per-entry quantities and the
// 0.001-tolerance reconciliation against the line quantity.
func validateBatchEntries(entries []BatchDetailInput, lineQty types.Quantity) error {
	if len(entries) == 0 {
		return apperror.NewValidation("at least one batch entry is required")
	}

	total := types.ZeroQuantity()
	for i, e := range entries {
		if e.BatchNumber == "" {
			return apperror.NewValidation(fmt.Sprintf("batch #%d: batch number is required", i+1))
		}
		if !e.Quantity.IsPositive() {
			return apperror.NewValidation(fmt.Sprintf("batch #%d: quantity must be positive", i+1))
		}
		total = total.Add(e.Quantity)
	}

	if !types.QuantitiesReconcile(lineQty, total) {
		return apperror.NewQuantityMismatch(lineQty.String(), total.String())
	}
	return nil
}

// validateSerialEntries enforces the strict 1:1 rule: the line quantity must
// be a positive whole number and the entry count must equal it exactly.
func validateSerialEntries(entries []SerialDetailInput, lineQty types.Quantity) error {
	if !lineQty.IsPositive() {
		return apperror.NewValidation("quantity must be positive for serial-managed items")
	}
	if !types.IsWholeQuantity(lineQty) {
		return apperror.NewValidation("quantity must be a whole number for serial-managed items (one serial per unit)")
	}
	if len(entries) == 0 {
		return apperror.NewValidation("at least one serial number is required")
	}

	want := int(lineQty.IntPart())
	if len(entries) != want {
		return apperror.NewQuantityMismatch(
			fmt.Sprintf("%d serial entries", want),
			fmt.Sprintf("%d serial entries", len(entries)))
	}

	for i, e := range entries {
		if e.ManufacturerSerialNumber == "" {
			return apperror.NewValidation(fmt.Sprintf("serial #%d: manufacturer serial number is required", i+1))
		}
		if e.InternalSerialNumber == "" {
			return apperror.NewValidation(fmt.Sprintf("serial #%d: internal serial number is required", i+1))
		}
	}
	return nil
}

// loadDraftLine fetches a line and checks the caller may edit it.
func (s *Service) loadDraftLine(ctx context.Context, lineID id.ID) (*LineSelection, *Batch, error) {
	line, err := s.repo.GetLine(ctx, lineID)
	if err != nil {
		return nil, nil, err
	}
	link, err := s.repo.GetPOLink(ctx, line.POLinkID)
	if err != nil {
		return nil, nil, err
	}
	b, err := s.loadOwnedBatch(ctx, link.BatchID)
	if err != nil {
		return nil, nil, err
	}
	if err := b.guardTransition("edit_details", StatusDraft); err != nil {
		return nil, nil, err
	}
	return line, b, nil
}

// SetBatchDetails replaces the batch-lot breakdown of a batch-managed line.
// All validation happens before any write; a rejected call persists nothing.
func (s *Service) SetBatchDetails(ctx context.Context, lineID id.ID, entries []BatchDetailInput) error {
	line, _, err := s.loadDraftLine(ctx, lineID)
	if err != nil {
		return err
	}
	if line.InventoryType != sap.InventoryTypeBatch {
		return apperror.NewValidation("line is not batch-managed").
			WithDetail("inventoryType", line.InventoryType)
	}
	if err := validateBatchEntries(entries, line.SelectedQuantity); err != nil {
		return err
	}

	now := time.Now().UTC()
	today := now.Truncate(24 * time.Hour)
	details := make([]*BatchDetail, 0, len(entries))
	for _, e := range entries {
		packs := e.NoOfPacks
		if packs <= 0 {
			packs = 1
		}
		qtyPerPack := e.Quantity.Div(types.NewQuantity(float64(packs))).Round(3)
		if e.QtyPerPack != nil {
			qtyPerPack = *e.QtyPerPack
		}
		details = append(details, &BatchDetail{
			ID:                       id.New(),
			LineSelectionID:          line.ID,
			BatchNumber:              e.BatchNumber,
			Quantity:                 e.Quantity,
			ManufacturerSerialNumber: e.ManufacturerSerialNumber,
			InternalSerialNumber:     e.InternalSerialNumber,
			ExpiryDate:               e.ExpiryDate,
			AdminDate:                &today,
			GRNNumber:                e.GRNNumber,
			QtyPerPack:               &qtyPerPack,
			NoOfPacks:                packs,
			CreatedAt:                now,
		})
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.ReplaceBatchDetails(ctx, line.ID, details)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "batch details set",
		"line_id", line.ID,
		"item_code", line.ItemCode,
		"entries", len(details))
	return nil
}

// SetSerialDetails replaces the per-unit serial breakdown of a serial-managed line.
func (s *Service) SetSerialDetails(ctx context.Context, lineID id.ID, entries []SerialDetailInput) error {
	line, _, err := s.loadDraftLine(ctx, lineID)
	if err != nil {
		return err
	}
	if line.InventoryType != sap.InventoryTypeSerial {
		return apperror.NewValidation("line is not serial-managed").
			WithDetail("inventoryType", line.InventoryType)
	}
	if err := validateSerialEntries(entries, line.SelectedQuantity); err != nil {
		return err
	}

	now := time.Now().UTC()
	today := now.Truncate(24 * time.Hour)
	details := make([]*SerialDetail, 0, len(entries))
	for _, e := range entries {
		serial := e.SerialNumber
		if serial == "" {
			serial = e.InternalSerialNumber
		}
		details = append(details, &SerialDetail{
			ID:                       id.New(),
			LineSelectionID:          line.ID,
			SerialNumber:             serial,
			ManufacturerSerialNumber: e.ManufacturerSerialNumber,
			InternalSerialNumber:     e.InternalSerialNumber,
			ExpiryDate:               e.ExpiryDate,
			AdminDate:                &today,
			GRNNumber:                e.GRNNumber,
			CreatedAt:                now,
		})
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.ReplaceSerialDetails(ctx, line.ID, details)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "serial details set",
		"line_id", line.ID,
		"item_code", line.ItemCode,
		"entries", len(details))
	return nil
}

// SetPackDetails splits a non-managed line into packs of even quantity.
// The line quantity must divide evenly by the pack count.
func (s *Service) SetPackDetails(ctx context.Context, lineID id.ID, packs int, expiryDate *time.Time) error {
	line, _, err := s.loadDraftLine(ctx, lineID)
	if err != nil {
		return err
	}
	switch line.InventoryType {
	case sap.InventoryTypeStandard, sap.InventoryTypeQuantityBased:
	default:
		return apperror.NewValidation("line is batch- or serial-managed; use the matching detail entry").
			WithDetail("inventoryType", line.InventoryType)
	}
	if packs < 1 {
		return apperror.NewValidation("number of packs must be at least 1").
			WithDetail("field", "noOfPacks")
	}
	if !line.SelectedQuantity.IsPositive() {
		return apperror.NewValidation("quantity must be positive")
	}
	if !types.DividesEvenly(line.SelectedQuantity, packs) {
		return apperror.NewValidation(
			fmt.Sprintf("quantity %s does not divide evenly into %d packs", line.SelectedQuantity, packs))
	}

	now := time.Now().UTC()
	today := now.Truncate(24 * time.Hour)
	qtyPerPack := line.SelectedQuantity.Div(types.NewQuantity(float64(packs))).Round(3)

	details := make([]*PackDetail, 0, packs)
	for i := 1; i <= packs; i++ {
		details = append(details, &PackDetail{
			ID:              id.New(),
			LineSelectionID: line.ID,
			Quantity:        qtyPerPack,
			QtyPerPack:      qtyPerPack,
			NoOfPacks:       packs,
			PackNumber:      i,
			ExpiryDate:      expiryDate,
			AdminDate:       &today,
			GRNNumber:       labels.PackGRNNumber(line.ID.String(), i),
			CreatedAt:       now,
		})
	}

	line.QtyPerPack = &qtyPerPack
	line.NoOfPacks = packs

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.ReplacePackDetails(ctx, line.ID, details); err != nil {
			return err
		}
		return s.repo.UpdateLine(ctx, line)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "pack details set",
		"line_id", line.ID,
		"item_code", line.ItemCode,
		"packs", packs)
	return nil
}

// CompleteLine marks a line ready for QC submission. The detail rows must
// already reconcile with the selected quantity for the line's management mode.
func (s *Service) CompleteLine(ctx context.Context, lineID id.ID) error {
	line, _, err := s.loadDraftLine(ctx, lineID)
	if err != nil {
		return err
	}
	if line.WarehouseCode == "" {
		return apperror.NewValidation("warehouse is required before completing the line").
			WithDetail("field", "warehouseCode")
	}

	switch line.InventoryType {
	case sap.InventoryTypeBatch:
		details, err := s.repo.GetBatchDetails(ctx, line.ID)
		if err != nil {
			return err
		}
		total := types.ZeroQuantity()
		for _, d := range details {
			total = total.Add(d.Quantity)
		}
		if len(details) == 0 || !types.QuantitiesReconcile(line.SelectedQuantity, total) {
			return apperror.NewQuantityMismatch(line.SelectedQuantity.String(), total.String())
		}
	case sap.InventoryTypeSerial:
		details, err := s.repo.GetSerialDetails(ctx, line.ID)
		if err != nil {
			return err
		}
		if !types.IsWholeQuantity(line.SelectedQuantity) || len(details) != int(line.SelectedQuantity.IntPart()) {
			return apperror.NewQuantityMismatch(
				fmt.Sprintf("%s serials", line.SelectedQuantity),
				fmt.Sprintf("%d serials", len(details)))
		}
	}

	line.IsComplete = true
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.UpdateLine(ctx, line)
	})
}

// ManualItemInput adds an item outside the PO-derived flow. The management
// mode is always re-validated against the item master; allocations must be
// supplied up front for batch- and serial-managed items.
type ManualItemInput struct {
	ItemCode        string              `json:"itemCode"`
	ItemDescription string              `json:"itemDescription,omitempty"`
	Quantity        types.Quantity      `json:"quantity"`
	UnitOfMeasure   string              `json:"uom,omitempty"`
	WarehouseCode   string              `json:"warehouseCode,omitempty"`
	BinLocation     string              `json:"binLocation,omitempty"`
	BatchEntries    []BatchDetailInput  `json:"batchEntries,omitempty"`
	SerialEntries   []SerialDetailInput `json:"serialEntries,omitempty"`
}

// AddManualItem appends a manual line to a PO link. The authoritative
// inventory type comes from the item master, never from the caller; a
// duplicate item code within the link is rejected.
func (s *Service) AddManualItem(ctx context.Context, poLinkID id.ID, in ManualItemInput) (*LineSelection, error) {
	if in.ItemCode == "" {
		return nil, apperror.NewValidation("item code is required").
			WithDetail("field", "itemCode")
	}
	if !in.Quantity.IsPositive() {
		return nil, apperror.NewValidation("quantity must be positive").
			WithDetail("field", "quantity")
	}

	link, err := s.repo.GetPOLink(ctx, poLinkID)
	if err != nil {
		return nil, err
	}
	b, err := s.loadOwnedBatch(ctx, link.BatchID)
	if err != nil {
		return nil, err
	}
	if err := b.guardTransition("add_manual_item", StatusDraft); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetLineByItem(ctx, link.ID, in.ItemCode)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.NewDuplicate("line selection", "itemCode", in.ItemCode)
	}

	validation, err := s.query.ValidateItem(ctx, in.ItemCode)
	if err != nil {
		return nil, fmt.Errorf("validate item %s: %w", in.ItemCode, err)
	}

	var batchDetails []*BatchDetail
	var serialDetails []*SerialDetail
	now := time.Now().UTC()
	today := now.Truncate(24 * time.Hour)

	switch {
	case validation.BatchManaged:
		if err := validateBatchEntries(in.BatchEntries, in.Quantity); err != nil {
			return nil, err
		}
	case validation.SerialManaged:
		if err := validateSerialEntries(in.SerialEntries, in.Quantity); err != nil {
			return nil, err
		}
	}

	line := &LineSelection{
		ID:               id.New(),
		POLinkID:         link.ID,
		Origin:           OriginManual,
		ItemCode:         in.ItemCode,
		ItemDescription:  in.ItemDescription,
		OrderedQuantity:  in.Quantity,
		OpenQuantity:     in.Quantity,
		SelectedQuantity: in.Quantity,
		WarehouseCode:    in.WarehouseCode,
		BinLocation:      in.BinLocation,
		UnitPrice:        types.ZeroMoney(),
		UnitOfMeasure:    in.UnitOfMeasure,
		LineStatus:       "manual",
		InventoryType:    validation.InventoryType,
		QCStatus:         QCPending,
		NoOfPacks:        1,
		CreatedAt:        now,
	}
	if line.ItemDescription == "" {
		line.ItemDescription = validation.ItemName
	}

	for _, e := range in.BatchEntries {
		if !validation.BatchManaged {
			break
		}
		packs := e.NoOfPacks
		if packs <= 0 {
			packs = 1
		}
		qtyPerPack := e.Quantity.Div(types.NewQuantity(float64(packs))).Round(3)
		batchDetails = append(batchDetails, &BatchDetail{
			ID:                       id.New(),
			LineSelectionID:          line.ID,
			BatchNumber:              e.BatchNumber,
			Quantity:                 e.Quantity,
			ManufacturerSerialNumber: e.ManufacturerSerialNumber,
			InternalSerialNumber:     e.InternalSerialNumber,
			ExpiryDate:               e.ExpiryDate,
			AdminDate:                &today,
			QtyPerPack:               &qtyPerPack,
			NoOfPacks:                packs,
			CreatedAt:                now,
		})
	}
	for _, e := range in.SerialEntries {
		if !validation.SerialManaged {
			break
		}
		serial := e.SerialNumber
		if serial == "" {
			serial = e.InternalSerialNumber
		}
		serialDetails = append(serialDetails, &SerialDetail{
			ID:                       id.New(),
			LineSelectionID:          line.ID,
			SerialNumber:             serial,
			ManufacturerSerialNumber: e.ManufacturerSerialNumber,
			InternalSerialNumber:     e.InternalSerialNumber,
			ExpiryDate:               e.ExpiryDate,
			AdminDate:                &today,
			CreatedAt:                now,
		})
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateLine(ctx, line); err != nil {
			return err
		}
		if len(batchDetails) > 0 {
			if err := s.repo.ReplaceBatchDetails(ctx, line.ID, batchDetails); err != nil {
				return err
			}
		}
		if len(serialDetails) > 0 {
			if err := s.repo.ReplaceSerialDetails(ctx, line.ID, serialDetails); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "manual item added",
		"batch_id", b.ID,
		"po_doc_num", link.PODocNum,
		"item_code", in.ItemCode,
		"inventory_type", validation.InventoryType)
	return line, nil
}
