package grn

import (
	"context"
	"strings"
	"time"

	"grnflow/internal/core/apperror"
	"grnflow/internal/core/id"
	"grnflow/internal/core/types"
	"grnflow/internal/domain/sap"
	"grnflow/pkg/labels"
)

// Label is one printable QR label for a received pack or unit.
type Label struct {
	Sequence     int            `json:"sequence"`
	Total        int            `json:"total"`
	PackText     string         `json:"packText"`
	PONumber     string         `json:"poNumber"`
	ItemCode     string         `json:"itemCode"`
	ItemName     string         `json:"itemName"`
	BatchNumber  string         `json:"batchNumber,omitempty"`
	SerialNumber string         `json:"serialNumber,omitempty"`
	Quantity     types.Quantity `json:"quantity"`
	GRNDate      string         `json:"grnDate"`
	GRNNumber    string         `json:"grnNumber"`
	ExpiryDate   string         `json:"expiryDate"`
	QRData       string         `json:"qrData"`
}

// GenerateLabels builds the printable label set for a line selection,
// one label per pack. The label shape follows the line's management mode.
func (s *Service) GenerateLabels(ctx context.Context, lineID id.ID) ([]Label, error) {
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

	docNumber := b.BatchNumber
	grnDate := b.CreatedAt.Format("2006-01-02")

	switch line.InventoryType {
	case sap.InventoryTypeSerial:
		details, err := s.repo.GetSerialDetails(ctx, line.ID)
		if err != nil {
			return nil, err
		}
		return buildSerialLabels(b.CreatedAt, docNumber, grnDate, link.PODocNum, line, details)
	case sap.InventoryTypeBatch:
		details, err := s.repo.GetBatchDetails(ctx, line.ID)
		if err != nil {
			return nil, err
		}
		return buildBatchLabels(b.CreatedAt, docNumber, grnDate, link.PODocNum, line, details), nil
	default:
		details, err := s.repo.GetPackDetails(ctx, line.ID)
		if err != nil {
			return nil, err
		}
		return buildPackLabels(b.CreatedAt, docNumber, grnDate, link.PODocNum, line, details), nil
	}
}

// buildSerialLabels groups serial units into packs. The serial count must
// divide evenly across the pack count recorded on the line.
func buildSerialLabels(createdAt time.Time, docNumber, grnDate, poNum string, line *LineSelection, details []*SerialDetail) ([]Label, error) {
	total := len(details)
	if total == 0 {
		return nil, apperror.NewValidation("no serial numbers found for this item")
	}

	packs := line.NoOfPacks
	if packs <= 0 {
		packs = total
	}
	if total%packs != 0 {
		return nil, apperror.NewValidation("serial count does not divide evenly into packs").
			WithDetail("serials", total).
			WithDetail("packs", packs)
	}
	perPack := total / packs

	out := make([]Label, 0, packs)
	for p := 1; p <= packs; p++ {
		group := details[(p-1)*perPack : p*perPack]
		ref := group[0]

		serials := make([]string, len(group))
		for i, d := range group {
			serials[i] = d.SerialNumber
		}
		serialList := strings.Join(serials, ", ")

		grnNumber := ref.GRNNumber
		if grnNumber == "" {
			grnNumber = docNumber
		}

		payload := labels.Payload{
			ID:      labels.LabelID(createdAt, p),
			PO:      poNum,
			Item:    line.ItemCode,
			Serial:  serialList,
			Qty:     1,
			Pack:    labels.PackText(p, packs),
			GRNDate: grnDate,
			ExpDate: labels.FormatDate(ref.ExpiryDate),
		}

		out = append(out, Label{
			Sequence:     p,
			Total:        packs,
			PackText:     payload.Pack,
			PONumber:     poNum,
			ItemCode:     line.ItemCode,
			ItemName:     line.ItemDescription,
			SerialNumber: serialList,
			Quantity:     types.NewQuantity(float64(perPack)),
			GRNDate:      grnDate,
			GRNNumber:    grnNumber,
			ExpiryDate:   payload.ExpDate,
			QRData:       payload.Encode(),
		})
	}
	return out, nil
}

// buildBatchLabels emits one label per pack of each batch lot.
func buildBatchLabels(createdAt time.Time, docNumber, grnDate, poNum string, line *LineSelection, details []*BatchDetail) []Label {
	var out []Label
	seq := 1
	for _, d := range details {
		packs := d.NoOfPacks
		if packs <= 0 {
			packs = 1
		}
		grnNumber := d.GRNNumber
		if grnNumber == "" {
			grnNumber = docNumber
		}

		for p := 1; p <= packs; p++ {
			payload := labels.Payload{
				ID:      labels.LabelID(createdAt, seq),
				PO:      poNum,
				Item:    line.ItemCode,
				Batch:   d.BatchNumber,
				Qty:     1,
				Pack:    labels.PackText(p, packs),
				GRNDate: grnDate,
				ExpDate: labels.FormatDate(d.ExpiryDate),
			}

			out = append(out, Label{
				Sequence:    seq,
				Total:       packs,
				PackText:    payload.Pack,
				PONumber:    poNum,
				ItemCode:    line.ItemCode,
				ItemName:    line.ItemDescription,
				BatchNumber: d.BatchNumber,
				Quantity:    d.Quantity,
				GRNDate:     grnDate,
				GRNNumber:   grnNumber,
				ExpiryDate:  payload.ExpDate,
				QRData:      payload.Encode(),
			})
			seq++
		}
	}
	return out
}

// buildPackLabels emits one label per pack detail row; a line with no rows
// gets a single whole-quantity label.
func buildPackLabels(createdAt time.Time, docNumber, grnDate, poNum string, line *LineSelection, details []*PackDetail) []Label {
	if len(details) == 0 {
		payload := labels.Payload{
			ID:      labels.LabelID(createdAt, 1),
			PO:      poNum,
			Item:    line.ItemCode,
			Qty:     1,
			Pack:    labels.PackText(1, 1),
			GRNDate: grnDate,
			ExpDate: labels.FormatDate(line.ExpiryDate),
		}
		return []Label{{
			Sequence:   1,
			Total:      1,
			PackText:   payload.Pack,
			PONumber:   poNum,
			ItemCode:   line.ItemCode,
			ItemName:   line.ItemDescription,
			Quantity:   line.SelectedQuantity,
			GRNDate:    grnDate,
			GRNNumber:  docNumber,
			ExpiryDate: payload.ExpDate,
			QRData:     payload.Encode(),
		}}
	}

	out := make([]Label, 0, len(details))
	for _, d := range details {
		grnNumber := d.GRNNumber
		if grnNumber == "" {
			grnNumber = docNumber
		}
		payload := labels.Payload{
			ID:      labels.LabelID(createdAt, d.PackNumber),
			PO:      poNum,
			Item:    line.ItemCode,
			Qty:     1,
			Pack:    labels.PackText(d.PackNumber, d.NoOfPacks),
			GRNDate: grnDate,
			ExpDate: labels.FormatDate(d.ExpiryDate),
		}
		out = append(out, Label{
			Sequence:   d.PackNumber,
			Total:      d.NoOfPacks,
			PackText:   payload.Pack,
			PONumber:   poNum,
			ItemCode:   line.ItemCode,
			ItemName:   line.ItemDescription,
			Quantity:   d.Quantity,
			GRNDate:    grnDate,
			GRNNumber:  grnNumber,
			ExpiryDate: payload.ExpDate,
			QRData:     payload.Encode(),
		})
	}
	return out
}
