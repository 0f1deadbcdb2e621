package sapb1

import (
	"context"
	"encoding/json"
	"net/http"

	"grnflow/internal/domain/sap"
	"grnflow/pkg/logger"
)

// PosterService implements sap.DocumentPoster. Posting is never mocked:
// a document either exists in the ERP or the caller gets an error.
type PosterService struct {
	client *Client
}

var _ sap.DocumentPoster = (*PosterService)(nil)

// NewPosterService creates the document poster.
func NewPosterService(client *Client) *PosterService {
	return &PosterService{client: client}
}

// createdDocument is the Service Layer response to a document POST.
// DocNum may come back as a number or a string depending on the series.
type createdDocument struct {
	DocEntry int64       `json:"DocEntry"`
	DocNum   json.Number `json:"DocNum"`
}

func (p *PosterService) CreatePurchaseDeliveryNote(ctx context.Context, note *sap.DeliveryNote) (*sap.PostResult, error) {
	var created createdDocument
	if err := p.client.do(ctx, http.MethodPost, "/PurchaseDeliveryNotes", nil, note, &created); err != nil {
		return nil, err
	}

	logger.Info(ctx, "purchase delivery note created",
		"doc_entry", created.DocEntry,
		"doc_num", created.DocNum.String(),
		"card_code", note.CardCode)

	return &sap.PostResult{
		DocEntry: created.DocEntry,
		DocNum:   created.DocNum.String(),
	}, nil
}
