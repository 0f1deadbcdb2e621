package sap

import "context"

// QueryFacade provides the read-only ERP lookups the workflow depends on.
// Implementations may serve configured mock data when the ERP is unreachable;
// correctness-critical callers must not rely on that fallback.
type QueryFacade interface {
	// BusinessPartners returns all valid suppliers/customers.
	BusinessPartners(ctx context.Context) ([]BusinessPartner, error)

	// DocumentSeries returns the purchase-order numbering series list.
	DocumentSeries(ctx context.Context) ([]DocumentSeries, error)

	// CardCodesBySeries returns the partners that have documents in a series.
	CardCodesBySeries(ctx context.Context, seriesID int64) ([]BusinessPartner, error)

	// OpenPOsBySeries returns open purchase orders for a series and card code.
	OpenPOsBySeries(ctx context.Context, seriesID int64, cardCode string) ([]OpenPO, error)

	// OpenLines returns open line items across the given PO document entries.
	OpenLines(ctx context.Context, poDocEntries []int64) ([]OpenLine, error)

	// ValidateItem returns the authoritative management classification for an
	// item code, or a not-found error.
	ValidateItem(ctx context.Context, itemCode string) (*ItemValidation, error)
}

// DocumentPoster creates purchase delivery notes in the ERP.
// Posting never falls back to mock data.
type DocumentPoster interface {
	CreatePurchaseDeliveryNote(ctx context.Context, note *DeliveryNote) (*PostResult, error)
}
