// Package sap defines normalized SAP Business One record types and the
// facade contracts the GRN workflow depends on. Raw Service Layer responses
// never cross this boundary; the infrastructure adapter normalizes them first.
package sap

import (
	"grnflow/internal/core/types"
)

// BusinessPartner is a normalized supplier/customer directory entry.
type BusinessPartner struct {
	CardCode string `json:"cardCode"`
	CardName string `json:"cardName"`
}

// DocumentSeries is a purchase-order numbering series.
type DocumentSeries struct {
	SeriesID   int64  `json:"seriesId"`
	SeriesName string `json:"seriesName"`
}

// OpenPO is an open purchase order header.
// PostingDate is kept raw (the source emits both YYYYMMDD and ISO forms);
// the workflow parses it tolerantly.
type OpenPO struct {
	DocEntry    int64       `json:"docEntry"`
	DocNum      string      `json:"docNum"`
	CardCode    string      `json:"cardCode"`
	CardName    string      `json:"cardName"`
	PostingDate string      `json:"postingDate,omitempty"`
	DocTotal    types.Money `json:"docTotal"`
}

// OpenLine is an open purchase order line.
type OpenLine struct {
	PODocEntry      int64          `json:"poDocEntry"`
	LineNum         int            `json:"lineNum"`
	ItemCode        string         `json:"itemCode"`
	ItemDescription string         `json:"itemDescription"`
	Quantity        types.Quantity `json:"quantity"`
	OpenQuantity    types.Quantity `json:"openQuantity"`
	WarehouseCode   string         `json:"warehouseCode"`
	UnitPrice       types.Money    `json:"unitPrice"`
	LineStatus      string         `json:"lineStatus"`
}

// Inventory management classifications reported by the item master.
const (
	InventoryTypeStandard      = "standard"
	InventoryTypeBatch         = "batch"
	InventoryTypeSerial        = "serial"
	InventoryTypeQuantityBased = "quantity_based"
)

// ItemValidation is the authoritative item-master answer for an item code.
// Serial takes precedence over batch; management method 'R' without either
// flag means quantity-based.
type ItemValidation struct {
	ItemCode         string `json:"itemCode"`
	ItemName         string `json:"itemName,omitempty"`
	UnitOfMeasure    string `json:"unitOfMeasure,omitempty"`
	BatchManaged     bool   `json:"batchManaged"`
	SerialManaged    bool   `json:"serialManaged"`
	ManagementMethod string `json:"managementMethod,omitempty"`
	InventoryType    string `json:"inventoryType"`
}

// ResolveInventoryType derives the inventory type from the raw item-master flags.
func ResolveInventoryType(batchManaged, serialManaged bool, method string) string {
	switch {
	case serialManaged:
		return InventoryTypeSerial
	case batchManaged:
		return InventoryTypeBatch
	case method == "R":
		return InventoryTypeQuantityBased
	default:
		return InventoryTypeStandard
	}
}
