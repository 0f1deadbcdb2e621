package sap

// BaseTypePurchaseOrder is the Service Layer object type for purchase orders,
// used as the base-document reference on delivery note lines.
const BaseTypePurchaseOrder = 22

// DeliveryNote is the PurchaseDeliveryNotes payload. Field names must match
// the Service Layer schema exactly.
type DeliveryNote struct {
	CardCode      string         `json:"CardCode"`
	DocDate       string         `json:"DocDate"`
	DocDueDate    string         `json:"DocDueDate"`
	Comments      string         `json:"Comments,omitempty"`
	NumAtCard     string         `json:"NumAtCard,omitempty"`
	BranchID      int            `json:"BPL_IDAssignedToInvoice,omitempty"`
	DocumentLines []DocumentLine `json:"DocumentLines"`
}

// DocumentLine is one line of a delivery note. Base references are present
// only for PO-sourced lines; manual lines carry item and quantity alone.
type DocumentLine struct {
	BaseType       *int            `json:"BaseType,omitempty"`
	BaseEntry      *int64          `json:"BaseEntry,omitempty"`
	BaseLine       *int            `json:"BaseLine,omitempty"`
	ItemCode       string          `json:"ItemCode"`
	Quantity       float64         `json:"Quantity"`
	WarehouseCode  string          `json:"WarehouseCode"`
	BinAllocations []BinAllocation `json:"BinAllocations,omitempty"`
	BatchNumbers   []BatchEntry    `json:"BatchNumbers,omitempty"`
	SerialNumbers  []SerialEntry   `json:"SerialNumbers,omitempty"`
}

// BinAllocation assigns the line quantity to a bin.
type BinAllocation struct {
	BinAbsEntry string  `json:"BinAbsEntry"`
	Quantity    float64 `json:"Quantity"`
}

// BatchEntry allocates part of a line quantity to one batch lot.
// BaseLineNumber is the zero-based position of the parent line within
// DocumentLines, shared with SerialEntry.
type BatchEntry struct {
	BatchNumber              string  `json:"BatchNumber"`
	Quantity                 float64 `json:"Quantity"`
	BaseLineNumber           int     `json:"BaseLineNumber"`
	ExpiryDate               string  `json:"ExpiryDate,omitempty"`
	ManufacturerSerialNumber string  `json:"ManufacturerSerialNumber,omitempty"`
	InternalSerialNumber     string  `json:"InternalSerialNumber,omitempty"`
}

// SerialEntry records one serialized unit. Quantity is always 1.
type SerialEntry struct {
	InternalSerialNumber     string  `json:"InternalSerialNumber"`
	Quantity                 float64 `json:"Quantity"`
	BaseLineNumber           int     `json:"BaseLineNumber"`
	ManufacturerSerialNumber string  `json:"ManufacturerSerialNumber,omitempty"`
	ExpiryDate               string  `json:"ExpiryDate,omitempty"`
}

// PostResult identifies the document created by the Service Layer.
type PostResult struct {
	DocEntry int64  `json:"docEntry"`
	DocNum   string `json:"docNum"`
}
