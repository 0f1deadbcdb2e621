package sapb1

import (
	"github.com/shopspring/decimal"

	"grnflow/internal/core/types"
	"grnflow/internal/domain/sap"
)

// Canned development data, served only when mock mode is enabled and the ERP
// cannot be reached. Read paths only; posting never uses these.

func mockBusinessPartners() []sap.BusinessPartner {
	return []sap.BusinessPartner{
		{CardCode: "V10001", CardName: "Acme Components Ltd"},
		{CardCode: "V10002", CardName: "Northwind Raw Materials"},
		{CardCode: "V10003", CardName: "Globex Packaging Co"},
	}
}

func mockDocumentSeries() []sap.DocumentSeries {
	return []sap.DocumentSeries{
		{SeriesID: 71, SeriesName: "PO-Local"},
		{SeriesID: 72, SeriesName: "PO-Import"},
	}
}

func mockOpenPOs(cardCode string) []sap.OpenPO {
	if cardCode == "" {
		cardCode = "V10001"
	}
	return []sap.OpenPO{
		{
			DocEntry:    9001,
			DocNum:      "450001",
			CardCode:    cardCode,
			CardName:    "Acme Components Ltd",
			PostingDate: "2026-08-20",
			DocTotal:    types.Money(decimal.NewFromInt(15000)),
		},
		{
			DocEntry:    9002,
			DocNum:      "450002",
			CardCode:    cardCode,
			CardName:    "Acme Components Ltd",
			PostingDate: "2026-08-24",
			DocTotal:    types.Money(decimal.NewFromInt(8200)),
		},
	}
}

func mockOpenLines(poDocEntries []int64) []sap.OpenLine {
	var lines []sap.OpenLine
	for _, entry := range poDocEntries {
		lines = append(lines,
			sap.OpenLine{
				PODocEntry:      entry,
				LineNum:         0,
				ItemCode:        "ITM-0001",
				ItemDescription: "Widget, standard",
				Quantity:        types.MustQuantity("100"),
				OpenQuantity:    types.MustQuantity("100"),
				WarehouseCode:   "7000-FG",
				UnitPrice:       types.Money(decimal.NewFromInt(25)),
				LineStatus:      "bost_Open",
			},
			sap.OpenLine{
				PODocEntry:      entry,
				LineNum:         1,
				ItemCode:        "ITM-0002",
				ItemDescription: "Widget, batch-tracked",
				Quantity:        types.MustQuantity("60"),
				OpenQuantity:    types.MustQuantity("40"),
				WarehouseCode:   "7000-FG",
				UnitPrice:       types.Money(decimal.NewFromInt(40)),
				LineStatus:      "bost_Open",
			},
		)
	}
	return lines
}
