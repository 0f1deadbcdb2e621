package sapb1

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"grnflow/internal/core/apperror"
	"grnflow/internal/core/types"
	"grnflow/internal/domain/sap"
	"grnflow/pkg/logger"
)

// QueryService implements sap.QueryFacade over the Service Layer.
// When mock data is enabled, directory-style reads fall back to canned data
// if the ERP cannot be reached; ValidateItem never does.
type QueryService struct {
	client      *Client
	mockEnabled bool
}

var _ sap.QueryFacade = (*QueryService)(nil)

// NewQueryService creates the read facade. mockEnabled turns on the
// development fallback for unreachable-ERP reads.
func NewQueryService(client *Client, mockEnabled bool) *QueryService {
	return &QueryService{client: client, mockEnabled: mockEnabled}
}

// listEnvelope is the OData collection wrapper: {"value": [...]}.
type listEnvelope[T any] struct {
	Value []T `json:"value"`
}

// sqlRow is a raw SQLQueries result row. Semantic-layer queries wrap their
// column names in literal single quotes ("'DocEntry'"), plain queries do not,
// so every lookup tries both spellings for each candidate key.
type sqlRow map[string]any

func (r sqlRow) lookup(keys ...string) (any, bool) {
	for _, key := range keys {
		if v, ok := r[key]; ok {
			return v, true
		}
		if v, ok := r["'"+key+"'"]; ok {
			return v, true
		}
	}
	return nil, false
}

func (r sqlRow) str(keys ...string) string {
	v, ok := r.lookup(keys...)
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func (r sqlRow) int64(keys ...string) int64 {
	v, ok := r.lookup(keys...)
	if !ok || v == nil {
		return 0
	}
	switch t := v.(type) {
	case float64:
		return int64(t)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func (r sqlRow) decimal(keys ...string) decimal.Decimal {
	v, ok := r.lookup(keys...)
	if !ok || v == nil {
		return decimal.Zero
	}
	switch t := v.(type) {
	case float64:
		return decimal.NewFromFloat(t)
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

// sqlQuery runs a saved Service Layer SQL query and returns its raw rows.
// paramList uses the Service Layer convention: "key='value'&key2='value2'".
func (s *QueryService) sqlQuery(ctx context.Context, name, paramList string) ([]sqlRow, error) {
	body := map[string]string{}
	if paramList != "" {
		body["ParamList"] = paramList
	}
	var env listEnvelope[sqlRow]
	path := fmt.Sprintf("/SQLQueries('%s')/List", name)
	if err := s.client.do(ctx, http.MethodPost, path, nil, body, &env); err != nil {
		return nil, err
	}
	return env.Value, nil
}

// mockable reports whether the error should trigger the mock fallback.
func (s *QueryService) mockable(err error) bool {
	if !s.mockEnabled {
		return false
	}
	appErr, ok := apperror.AsAppError(err)
	if !ok {
		return false
	}
	return appErr.Code == apperror.CodeSAPUnreachable || appErr.Code == apperror.CodeSAPAuthFailed
}

func (s *QueryService) BusinessPartners(ctx context.Context) ([]sap.BusinessPartner, error) {
	query := url.Values{}
	query.Set("$filter", "Valid eq 'tYES'")
	query.Set("$select", "CardCode,CardName,Valid")

	var env listEnvelope[sap.BusinessPartner]
	if err := s.client.do(ctx, http.MethodGet, "/BusinessPartners", query, nil, &env); err != nil {
		if s.mockable(err) {
			logger.Warn(ctx, "erp unreachable, serving mock business partners", "error", err)
			return mockBusinessPartners(), nil
		}
		return nil, err
	}
	return env.Value, nil
}

func (s *QueryService) DocumentSeries(ctx context.Context) ([]sap.DocumentSeries, error) {
	rows, err := s.sqlQuery(ctx, "Get_PO_Series", "")
	if err != nil {
		if s.mockable(err) {
			logger.Warn(ctx, "erp unreachable, serving mock document series", "error", err)
			return mockDocumentSeries(), nil
		}
		return nil, err
	}

	series := make([]sap.DocumentSeries, 0, len(rows))
	for _, row := range rows {
		series = append(series, sap.DocumentSeries{
			SeriesID:   row.int64("Series", "SeriesID"),
			SeriesName: row.str("SeriesName", "Series Name"),
		})
	}
	return series, nil
}

func (s *QueryService) CardCodesBySeries(ctx context.Context, seriesID int64) ([]sap.BusinessPartner, error) {
	rows, err := s.sqlQuery(ctx, "Get_CardCodes_By_Series", fmt.Sprintf("SeriesID='%d'", seriesID))
	if err != nil {
		if s.mockable(err) {
			logger.Warn(ctx, "erp unreachable, serving mock card codes", "error", err)
			return mockBusinessPartners(), nil
		}
		return nil, err
	}

	partners := make([]sap.BusinessPartner, 0, len(rows))
	for _, row := range rows {
		partners = append(partners, sap.BusinessPartner{
			CardCode: row.str("Vendor Code", "CardCode"),
			CardName: row.str("Vendor Nam", "CardName"),
		})
	}
	return partners, nil
}

func (s *QueryService) OpenPOsBySeries(ctx context.Context, seriesID int64, cardCode string) ([]sap.OpenPO, error) {
	paramList := fmt.Sprintf("SeriesID='%d'&cardCode='%s'", seriesID, cardCode)
	rows, err := s.sqlQuery(ctx, "Get_Multi_Open_PO_DocNum", paramList)
	if err != nil {
		if s.mockable(err) {
			logger.Warn(ctx, "erp unreachable, serving mock purchase orders", "error", err)
			return mockOpenPOs(cardCode), nil
		}
		return nil, err
	}

	pos := make([]sap.OpenPO, 0, len(rows))
	for _, row := range rows {
		pos = append(pos, sap.OpenPO{
			DocEntry:    row.int64("DocEntry"),
			DocNum:      row.str("PO_Document_Number", "DocNum"),
			CardCode:    row.str("Vendor Code", "CardCode"),
			CardName:    row.str("Vendor Nam", "CardName"),
			PostingDate: row.str("Posting Date", "DocDate"),
			DocTotal:    row.decimal("DocTotal", "Doc Total"),
		})
	}
	return pos, nil
}

func (s *QueryService) OpenLines(ctx context.Context, poDocEntries []int64) ([]sap.OpenLine, error) {
	if len(poDocEntries) == 0 {
		return nil, nil
	}

	entries := make([]string, len(poDocEntries))
	for i, e := range poDocEntries {
		entries[i] = strconv.FormatInt(e, 10)
	}
	paramList := fmt.Sprintf("docEntries='%s'", strings.Join(entries, ","))

	rows, err := s.sqlQuery(ctx, "Get_Open_PO_Line_Items", paramList)
	if err != nil {
		if s.mockable(err) {
			logger.Warn(ctx, "erp unreachable, serving mock open lines", "error", err)
			return mockOpenLines(poDocEntries), nil
		}
		return nil, err
	}

	lines := make([]sap.OpenLine, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, sap.OpenLine{
			PODocEntry:      row.int64("DocEntry"),
			LineNum:         int(row.int64("LineNum")),
			ItemCode:        row.str("ItemCode", "Item Code"),
			ItemDescription: row.str("Dscription", "ItemDescription", "Item Description"),
			Quantity:        types.Quantity(row.decimal("Quantity")),
			OpenQuantity:    types.Quantity(row.decimal("OpenQty", "Open Quantity")),
			WarehouseCode:   row.str("WhsCode", "WarehouseCode"),
			UnitPrice:       types.Money(row.decimal("Price", "UnitPrice")),
			LineStatus:      row.str("LineStatus", "Line Status"),
		})
	}
	return lines, nil
}

// itemDetails is the Items('<code>') projection used by ValidateItem.
type itemDetails struct {
	ItemCode     string `json:"ItemCode"`
	ItemName     string `json:"ItemName"`
	InventoryUOM string `json:"InventoryUOM"`
}

func (s *QueryService) ValidateItem(ctx context.Context, itemCode string) (*sap.ItemValidation, error) {
	rows, err := s.sqlQuery(ctx, "ItemCode_Batch_Serial_Val", fmt.Sprintf("itemCode='%s'", itemCode))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperror.NewNotFound("item", itemCode)
	}

	row := rows[0]
	batchManaged := strings.EqualFold(row.str("BatchNum"), "Y")
	serialManaged := strings.EqualFold(row.str("SerialNum"), "Y")
	method := row.str("NonBatch_NonSerialMethod")

	validation := &sap.ItemValidation{
		ItemCode:         itemCode,
		BatchManaged:     batchManaged,
		SerialManaged:    serialManaged,
		ManagementMethod: method,
		InventoryType:    sap.ResolveInventoryType(batchManaged, serialManaged, method),
	}

	// Item master details are cosmetic; a lookup failure must not block
	// validation of the management flags.
	query := url.Values{}
	query.Set("$select", "ItemCode,ItemName,InventoryUOM,PurchaseUnit,SalesUnit,QuantityOnStock")
	var details itemDetails
	path := fmt.Sprintf("/Items('%s')", url.PathEscape(itemCode))
	if err := s.client.do(ctx, http.MethodGet, path, query, nil, &details); err == nil {
		validation.ItemName = details.ItemName
		validation.UnitOfMeasure = details.InventoryUOM
	} else if apperror.IsNotFound(err) {
		return nil, apperror.NewNotFound("item", itemCode)
	} else {
		logger.Warn(ctx, "item details lookup failed", "item_code", itemCode, "error", err)
	}

	return validation, nil
}
