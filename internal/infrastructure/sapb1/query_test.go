package sapb1

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"grnflow/internal/core/apperror"
)

func newQueryEnv(t *testing.T, handle func(w http.ResponseWriter, r *http.Request, session string)) *QueryService {
	srv := &sapServer{t: t, handle: handle}
	_, client := srv.start()
	return NewQueryService(client, false)
}

func TestOpenPOsNormalizeQuotedKeys(t *testing.T) {
	// Semantic-layer queries return column names wrapped in literal single
	// quotes; a reconfigured query may return them bare. Both rows below must
	// normalize to the same shape.
	q := newQueryEnv(t, func(w http.ResponseWriter, r *http.Request, session string) {
		if !strings.Contains(r.URL.Path, "SQLQueries('Get_Multi_Open_PO_DocNum')") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["ParamList"] != "SeriesID='71'&cardCode='V10001'" {
			t.Errorf("ParamList = %q", body["ParamList"])
		}
		w.Write([]byte(`{"value": [
			{"'DocEntry'": 9001, "'PO_Document_Number'": "450001", "'Vendor Code'": "V10001", "'Vendor Nam'": "Acme", "'Posting Date'": "20260820", "DocTotal": 15000.5},
			{"DocEntry": 9002, "DocNum": 450002, "CardCode": "V10001", "CardName": "Acme", "DocDate": "2026-08-24"}
		]}`))
	})

	pos, err := q.OpenPOsBySeries(context.Background(), 71, "V10001")
	if err != nil {
		t.Fatalf("OpenPOsBySeries: %v", err)
	}
	if len(pos) != 2 {
		t.Fatalf("len = %d, want 2", len(pos))
	}

	first := pos[0]
	if first.DocEntry != 9001 || first.DocNum != "450001" || first.CardCode != "V10001" {
		t.Errorf("quoted-key row normalized badly: %+v", first)
	}
	if first.PostingDate != "20260820" {
		t.Errorf("PostingDate = %q", first.PostingDate)
	}
	if first.DocTotal.String() != "15000.5" {
		t.Errorf("DocTotal = %s", first.DocTotal.String())
	}

	second := pos[1]
	if second.DocEntry != 9002 || second.DocNum != "450002" || second.PostingDate != "2026-08-24" {
		t.Errorf("bare-key row normalized badly: %+v", second)
	}
	if !second.DocTotal.IsZero() {
		t.Errorf("missing DocTotal should normalize to zero, got %s", second.DocTotal.String())
	}
}

func TestBusinessPartnersFiltersValidSuppliers(t *testing.T) {
	q := newQueryEnv(t, func(w http.ResponseWriter, r *http.Request, session string) {
		if got := r.URL.Query().Get("$filter"); got != "Valid eq 'tYES'" {
			t.Errorf("$filter = %q", got)
		}
		if got := r.Header.Get("Prefer"); got != "odata.maxpagesize=0" {
			t.Errorf("Prefer = %q", got)
		}
		w.Write([]byte(`{"value": [{"CardCode": "V10001", "CardName": "Acme"}]}`))
	})

	partners, err := q.BusinessPartners(context.Background())
	if err != nil {
		t.Fatalf("BusinessPartners: %v", err)
	}
	if len(partners) != 1 || partners[0].CardCode != "V10001" {
		t.Fatalf("partners = %+v", partners)
	}
}

func TestValidateItemResolvesManagement(t *testing.T) {
	q := newQueryEnv(t, func(w http.ResponseWriter, r *http.Request, session string) {
		switch {
		case strings.Contains(r.URL.Path, "SQLQueries('ItemCode_Batch_Serial_Val')"):
			w.Write([]byte(`{"value": [{"BatchNum": "Y", "SerialNum": "N", "NonBatch_NonSerialMethod": ""}]}`))
		case strings.Contains(r.URL.Path, "Items('ITM-0002')"):
			w.Write([]byte(`{"ItemCode": "ITM-0002", "ItemName": "Widget, batch-tracked", "InventoryUOM": "KG"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	v, err := q.ValidateItem(context.Background(), "ITM-0002")
	if err != nil {
		t.Fatalf("ValidateItem: %v", err)
	}
	if !v.BatchManaged || v.SerialManaged {
		t.Errorf("flags = batch:%v serial:%v", v.BatchManaged, v.SerialManaged)
	}
	if v.InventoryType != "batch" {
		t.Errorf("InventoryType = %q", v.InventoryType)
	}
	if v.ItemName != "Widget, batch-tracked" || v.UnitOfMeasure != "KG" {
		t.Errorf("details = %q / %q", v.ItemName, v.UnitOfMeasure)
	}
}

func TestValidateItemUnknownCode(t *testing.T) {
	q := newQueryEnv(t, func(w http.ResponseWriter, r *http.Request, session string) {
		w.Write([]byte(`{"value": []}`))
	})

	_, err := q.ValidateItem(context.Background(), "NOPE")
	if !apperror.IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestMockFallbackOnlyWhenEnabled(t *testing.T) {
	unreachable := NewClient(Config{
		BaseURL:   "http://127.0.0.1:1",
		Username:  "manager",
		Password:  "secret",
		CompanyDB: "TESTDB",
	})

	strict := NewQueryService(unreachable, false)
	if _, err := strict.BusinessPartners(context.Background()); err == nil {
		t.Fatal("strict mode must surface the connectivity error")
	}

	relaxed := NewQueryService(unreachable, true)
	partners, err := relaxed.BusinessPartners(context.Background())
	if err != nil {
		t.Fatalf("mock fallback: %v", err)
	}
	if len(partners) == 0 {
		t.Fatal("mock fallback returned no partners")
	}
}

func TestValidateItemNeverFallsBackToMock(t *testing.T) {
	unreachable := NewClient(Config{
		BaseURL:   "http://127.0.0.1:1",
		Username:  "manager",
		Password:  "secret",
		CompanyDB: "TESTDB",
	})
	relaxed := NewQueryService(unreachable, true)

	if _, err := relaxed.ValidateItem(context.Background(), "ITM-0001"); err == nil {
		t.Fatal("item validation must not be served from mock data")
	}
}
