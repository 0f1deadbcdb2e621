// Package labels builds QR label payloads for received goods.
// Payloads are compact JSON strings the warehouse label printer encodes into
// QR codes; image rendering happens client-side.
package labels

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// maxPayloadLen caps the data handed to the QR encoder.
const maxPayloadLen = 500

// Payload is the machine-readable content of one label.
// Exactly one of Batch/Serial is set for managed items; both are empty for
// plain pack labels.
type Payload struct {
	ID      string `json:"id"`
	PO      string `json:"po"`
	Item    string `json:"item"`
	Batch   string `json:"batch,omitempty"`
	Serial  string `json:"serial,omitempty"`
	Qty     int    `json:"qty"`
	Pack    string `json:"pack"`
	GRNDate string `json:"grn_date"`
	ExpDate string `json:"exp_date"`
}

// Encode returns the compact JSON form, truncated to the QR capacity limit.
func (p Payload) Encode() string {
	data, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	s := string(data)
	if len(s) > maxPayloadLen {
		s = s[:maxPayloadLen]
	}
	return s
}

// LabelID formats the label identifier: GRN/<day-of-month>/<sequence>.
func LabelID(t time.Time, seq int) string {
	return fmt.Sprintf("GRN/%02d/%010d", t.Day(), seq)
}

// PackText renders "n of total" for the pack position on a label.
func PackText(n, total int) string {
	return fmt.Sprintf("%d of %d", n, total)
}

// PackGRNNumber generates a GRN-scoped identifier for one pack of a
// non-managed line. The line id is shortened to keep labels scannable.
func PackGRNNumber(lineID string, pack int) string {
	short := lineID
	if i := strings.IndexByte(short, '-'); i > 0 {
		short = short[:i]
	}
	return fmt.Sprintf("MGN-%s-%d", short, pack)
}

// ScanString is the pipe-delimited fallback format some scanners expect:
// item|grn|name|reference. Empty references render as N/A.
func ScanString(itemCode, grnDocNum, itemName, reference string) string {
	if reference == "" {
		reference = "N/A"
	}
	return fmt.Sprintf("%s|%s|%s|%s", itemCode, grnDocNum, itemName, reference)
}

// FormatDate renders a label date, or N/A when absent.
func FormatDate(t *time.Time) string {
	if t == nil {
		return "N/A"
	}
	return t.Format("2006-01-02")
}
