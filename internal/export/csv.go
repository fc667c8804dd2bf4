// Package export writes the cart as a CSV file the shopper can download when
// online submission is not an option.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/kiloshop/orderform/internal/cart"
	"github.com/kiloshop/orderform/internal/money"
)

// Header is the first CSV row.
var Header = []string{"Item", "Price_EUR_kg", "Qty_kg", "Notes", "Line_Total_EUR", "Allergies"}

// ContentType is the MIME type of the export.
const ContentType = "text/csv;charset=utf-8"

// ErrBadHeader is returned by ReadCSV when the header row does not match.
var ErrBadHeader = errors.New("unexpected CSV header")

// Record is one exported row, as text.
type Record struct {
	Item      string
	Price     string
	Qty       string
	Notes     string
	Total     string
	Allergies string
}

// Records converts cart lines to export rows. The item column carries the
// full composite label. Text fields carry "\n" line breaks only, so a
// WriteCSV/ReadCSV round trip returns exactly these records.
func Records(lines []cart.Line, allergies string) []Record {
	allergies = cart.NormalizeNewlines(strings.TrimSpace(allergies))
	out := make([]Record, 0, len(lines))
	for _, l := range lines {
		out = append(out, Record{
			Item:      cart.NormalizeNewlines(l.Label),
			Price:     money.FormatMoney(l.UnitPrice),
			Qty:       l.QuantityText,
			Notes:     cart.NormalizeNewlines(l.Notes),
			Total:     money.FormatMoney(l.LineTotal),
			Allergies: allergies,
		})
	}
	return out
}

// WriteCSV writes the header and one row per line. Every field is quoted and
// rows are separated by "\n".
func WriteCSV(w io.Writer, lines []cart.Line, allergies string) error {
	rows := [][]string{Header}
	for _, r := range Records(lines, allergies) {
		rows = append(rows, []string{r.Item, r.Price, r.Qty, r.Notes, r.Total, r.Allergies})
	}

	var b strings.Builder
	for i, row := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		for j, field := range row {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(quote(field))
		}
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// ReadCSV parses a file written by WriteCSV.
func ReadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) == 0 || !slices.Equal(rows[0], Header) {
		return nil, ErrBadHeader
	}

	out := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		out = append(out, Record{
			Item:      row[0],
			Price:     row[1],
			Qty:       row[2],
			Notes:     row[3],
			Total:     row[4],
			Allergies: row[5],
		})
	}
	return out, nil
}

// Filename is the download name for an export made at now, e.g.
// "order-2026-10-14.csv". The date is taken in UTC.
func Filename(now time.Time) string {
	return "order-" + now.UTC().Format(time.DateOnly) + ".csv"
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
