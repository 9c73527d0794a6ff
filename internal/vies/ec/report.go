package ec

import (
	"bytes"
	"errors"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JakeFAU/vies-crawler/internal/crawler"
	"github.com/JakeFAU/vies-crawler/internal/flatten"
	"github.com/JakeFAU/vies-crawler/internal/scrape"
)

// Report column positions on the first sheet.
const (
	colCountry = 0
	colNumber  = 1
	colValid   = 4
	colName    = 8
	colAddress = 9
)

// readReport parses the validation report workbook. Row 1 is the header;
// every later non-blank row is one result.
func readReport(body []byte) ([]flatten.Value, error) {
	book, err := excelize.OpenReader(bytes.NewReader(body))
	if err != nil {
		return nil, crawler.Malformed("validation report", err)
	}
	defer book.Close() //nolint:errcheck // read-only workbook

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, crawler.Malformed("validation report", errors.New("workbook has no sheets"))
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, crawler.Malformed("validation report", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	header := rows[0]
	records := make([]flatten.Value, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		records = append(records, reportRecord(header, row))
	}
	return records, nil
}

func reportRecord(header, row []string) flatten.Value {
	// Keys follow the header so rows cut short by empty trailing cells keep
	// the same shape as full ones.
	raw := make([]flatten.Member, 0, len(header))
	for i, h := range header {
		key := strings.TrimSpace(h)
		if key == "" {
			continue
		}
		raw = append(raw, flatten.Field(key, flatten.String(cellAt(row, i))))
	}
	return scrape.Record{
		CountryCode: cellAt(row, colCountry),
		VATNumber:   cellAt(row, colNumber),
		Valid:       strings.EqualFold(cellAt(row, colValid), "YES"),
		Name:        cellAt(row, colName),
		Address:     scrape.FoldLines(cellAt(row, colAddress)),
		Extra:       []flatten.Member{flatten.Field("report", flatten.Object(raw...))},
	}.Value()
}

// cellAt tolerates rows shortened by trailing empty cells.
func cellAt(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
