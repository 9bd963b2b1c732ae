package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/ziadkadry99/docchat/internal/store"
)

// rowBatchSize groups spreadsheet rows into retrievable segments of
// manageable size.
const rowBatchSize = 20

// SpreadsheetExtractor extracts delimiter-separated values (CSV/TSV). The
// header row labels every cell, and each batch of rows is emitted both as
// labelled text and as a structured table payload.
type SpreadsheetExtractor struct{}

func (e *SpreadsheetExtractor) Extract(ctx context.Context, raw []byte) (*Result, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	if bytes.ContainsRune(bytes.SplitN(raw, []byte("\n"), 2)[0], '\t') {
		reader.Comma = '\t'
	}
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse spreadsheet: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("spreadsheet contains no rows")
	}

	headers := records[0]
	dataRows := records[1:]

	result := &Result{}
	result.Summary.Rows = len(dataRows)
	for _, row := range dataRows {
		result.Summary.Cells += len(row)
	}

	for start := 0; start < len(dataRows); start += rowBatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := start + rowBatchSize
		if end > len(dataRows) {
			end = len(dataRows)
		}
		batch := dataRows[start:end]

		table := &store.Table{Headers: headers, Rows: batch}
		result.Summary.Tables++
		result.Segments = append(result.Segments, Segment{
			Text:  batchText(headers, batch),
			Table: table,
			Locator: store.Locator{
				Sheet: "Sheet1",
				// Row 1 holds headers, so data row N lives on sheet row N+1.
				CellRange: fmt.Sprintf("A%d:%s%d", start+2, columnName(len(headers)-1), end+1),
			},
		})
	}

	return result, nil
}

func batchText(headers []string, rows [][]string) string {
	var b strings.Builder
	b.WriteString("Headers: " + strings.Join(headers, ", ") + "\n\n")
	for _, row := range rows {
		for i, cell := range row {
			if i > 0 {
				b.WriteString(", ")
			}
			if i < len(headers) {
				b.WriteString(headers[i] + ": " + cell)
			} else {
				b.WriteString(cell)
			}
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// columnName converts a zero-based column index to its spreadsheet letter
// form (0 -> A, 25 -> Z, 26 -> AA).
func columnName(idx int) string {
	if idx < 0 {
		return "A"
	}
	name := ""
	for idx >= 0 {
		name = string(rune('A'+idx%26)) + name
		idx = idx/26 - 1
	}
	return name
}
