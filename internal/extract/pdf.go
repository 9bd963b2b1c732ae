package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/ziadkadry99/docchat/internal/store"
)

// PDFExtractor extracts page-level text segments from PDF bytes. Runs of
// aligned, delimiter-separated lines are detected as tables and emitted as
// separate structured segments.
type PDFExtractor struct{}

func (e *PDFExtractor) Extract(ctx context.Context, raw []byte) (*Result, error) {
	reader, err := pdflib.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	result := &Result{}
	numPages := reader.NumPage()

	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page does not fail the document.
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		result.Summary.Pages++
		locator := store.Locator{Page: i}

		prose, tables := splitTables(text)
		if prose != "" {
			result.Summary.Forms += len(FormFields(prose))
			result.Segments = append(result.Segments, Segment{Text: prose, Locator: locator})
		}
		for _, table := range tables {
			result.Summary.Tables++
			result.Segments = append(result.Segments, Segment{
				Text:    renderTable(table),
				Table:   table,
				Locator: locator,
			})
		}
	}

	if len(result.Segments) == 0 {
		return nil, fmt.Errorf("pdf contains no extractable text")
	}
	return result, nil
}

// splitTables separates prose lines from table-like runs. A run of three or
// more consecutive lines that split into the same column count (two or more
// columns on tab or wide-space boundaries) is treated as one table, with the
// first row as headers.
func splitTables(text string) (string, []*store.Table) {
	lines := strings.Split(text, "\n")

	var proseLines []string
	var tables []*store.Table

	var run [][]string
	flushRun := func() {
		if len(run) >= 3 {
			tables = append(tables, &store.Table{Headers: run[0], Rows: run[1:]})
		} else {
			for _, cols := range run {
				proseLines = append(proseLines, strings.Join(cols, " "))
			}
		}
		run = nil
	}

	for _, line := range lines {
		cols := splitColumns(line)
		if len(cols) >= 2 && (len(run) == 0 || len(cols) == len(run[0])) {
			run = append(run, cols)
			continue
		}
		flushRun()
		if strings.TrimSpace(line) != "" {
			proseLines = append(proseLines, strings.TrimSpace(line))
		}
	}
	flushRun()

	return strings.Join(proseLines, "\n"), tables
}

// splitColumns splits a line on tabs or runs of two-plus spaces.
func splitColumns(line string) []string {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	var cols []string
	for _, part := range strings.FieldsFunc(line, func(r rune) bool { return r == '\t' }) {
		for _, sub := range strings.Split(part, "  ") {
			sub = strings.TrimSpace(sub)
			if sub != "" {
				cols = append(cols, sub)
			}
		}
	}
	return cols
}

// renderTable flattens a table into retrievable text, one labelled row per
// line, so table facts are reachable by similarity search.
func renderTable(t *store.Table) string {
	var b strings.Builder
	b.WriteString("Table. Columns: " + strings.Join(t.Headers, ", ") + "\n")
	for _, row := range t.Rows {
		for i, cell := range row {
			if i > 0 {
				b.WriteString("; ")
			}
			if i < len(t.Headers) {
				b.WriteString(t.Headers[i] + ": " + cell)
			} else {
				b.WriteString(cell)
			}
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
