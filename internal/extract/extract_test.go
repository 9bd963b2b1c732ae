package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ziadkadry99/docchat/internal/store"
)

func TestKindForFilename(t *testing.T) {
	cases := []struct {
		name string
		kind store.Kind
		err  bool
	}{
		{"report.pdf", store.KindPDF, false},
		{"REPORT.PDF", store.KindPDF, false},
		{"data.csv", store.KindSpreadsheet, false},
		{"data.tsv", store.KindSpreadsheet, false},
		{"analysis.ipynb", store.KindNotebook, false},
		{"notes.md", store.KindNotebook, false},
		{"notes.markdown", store.KindNotebook, false},
		{"plain.txt", store.KindNotebook, false},
		{"archive.zip", "", true},
		{"noextension", "", true},
	}
	for _, c := range cases {
		kind, err := KindForFilename(c.name)
		if c.err {
			if !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("%s: expected ErrUnsupportedFormat, got %v", c.name, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error %v", c.name, err)
			continue
		}
		if kind != c.kind {
			t.Errorf("%s: got kind %q, want %q", c.name, kind, c.kind)
		}
	}
}

func TestForKindUnsupported(t *testing.T) {
	if _, err := ForKind(store.Kind("binary")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestSpreadsheetExtract(t *testing.T) {
	csvData := "region,revenue\nnorth,100\nsouth,80\neast,120\n"
	e := &SpreadsheetExtractor{}

	result, err := e.Extract(context.Background(), []byte(csvData))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.Summary.Rows != 3 {
		t.Errorf("expected 3 rows, got %d", result.Summary.Rows)
	}
	if result.Summary.Cells != 6 {
		t.Errorf("expected 6 cells, got %d", result.Summary.Cells)
	}
	if len(result.Segments) != 1 {
		t.Fatalf("expected 1 segment for 3 rows, got %d", len(result.Segments))
	}

	seg := result.Segments[0]
	if seg.Table == nil {
		t.Fatal("segment missing table payload")
	}
	if len(seg.Table.Rows) != 3 || seg.Table.Headers[1] != "revenue" {
		t.Errorf("unexpected table: %+v", seg.Table)
	}
	if !strings.Contains(seg.Text, "region: north") {
		t.Errorf("batch text not labelled by header: %q", seg.Text)
	}
	if seg.Locator.CellRange != "A2:B4" {
		t.Errorf("expected cell range A2:B4, got %q", seg.Locator.CellRange)
	}
}

func TestSpreadsheetExtractBatches(t *testing.T) {
	var b strings.Builder
	b.WriteString("id,value\n")
	for i := 0; i < 45; i++ {
		b.WriteString("row,1\n")
	}

	e := &SpreadsheetExtractor{}
	result, err := e.Extract(context.Background(), []byte(b.String()))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(result.Segments) != 3 {
		t.Fatalf("expected 3 batches of 20 for 45 rows, got %d", len(result.Segments))
	}
	if got := len(result.Segments[0].Table.Rows); got != 20 {
		t.Errorf("first batch has %d rows", got)
	}
	if got := len(result.Segments[2].Table.Rows); got != 5 {
		t.Errorf("last batch has %d rows, want 5", got)
	}
	if result.Summary.Tables != 3 {
		t.Errorf("expected 3 tables in summary, got %d", result.Summary.Tables)
	}
}

func TestSpreadsheetExtractTSV(t *testing.T) {
	tsv := "name\tage\nalice\t30\nbob\t25\n"
	e := &SpreadsheetExtractor{}
	result, err := e.Extract(context.Background(), []byte(tsv))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.Summary.Rows != 2 {
		t.Errorf("tab-separated input parsed wrong: %d rows", result.Summary.Rows)
	}
	if result.Segments[0].Table.Headers[1] != "age" {
		t.Errorf("unexpected headers: %v", result.Segments[0].Table.Headers)
	}
}

func TestNotebookExtractIpynb(t *testing.T) {
	nb := `{
		"cells": [
			{"cell_type": "markdown", "source": ["# Analysis\n", "Loads the dataset."]},
			{"cell_type": "code", "source": ["import pandas as pd\n", "df = pd.read_csv('data.csv')"]},
			{"cell_type": "markdown", "source": [""]}
		]
	}`
	e := &NotebookExtractor{}
	result, err := e.Extract(context.Background(), []byte(nb))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.Summary.Cells != 2 {
		t.Errorf("expected 2 non-empty cells, got %d", result.Summary.Cells)
	}
	if !strings.HasPrefix(result.Segments[1].Text, "Code cell:") {
		t.Errorf("code cell not marked: %q", result.Segments[1].Text)
	}
	if result.Segments[0].Locator.Cell != 1 {
		t.Errorf("expected first cell locator 1, got %d", result.Segments[0].Locator.Cell)
	}
}

func TestNotebookExtractMarkdown(t *testing.T) {
	md := "# Intro\n\nSome prose here.\n\n```python\nprint('hi')\n```\n\n## Next\n\nMore prose.\n"
	e := &NotebookExtractor{}
	result, err := e.Extract(context.Background(), []byte(md))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(result.Segments) < 3 {
		t.Fatalf("expected at least 3 cells (heading, code, heading), got %d", len(result.Segments))
	}

	var hasCode bool
	for _, seg := range result.Segments {
		if strings.HasPrefix(seg.Text, "Code cell:") && strings.Contains(seg.Text, "print('hi')") {
			hasCode = true
		}
	}
	if !hasCode {
		t.Error("fenced code block not extracted as its own cell")
	}
}

func TestPDFSplitTables(t *testing.T) {
	text := "Quarterly results follow.\n" +
		"Region\tQ1\tQ2\n" +
		"North\t100\t120\n" +
		"South\t80\t95\n" +
		"Overall a solid quarter."

	prose, tables := splitTables(text)
	if len(tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(tables))
	}
	table := tables[0]
	if len(table.Headers) != 3 || table.Headers[0] != "Region" {
		t.Errorf("unexpected headers: %v", table.Headers)
	}
	if len(table.Rows) != 2 || table.Rows[1][2] != "95" {
		t.Errorf("unexpected rows: %v", table.Rows)
	}
	if !strings.Contains(prose, "Quarterly results follow.") || !strings.Contains(prose, "solid quarter") {
		t.Errorf("prose lost around the table: %q", prose)
	}
}

func TestPDFSplitTablesShortRunStaysProse(t *testing.T) {
	// Two aligned lines are not enough to call it a table.
	text := "Label\tValue\nTotal\t100\nTrailing prose."
	prose, tables := splitTables(text)
	if len(tables) != 0 {
		t.Errorf("two-line run misdetected as table: %v", tables)
	}
	if !strings.Contains(prose, "Total 100") {
		t.Errorf("aligned lines not flattened into prose: %q", prose)
	}
}

func TestFormFields(t *testing.T) {
	text := "Invoice Number: INV-2041\n" +
		"Date: 2026-03-04\n" +
		"This is a normal sentence with a clause: it keeps going and going and going well past the length cutoff for a field value.\n" +
		"Total Due: $1,250.00\n" +
		"Note: This value ends like a sentence."

	fields := FormFields(text)
	if len(fields) != 3 {
		t.Fatalf("expected 3 fields, got %d: %v", len(fields), fields)
	}
	if fields[0].Label != "Invoice Number" || fields[0].Value != "INV-2041" {
		t.Errorf("unexpected first field: %+v", fields[0])
	}
	if fields[2].Value != "$1,250.00" {
		t.Errorf("unexpected total field: %+v", fields[2])
	}
}

func TestEntities(t *testing.T) {
	text := "You can reach Jane Smith at jane.smith@example.com before March 5, 2024.\n" +
		"Jane Smith approved a budget of $4,500, up 12% from last quarter, for Acme Corp.\n" +
		"The report lives at https://example.com/q1 and is due 2024-03-01.\n" +
		"The Company will follow up."

	entities := Entities(text)

	byKey := make(map[string]store.Entity)
	for _, e := range entities {
		byKey[e.Kind+"/"+e.Text] = e
	}

	checks := []struct {
		key   string
		count int
	}{
		{"email/jane.smith@example.com", 1},
		{"url/https://example.com/q1", 1},
		{"date/March 5, 2024", 1},
		{"date/2024-03-01", 1},
		{"money/$4,500", 1},
		{"percent/12%", 1},
		{"name/Jane Smith", 2},
		{"name/Acme Corp", 1},
	}
	for _, c := range checks {
		e, ok := byKey[c.key]
		if !ok {
			t.Errorf("missing entity %s in %v", c.key, entities)
			continue
		}
		if e.Count != c.count {
			t.Errorf("%s: count = %d, want %d", c.key, e.Count, c.count)
		}
	}

	if _, ok := byKey["name/The Company"]; ok {
		t.Error("sentence opener reported as a name")
	}
	// The email address must not resurface inside a name or URL span.
	for _, e := range entities {
		if e.Kind != "email" && strings.Contains(e.Text, "@") {
			t.Errorf("email leaked into %s entity %q", e.Kind, e.Text)
		}
	}
}

func TestEntitiesEmptyText(t *testing.T) {
	if got := Entities(""); got != nil {
		t.Errorf("expected no entities, got %v", got)
	}
}
