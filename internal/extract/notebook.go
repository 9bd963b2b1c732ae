package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/ziadkadry99/docchat/internal/store"
)

// NotebookExtractor extracts cell-oriented text files: Jupyter .ipynb
// documents, or markdown-style notes treated as a sequence of cells split at
// headings and fenced code blocks. Each cell becomes one segment whose
// locator carries the cell index.
type NotebookExtractor struct{}

func (e *NotebookExtractor) Extract(ctx context.Context, raw []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if looksLikeIpynb(raw) {
		return extractIpynb(raw)
	}
	return extractMarkdownCells(raw)
}

type ipynbDocument struct {
	Cells []ipynbCell `json:"cells"`
}

type ipynbCell struct {
	CellType string   `json:"cell_type"`
	Source   []string `json:"source"`
}

func looksLikeIpynb(raw []byte) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{' && bytes.Contains(raw, []byte(`"cells"`))
}

func extractIpynb(raw []byte) (*Result, error) {
	var nb ipynbDocument
	if err := json.Unmarshal(raw, &nb); err != nil {
		return nil, fmt.Errorf("parse notebook json: %w", err)
	}
	if len(nb.Cells) == 0 {
		return nil, fmt.Errorf("notebook contains no cells")
	}

	result := &Result{}
	for i, cell := range nb.Cells {
		content := strings.TrimSpace(strings.Join(cell.Source, ""))
		if content == "" {
			continue
		}
		if cell.CellType == "code" {
			content = "Code cell:\n" + content
		}
		result.Summary.Cells++
		result.Segments = append(result.Segments, Segment{
			Text:    content,
			Locator: store.Locator{Cell: i + 1},
		})
	}
	if len(result.Segments) == 0 {
		return nil, fmt.Errorf("notebook contains no non-empty cells")
	}
	return result, nil
}

// extractMarkdownCells walks the goldmark AST, starting a new cell at each
// heading and emitting fenced code blocks as their own cells.
func extractMarkdownCells(raw []byte) (*Result, error) {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(raw))

	var cells []string
	var current []string

	flush := func() {
		if joined := strings.TrimSpace(strings.Join(current, "\n\n")); joined != "" {
			cells = append(cells, joined)
		}
		current = nil
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			flush()
			current = append(current, string(node.Text(raw)))
		case *ast.FencedCodeBlock:
			flush()
			cells = append(cells, "Code cell:\n"+blockText(node, raw))
		default:
			if t := blockText(n, raw); t != "" {
				current = append(current, t)
			}
		}
	}
	flush()

	if len(cells) == 0 {
		return nil, fmt.Errorf("notebook contains no extractable text")
	}

	result := &Result{}
	for i, cell := range cells {
		result.Summary.Cells++
		result.Segments = append(result.Segments, Segment{
			Text:    cell,
			Locator: store.Locator{Cell: i + 1},
		})
	}
	return result, nil
}

// blockText collects the raw source lines covered by a block node,
// recursing into container blocks (lists, quotes) that own no lines.
func blockText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
	}
	if buf.Len() == 0 {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if t := blockText(c, src); t != "" {
				if buf.Len() > 0 {
					buf.WriteString("\n")
				}
				buf.WriteString(t)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
