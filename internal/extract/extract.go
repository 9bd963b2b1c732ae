package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ziadkadry99/docchat/internal/store"
)

// ErrUnsupportedFormat is returned when no extractor matches the declared
// media kind of an upload.
var ErrUnsupportedFormat = errors.New("unsupported format")

// Segment is one ordered unit of extracted content: prose text, an optional
// structured table payload, and the locator naming where it came from.
type Segment struct {
	Text    string
	Table   *store.Table
	Locator store.Locator
}

// Result is the output of one extraction run.
type Result struct {
	Segments []Segment
	Summary  store.Summary
}

// Extractor converts raw document bytes into an ordered list of segments.
// Implementations exist per media kind; callers never branch on file
// internals, only on which extractor to invoke.
type Extractor interface {
	Extract(ctx context.Context, raw []byte) (*Result, error)
}

// ForKind returns the extractor for a declared media kind, or
// ErrUnsupportedFormat if none matches.
func ForKind(kind store.Kind) (Extractor, error) {
	switch kind {
	case store.KindPDF:
		return &PDFExtractor{}, nil
	case store.KindSpreadsheet:
		return &SpreadsheetExtractor{}, nil
	case store.KindNotebook:
		return &NotebookExtractor{}, nil
	default:
		return nil, fmt.Errorf("%w: %q (accepted: %v)", ErrUnsupportedFormat, kind, SupportedKinds())
	}
}

// SupportedKinds lists the media kinds this build can extract.
func SupportedKinds() []store.Kind {
	return []store.Kind{store.KindPDF, store.KindSpreadsheet, store.KindNotebook}
}

// KindForFilename guesses a media kind from a filename extension.
// Used by the upload endpoints when the client does not declare a kind.
func KindForFilename(name string) (store.Kind, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".pdf":
		return store.KindPDF, nil
	case ".csv", ".tsv":
		return store.KindSpreadsheet, nil
	case ".ipynb", ".md", ".markdown", ".txt":
		return store.KindNotebook, nil
	default:
		return "", fmt.Errorf("%w: extension %q (accepted: .pdf .csv .tsv .ipynb .md .txt)", ErrUnsupportedFormat, ext)
	}
}
