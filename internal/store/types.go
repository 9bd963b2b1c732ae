package store

import "time"

// Kind is the declared media kind of an uploaded document.
type Kind string

const (
	KindPDF         Kind = "pdf"
	KindSpreadsheet Kind = "spreadsheet"
	KindNotebook    Kind = "notebook"
)

// Document is a content-addressed record of one ingested upload.
// Its ID is the SHA-256 hex digest of the raw bytes.
type Document struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Kind       Kind      `json:"kind"`
	IngestedAt time.Time `json:"ingested_at"`
	Complete   bool      `json:"complete"`
	Summary    Summary   `json:"summary"`
}

// Summary holds extraction counts recorded for a document.
type Summary struct {
	Pages  int `json:"pages,omitempty"`
	Rows   int `json:"rows,omitempty"`
	Cells  int `json:"cells,omitempty"`
	Tables int `json:"tables,omitempty"`
	Images int `json:"images,omitempty"`
	Forms  int `json:"forms,omitempty"`
}

// Locator names where in the source document a chunk came from.
// Exactly the fields relevant to the document kind are set.
type Locator struct {
	Page      int    `json:"page,omitempty"`
	Sheet     string `json:"sheet,omitempty"`
	CellRange string `json:"cell_range,omitempty"`
	Cell      int    `json:"cell,omitempty"`
}

// FormField is one detected label/value pair from a document.
type FormField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Entity is a named entity recognized in document text, with the number
// of times it occurs.
type Entity struct {
	Text  string `json:"text"`
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// Table is a structured payload detected during extraction,
// stored as its own chunk.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Chunk is one retrievable unit of a document. Chunks are created during
// ingestion and never mutated.
type Chunk struct {
	DocumentID string
	Seq        int
	Text       string
	Table      *Table
	Locator    Locator
	Embedding  []float32
}

// Match is a chunk returned by a similarity query with its score.
type Match struct {
	Chunk Chunk
	Score float64
}

// Scope selects the documents a query or clear operates over.
// A nil Scope means all documents; an empty one matches none.
type Scope []string

// All reports whether the scope covers every document.
func (s Scope) All() bool { return s == nil }

// Stats aggregates store-wide counts.
type Stats struct {
	Documents int            `json:"documents"`
	Chunks    int            `json:"chunks"`
	ByKind    map[Kind]int   `json:"by_kind"`
	Pages     int            `json:"pages"`
	Tables    int            `json:"tables"`
	Images    int            `json:"images"`
	Forms     int            `json:"forms"`
}
