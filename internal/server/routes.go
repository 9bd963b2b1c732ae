package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/docchat/internal/agent"
	"github.com/ziadkadry99/docchat/internal/extract"
	"github.com/ziadkadry99/docchat/internal/ingest"
	"github.com/ziadkadry99/docchat/internal/store"
)

// registerAPIRoutes mounts the REST API.
func (s *Server) registerAPIRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", s.handleUpload)
		r.Post("/clear", s.handleClear)
		r.Get("/stats", s.handleStats)
		r.Post("/search", s.handleSearch)
		r.Post("/compare", s.handleCompare)
		r.Post("/summarize", s.handleSummarize)
		r.Get("/documents", s.handleListDocuments)
		r.Get("/documents/{id}/tables", s.handleDocumentTables)
		r.Get("/documents/{id}/forms", s.handleDocumentForms)
		r.Get("/documents/{id}/entities", s.handleDocumentEntities)
	})
}

// uploadResult reports the outcome per uploaded file.
type uploadResult struct {
	Name    string          `json:"name"`
	Summary *ingest.Summary `json:"summary,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		jsonError(w, "request too large or malformed", http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "no files provided", http.StatusBadRequest)
		return
	}

	var results []uploadResult
	for _, fh := range files {
		res := uploadResult{Name: fh.Filename}

		kind, err := extract.KindForFilename(fh.Filename)
		if err != nil {
			res.Error = agent.UserMessage(err)
			results = append(results, res)
			continue
		}

		f, err := fh.Open()
		if err != nil {
			res.Error = "could not read upload"
			results = append(results, res)
			continue
		}
		raw, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			res.Error = "could not read upload"
			results = append(results, res)
			continue
		}

		summary, err := s.pipeline.Ingest(r.Context(), raw, fh.Filename, kind)
		if err != nil {
			log.Printf("server: upload %s: %v", fh.Filename, err)
			res.Error = agent.UserMessage(err)
			results = append(results, res)
			continue
		}
		res.Summary = summary
		results = append(results, res)
	}

	writeJSON(w, map[string]any{"results": results})
}

type clearRequest struct {
	DocumentIDs []string `json:"document_ids"`
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	var req clearRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	var scope store.Scope
	if len(req.DocumentIDs) > 0 {
		scope = store.Scope(req.DocumentIDs)
	}
	if err := s.store.Clear(r.Context(), scope); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Cleared documents must also leave live session scopes, otherwise a
	// chat session keeps retrieving against documents that no longer exist.
	for _, sess := range s.sessions.All() {
		if scope == nil {
			sess.ClearScope()
		} else {
			sess.RemoveFromScope(scope...)
		}
	}

	writeJSON(w, map[string]string{"status": "cleared"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

type searchRequest struct {
	Query       string   `json:"query"`
	DocumentIDs []string `json:"document_ids"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		jsonError(w, "query is required", http.StatusBadRequest)
		return
	}

	var scope store.Scope
	if len(req.DocumentIDs) > 0 {
		scope = store.Scope(req.DocumentIDs)
	}
	result, err := s.agent.Search(r.Context(), req.Query, scope)
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	writeJSON(w, result)
}

type compareRequest struct {
	DocumentA string `json:"document_a"`
	DocumentB string `json:"document_b"`
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.DocumentA == "" || req.DocumentB == "" {
		jsonError(w, "document_a and document_b are required", http.StatusBadRequest)
		return
	}

	result, err := s.agent.Compare(r.Context(), req.DocumentA, req.DocumentB)
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	writeJSON(w, result)
}

type summarizeRequest struct {
	DocumentIDs []string `json:"document_ids"`
	Style       string   `json:"style"`
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.DocumentIDs) == 0 {
		jsonError(w, "document_ids is required", http.StatusBadRequest)
		return
	}
	style, err := agent.ParseSummaryStyle(req.Style)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	summaries, err := s.agent.Summarize(r.Context(), req.DocumentIDs, style)
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	writeJSON(w, map[string]any{"summaries": summaries})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.Documents(r.Context(), nil, true)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"documents": docs})
}

func (s *Server) handleDocumentTables(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	chunks, ok := s.documentChunks(w, r, id)
	if !ok {
		return
	}

	tables := []*store.Table{}
	for i := range chunks {
		if chunks[i].Table != nil {
			tables = append(tables, chunks[i].Table)
		}
	}
	writeJSON(w, map[string]any{"document_id": id, "tables": tables})
}

func (s *Server) handleDocumentForms(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	chunks, ok := s.documentChunks(w, r, id)
	if !ok {
		return
	}

	fields := []store.FormField{}
	for i := range chunks {
		if chunks[i].Table != nil {
			continue
		}
		fields = append(fields, extract.FormFields(chunks[i].Text)...)
	}
	writeJSON(w, map[string]any{"document_id": id, "forms": fields})
}

func (s *Server) handleDocumentEntities(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	chunks, ok := s.documentChunks(w, r, id)
	if !ok {
		return
	}

	// Entity counts merge across chunks, so scan the document as one text.
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}
	entities := extract.Entities(strings.Join(texts, "\n"))
	if entities == nil {
		entities = []store.Entity{}
	}
	writeJSON(w, map[string]any{"document_id": id, "entities": entities})
}

// documentChunks loads a document's chunks, writing the error response
// itself when the lookup fails.
func (s *Server) documentChunks(w http.ResponseWriter, r *http.Request, id string) ([]store.Chunk, bool) {
	if _, err := s.store.Document(r.Context(), id); err != nil {
		s.writeOpError(w, err)
		return nil, false
	}
	chunks, err := s.store.ChunksByDocument(r.Context(), id)
	if err != nil {
		s.writeOpError(w, err)
		return nil, false
	}
	return chunks, true
}

// writeOpError maps store and agent errors onto HTTP status codes.
func (s *Server) writeOpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrUnknownDocument):
		jsonError(w, agent.UserMessage(err), http.StatusNotFound)
	case errors.Is(err, extract.ErrUnsupportedFormat):
		jsonError(w, agent.UserMessage(err), http.StatusUnsupportedMediaType)
	default:
		jsonError(w, agent.UserMessage(err), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
