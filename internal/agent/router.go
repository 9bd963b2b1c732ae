package agent

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/ziadkadry99/docchat/internal/extract"
	"github.com/ziadkadry99/docchat/internal/ingest"
	"github.com/ziadkadry99/docchat/internal/llm"
	"github.com/ziadkadry99/docchat/internal/retrieval"
	"github.com/ziadkadry99/docchat/internal/session"
	"github.com/ziadkadry99/docchat/internal/store"
	"github.com/ziadkadry99/docchat/internal/stream"
)

// File is an upload attached to a chat request.
type File struct {
	Name  string
	Bytes []byte
}

// Request is one inbound chat request after websocket decoding.
type Request struct {
	Mode    Mode
	Message string
	File    *File
}

// Router is the single entry point that classifies and dispatches every
// inbound request, and the single translation point from internal failures
// to the external response contract.
type Router struct {
	pipeline  *ingest.Pipeline
	retriever *retrieval.Engine
	store     *store.Store
	provider  llm.Provider
	model     string
	timeout   time.Duration
}

// NewRouter wires the router's collaborators.
func NewRouter(pipeline *ingest.Pipeline, retriever *retrieval.Engine, st *store.Store, provider llm.Provider, model string, timeout time.Duration) *Router {
	return &Router{
		pipeline:  pipeline,
		retriever: retriever,
		store:     st,
		provider:  provider,
		model:     model,
		timeout:   timeout,
	}
}

// Handle orchestrates one chat request end to end, delivering the answer
// (or a structured error message) through sink. It never panics a session;
// every failure becomes an error event.
func (r *Router) Handle(ctx context.Context, sess *session.Session, req Request, sink stream.Sink) {
	sess.SetMode(string(req.Mode))
	sess.AppendUser(req.Message)

	if req.File != nil {
		kind, err := extract.KindForFilename(req.File.Name)
		if err != nil {
			r.fail(sess, sink, req.Mode, err)
			return
		}
		summary, err := r.pipeline.Ingest(ctx, req.File.Bytes, req.File.Name, kind)
		if err != nil {
			r.fail(sess, sink, req.Mode, err)
			return
		}
		sess.AddToScope(summary.DocumentID)
	}

	if _, err := ParseMode(string(req.Mode)); err != nil {
		r.fail(sess, sink, req.Mode, err)
		return
	}

	if !req.Mode.RequiresScope() {
		r.streamAnswer(ctx, sess, req, sink, nil)
		return
	}

	result, err := r.retrieve(ctx, sess, req.Message)
	if err != nil {
		r.fail(sess, sink, req.Mode, err)
		return
	}
	r.streamAnswer(ctx, sess, req, sink, result)
}

// retrieve runs the retrieval stage for a document-scoped mode. With more
// than one document in scope it retrieves per document so every source
// stays labelled by its origin.
func (r *Router) retrieve(ctx context.Context, sess *session.Session, query string) (*retrieval.Result, error) {
	scope := sess.Scope()
	if len(scope) == 0 {
		return nil, ErrNoDocumentInScope
	}

	rctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if len(scope) == 1 {
		return r.retriever.Retrieve(rctx, query, scope)
	}

	perDoc, err := r.retriever.RetrievePerDocument(rctx, query, scope)
	if err != nil {
		return nil, err
	}

	// Merge in scope order; confidence is the best band seen.
	merged := &retrieval.Result{Confidence: retrieval.ConfidenceLow}
	for _, id := range scope {
		result := perDoc[id]
		if result == nil {
			continue
		}
		merged.Sources = append(merged.Sources, result.Sources...)
		merged.Matches = append(merged.Matches, result.Matches...)
		if better(result.Confidence, merged.Confidence) {
			merged.Confidence = result.Confidence
		}
	}
	return merged, nil
}

func better(a, b retrieval.Confidence) bool {
	rank := map[retrieval.Confidence]int{
		retrieval.ConfidenceLow:    0,
		retrieval.ConfidenceMedium: 1,
		retrieval.ConfidenceHigh:   2,
	}
	return rank[a] > rank[b]
}

// streamAnswer generates the assistant answer and streams it through a
// flow. A nil retrieval result means an ungrounded (general) answer.
func (r *Router) streamAnswer(ctx context.Context, sess *session.Session, req Request, sink stream.Sink, result *retrieval.Result) {
	messages := buildPrompt(sess, req, result)

	flow, err := stream.Begin(sess, sink, string(req.Mode))
	if err != nil {
		r.fail(sess, sink, req.Mode, err)
		return
	}

	genCtx, cancel := context.WithTimeout(ctx, r.timeout)
	sess.SetCancel(cancel)
	defer func() {
		sess.SetCancel(nil)
		cancel()
	}()

	_, err = r.provider.Stream(genCtx, llm.CompletionRequest{
		Model:    r.model,
		Messages: messages,
	}, func(token string) error {
		return flow.Partial(token)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Client gone: abandon quietly, emit nothing further.
			flow.Abandon()
			log.Printf("agent: generation abandoned for session %s", sess.ID)
			return
		}
		if failErr := flow.Fail(errors.New(UserMessage(err))); failErr != nil {
			log.Printf("agent: delivering error event: %v", failErr)
		}
		return
	}

	var sources []retrieval.Source
	var confidence retrieval.Confidence
	var additional map[string]any
	if result != nil {
		sources = result.Sources
		confidence = result.Confidence
		additional = additionalData(req.Mode, result)
	}
	if err := flow.Finish(sources, confidence, additional); err != nil {
		log.Printf("agent: delivering final event: %v", err)
	}
}

// additionalData surfaces structured payloads from the matched chunks:
// named entities for every grounded mode, tables for the
// analytics-flavoured ones.
func additionalData(mode Mode, result *retrieval.Result) map[string]any {
	data := make(map[string]any)

	texts := make([]string, 0, len(result.Matches))
	for _, m := range result.Matches {
		texts = append(texts, m.Chunk.Text)
	}
	if entities := extract.Entities(strings.Join(texts, "\n")); len(entities) > 0 {
		data["entities"] = entities
	}

	if mode == ModeSpreadsheet || mode == ModeNotebook {
		var tables []*store.Table
		for _, m := range result.Matches {
			if m.Chunk.Table != nil {
				tables = append(tables, m.Chunk.Table)
			}
		}
		if len(tables) > 0 {
			data["tables"] = tables
		}
	}

	if len(data) == 0 {
		return nil
	}
	return data
}

// fail appends a structured error message to the conversation and delivers
// exactly one error event for it.
func (r *Router) fail(sess *session.Session, sink stream.Sink, mode Mode, err error) {
	text := UserMessage(err)
	msg := sess.AppendAssistant(text, nil, "", nil)
	log.Printf("agent: session %s: %v", sess.ID, err)

	sendErr := sink.Send(stream.Event{
		Type:      stream.TypeError,
		SessionID: sess.ID,
		MessageID: msg.ID,
		Role:      string(session.RoleAssistant),
		Mode:      string(mode),
		Content:   text,
		Done:      true,
		Error:     text,
	})
	if sendErr != nil {
		log.Printf("agent: delivering error event: %v", sendErr)
	}
}

// UserMessage translates an internal failure into the human-readable text
// shown to the client. No internal error type crosses the streaming
// boundary unmapped.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return "Unsupported file format. Accepted kinds: pdf, spreadsheet (csv/tsv), notebook (ipynb/md/txt)."
	case errors.Is(err, ErrNoDocumentInScope):
		return "This mode needs a document to work with. Upload one first."
	case errors.Is(err, ingest.ErrExtractionFailed):
		return "Could not extract content from the uploaded file: " + err.Error()
	case errors.Is(err, ingest.ErrEmbeddingFailed):
		return "Indexing the uploaded file failed. Please try again."
	case errors.Is(err, store.ErrUnknownDocument):
		return "That document is not in the store."
	case errors.Is(err, context.DeadlineExceeded):
		return "The model took too long to respond. The partial answer, if any, is preserved above."
	default:
		return "Request failed: " + err.Error()
	}
}
