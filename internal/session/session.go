package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/docchat/internal/retrieval"
	"github.com/ziadkadry99/docchat/internal/store"
)

// Role identifies a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ErrMessageOpen is returned when a second assistant message is started
// while one is still streaming.
var ErrMessageOpen = errors.New("an assistant message is already open")

// Message is one conversation entry. Messages are append-only; only an
// in-progress assistant message grows, and only through its Open handle.
type Message struct {
	ID             string                `json:"id"`
	Role           Role                  `json:"role"`
	Content        string                `json:"content"`
	Sources        []retrieval.Source    `json:"sources,omitempty"`
	Confidence     retrieval.Confidence  `json:"confidence,omitempty"`
	AdditionalData map[string]any        `json:"additional_data,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
}

// Session is one client connection's conversation state: its messages, the
// active agent mode, and the set of documents in scope.
type Session struct {
	ID string

	mu       sync.Mutex
	messages []*Message
	mode     string
	scope    map[string]struct{}
	open     *Open
	cancel   context.CancelFunc
}

// Open is the handle to the single in-progress assistant message of a
// session. All streaming appends go through it; there is no "find the last
// assistant message" scan anywhere.
type Open struct {
	session *Session
	msg     *Message
	closed  bool
}

func newSession() *Session {
	return &Session{
		ID:    uuid.NewString(),
		scope: make(map[string]struct{}),
	}
}

// SetMode records the active agent mode.
func (s *Session) SetMode(mode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
}

// Mode returns the active agent mode.
func (s *Session) Mode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// AddToScope adds document IDs to the session's retrieval scope.
func (s *Session) AddToScope(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.scope[id] = struct{}{}
	}
}

// RemoveFromScope drops document IDs from the scope.
func (s *Session) RemoveFromScope(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.scope, id)
	}
}

// ClearScope empties the retrieval scope.
func (s *Session) ClearScope() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scope = make(map[string]struct{})
}

// Scope returns the documents in scope, sorted for deterministic queries.
// An empty scope returns nil, which the caller must treat as "no documents"
// rather than "all documents".
func (s *Session) Scope() store.Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.scope) == 0 {
		return nil
	}
	ids := make([]string, 0, len(s.scope))
	for id := range s.scope {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return store.Scope(ids)
}

// AppendUser appends a user message.
func (s *Session) AppendUser(content string) *Message {
	msg := &Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return msg
}

// AppendAssistant appends a complete (non-streamed) assistant message.
func (s *Session) AppendAssistant(content string, sources []retrieval.Source, confidence retrieval.Confidence, additional map[string]any) *Message {
	msg := &Message{
		ID:             uuid.NewString(),
		Role:           RoleAssistant,
		Content:        content,
		Sources:        sources,
		Confidence:     confidence,
		AdditionalData: additional,
		CreatedAt:      time.Now().UTC(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return msg
}

// StartAssistant opens a new streaming assistant message and returns its
// handle. A session owns at most one open message at a time.
func (s *Session) StartAssistant() (*Open, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open != nil {
		return nil, ErrMessageOpen
	}
	msg := &Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		CreatedAt: time.Now().UTC(),
	}
	s.messages = append(s.messages, msg)
	s.open = &Open{session: s, msg: msg}
	return s.open, nil
}

// Messages returns a snapshot of the conversation.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = *m
	}
	return out
}

// SetCancel records the cancel function of the in-flight generation.
func (s *Session) SetCancel(cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel = cancel
}

// Cancel aborts any in-flight generation for this session.
func (s *Session) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// MessageID returns the identity of the open message.
func (o *Open) MessageID() string { return o.msg.ID }

// Append extends the open message and returns the cumulative content.
func (o *Open) Append(delta string) string {
	o.session.mu.Lock()
	defer o.session.mu.Unlock()
	o.msg.Content += delta
	return o.msg.Content
}

// Content returns the accumulated content so far.
func (o *Open) Content() string {
	o.session.mu.Lock()
	defer o.session.mu.Unlock()
	return o.msg.Content
}

// Close finalizes the open message with its provenance metadata and
// releases the handle. Closing twice is a no-op.
func (o *Open) Close(sources []retrieval.Source, confidence retrieval.Confidence, additional map[string]any) {
	o.session.mu.Lock()
	defer o.session.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	o.msg.Sources = sources
	o.msg.Confidence = confidence
	o.msg.AdditionalData = additional
	o.session.open = nil
}
