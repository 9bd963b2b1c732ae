package stream

import (
	"fmt"
	"sync"

	"github.com/ziadkadry99/docchat/internal/retrieval"
	"github.com/ziadkadry99/docchat/internal/session"
)

// Type tags a stream event.
type Type string

const (
	TypePartial Type = "partial"
	TypeFinal   Type = "final"
	TypeError   Type = "error"
)

// Event is one increment of a progressively generated assistant answer.
// Content always carries the cumulative text so far. Events are ephemeral;
// only the message they build is kept.
type Event struct {
	Type           Type                 `json:"type"`
	SessionID      string               `json:"session_id"`
	MessageID      string               `json:"message_id"`
	Role           string               `json:"role"`
	Mode           string               `json:"agent_mode"`
	Content        string               `json:"content"`
	Done           bool                 `json:"is_complete"`
	Error          string               `json:"error,omitempty"`
	Sources        []retrieval.Source   `json:"sources,omitempty"`
	Confidence     retrieval.Confidence `json:"confidence,omitempty"`
	AdditionalData map[string]any       `json:"additional_data,omitempty"`
}

// Sink delivers events to one client. Implementations must be safe to call
// from the single flow goroutine; the flow itself serializes sends.
type Sink interface {
	Send(Event) error
}

// Flow delivers the events of exactly one streaming assistant message, in
// order: any number of partials, then exactly one final or error event.
// After the terminal event nothing more is emitted. A new Flow cannot begin
// for a session while its previous message is still open.
type Flow struct {
	sess *session.Session
	open *session.Open
	sink Sink
	mode string

	mu   sync.Mutex
	done bool
}

// Begin opens the session's assistant message and returns the flow handle
// all further events go through.
func Begin(sess *session.Session, sink Sink, mode string) (*Flow, error) {
	open, err := sess.StartAssistant()
	if err != nil {
		return nil, err
	}
	return &Flow{sess: sess, open: open, sink: sink, mode: mode}, nil
}

// MessageID returns the identity of the message this flow builds.
func (f *Flow) MessageID() string { return f.open.MessageID() }

// Partial appends delta to the open message and delivers a partial event
// with the cumulative text. It fails once the flow is terminated or the
// sink rejects the event, signalling the producer to stop.
func (f *Flow) Partial(delta string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return fmt.Errorf("stream already terminated")
	}

	content := f.open.Append(delta)
	err := f.sink.Send(Event{
		Type:      TypePartial,
		SessionID: f.sess.ID,
		MessageID: f.open.MessageID(),
		Role:      string(session.RoleAssistant),
		Mode:      f.mode,
		Content:   content,
	})
	if err != nil {
		// Terminal: the client is unreachable, no further events.
		f.done = true
		f.open.Close(nil, "", nil)
		return err
	}
	return nil
}

// Finish closes the message with its provenance metadata and delivers the
// single final event.
func (f *Flow) Finish(sources []retrieval.Source, confidence retrieval.Confidence, additional map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return fmt.Errorf("stream already terminated")
	}
	f.done = true

	content := f.open.Content()
	f.open.Close(sources, confidence, additional)

	return f.sink.Send(Event{
		Type:           TypeFinal,
		SessionID:      f.sess.ID,
		MessageID:      f.open.MessageID(),
		Role:           string(session.RoleAssistant),
		Mode:           f.mode,
		Content:        content,
		Done:           true,
		Sources:        sources,
		Confidence:     confidence,
		AdditionalData: additional,
	})
}

// Fail terminates the flow with exactly one error event that preserves the
// partial text accumulated so far, then closes the message as complete.
func (f *Flow) Fail(failure error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return nil
	}
	f.done = true

	content := f.open.Content()
	f.open.Close(nil, retrieval.ConfidenceLow, nil)

	notice := "generation failed"
	if failure != nil {
		notice = failure.Error()
	}
	text := content
	if text != "" {
		text += "\n\n[response interrupted: " + notice + "]"
	} else {
		text = "[" + notice + "]"
	}

	return f.sink.Send(Event{
		Type:       TypeError,
		SessionID:  f.sess.ID,
		MessageID:  f.open.MessageID(),
		Role:       string(session.RoleAssistant),
		Mode:       f.mode,
		Content:    text,
		Done:       true,
		Error:      notice,
		Confidence: retrieval.ConfidenceLow,
	})
}

// Abandon closes the message without emitting anything. Used when the
// client has disconnected mid-generation.
func (f *Flow) Abandon() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return
	}
	f.done = true
	f.open.Close(nil, "", nil)
}
