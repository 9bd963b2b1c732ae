package session

import (
	"context"
	"errors"
	"testing"

	"github.com/ziadkadry99/docchat/internal/retrieval"
)

func inScope(s *Session, id string) bool {
	for _, got := range s.Scope() {
		if got == id {
			return true
		}
	}
	return false
}

func TestSingleOpenMessage(t *testing.T) {
	sess := newSession()

	open, err := sess.StartAssistant()
	if err != nil {
		t.Fatalf("StartAssistant failed: %v", err)
	}

	if _, err := sess.StartAssistant(); !errors.Is(err, ErrMessageOpen) {
		t.Errorf("second StartAssistant: expected ErrMessageOpen, got %v", err)
	}

	open.Close(nil, "", nil)

	if _, err := sess.StartAssistant(); err != nil {
		t.Errorf("StartAssistant after close failed: %v", err)
	}
}

func TestOpenAppendCumulative(t *testing.T) {
	sess := newSession()
	open, err := sess.StartAssistant()
	if err != nil {
		t.Fatalf("StartAssistant failed: %v", err)
	}

	if got := open.Append("The answer"); got != "The answer" {
		t.Errorf("first append: got %q", got)
	}
	if got := open.Append(" is 42."); got != "The answer is 42." {
		t.Errorf("second append: got %q", got)
	}
	if got := open.Content(); got != "The answer is 42." {
		t.Errorf("Content: got %q", got)
	}
}

func TestOpenCloseRecordsMetadata(t *testing.T) {
	sess := newSession()
	open, err := sess.StartAssistant()
	if err != nil {
		t.Fatalf("StartAssistant failed: %v", err)
	}
	open.Append("answer")

	sources := []retrieval.Source{{DocumentID: "abc", Seq: 2, Score: 0.9}}
	open.Close(sources, retrieval.ConfidenceHigh, map[string]any{"tables": 1})

	// Double close must not disturb anything.
	open.Close(nil, retrieval.ConfidenceLow, nil)

	msgs := sess.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	msg := msgs[0]
	if msg.Content != "answer" {
		t.Errorf("content: got %q", msg.Content)
	}
	if msg.Confidence != retrieval.ConfidenceHigh {
		t.Errorf("second close overwrote metadata: confidence %s", msg.Confidence)
	}
	if len(msg.Sources) != 1 || msg.Sources[0].DocumentID != "abc" {
		t.Errorf("sources not recorded: %+v", msg.Sources)
	}
}

func TestMessagesAppendOnly(t *testing.T) {
	sess := newSession()
	sess.AppendUser("first question")
	sess.AppendAssistant("first answer", nil, retrieval.ConfidenceLow, nil)
	sess.AppendUser("second question")

	msgs := sess.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[1].Role != RoleAssistant || msgs[2].Role != RoleUser {
		t.Errorf("roles out of order: %v %v %v", msgs[0].Role, msgs[1].Role, msgs[2].Role)
	}
	if msgs[0].ID == msgs[2].ID {
		t.Error("messages share an ID")
	}
}

func TestScopeSortedAndEmptyMeansNone(t *testing.T) {
	sess := newSession()

	if scope := sess.Scope(); scope != nil {
		t.Errorf("empty scope must be nil, got %v", scope)
	}

	sess.AddToScope("zzz", "aaa", "mmm")
	scope := sess.Scope()
	if len(scope) != 3 {
		t.Fatalf("expected 3 ids, got %d", len(scope))
	}
	if scope[0] != "aaa" || scope[1] != "mmm" || scope[2] != "zzz" {
		t.Errorf("scope not sorted: %v", scope)
	}
	if scope.All() {
		t.Error("a populated session scope must never read as all documents")
	}

	sess.RemoveFromScope("mmm")
	if inScope(sess, "mmm") {
		t.Error("removed id still in scope")
	}

	sess.ClearScope()
	if scope := sess.Scope(); scope != nil {
		t.Errorf("cleared scope must be nil, got %v", scope)
	}
}

func TestCancelInvokesAndClears(t *testing.T) {
	sess := newSession()

	ctx, cancel := context.WithCancel(context.Background())
	sess.SetCancel(cancel)
	sess.Cancel()

	if ctx.Err() == nil {
		t.Error("cancel function was not invoked")
	}

	// Cancel with nothing in flight is a no-op.
	sess.Cancel()
}

func TestRegistryLifecycle(t *testing.T) {
	reg := NewRegistry()

	a := reg.Create()
	b := reg.Create()
	if a.ID == b.ID {
		t.Fatal("sessions share an ID")
	}
	if reg.Len() != 2 {
		t.Errorf("expected 2 sessions, got %d", reg.Len())
	}

	if got := reg.Get(a.ID); got != a {
		t.Error("Get returned a different session")
	}

	// Scope changes in one session must not touch the other.
	a.AddToScope("doc-1")
	if inScope(b, "doc-1") {
		t.Error("scope leaked between sessions")
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.SetCancel(cancel)
	reg.Remove(a.ID)
	if ctx.Err() == nil {
		t.Error("removing a session must cancel its in-flight work")
	}
	if reg.Get(a.ID) != nil {
		t.Error("removed session still retrievable")
	}
	if reg.Len() != 1 {
		t.Errorf("expected 1 session after removal, got %d", reg.Len())
	}
}
