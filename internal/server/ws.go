package server

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/docchat/internal/agent"
	"github.com/ziadkadry99/docchat/internal/stream"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsMessage is the incoming websocket message format.
type wsMessage struct {
	Type      string  `json:"type"` // "send_message" or "cancel"
	AgentMode string  `json:"agent_mode"`
	Message   string  `json:"message"`
	File      *wsFile `json:"file,omitempty"`
}

// wsFile is a file attached to a chat message, base64-encoded.
type wsFile struct {
	Name string `json:"name"`
	Data string `json:"data"`
}

// wsAck confirms receipt of a message before streaming begins.
type wsAck struct {
	Type      string `json:"type"` // "message_received"
	SessionID string `json:"session_id"`
	AgentMode string `json:"agent_mode"`
}

// wsSink serializes stream events onto one websocket connection. Gorilla
// connections allow a single concurrent writer, hence the mutex.
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) Send(ev stream.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(ev)
}

func (s *wsSink) sendJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// handleWebSocket owns one chat connection: one session per connection,
// messages processed in order, session torn down on disconnect.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	sess := s.sessions.Create()
	defer s.sessions.Remove(sess.ID)

	sink := &wsSink{conn: conn}
	if err := sink.sendJSON(wsAck{Type: "session_started", SessionID: sess.ID}); err != nil {
		return
	}

	// One response streams at a time per connection. Streaming runs off
	// the read loop so cancel frames stay readable mid-generation; the
	// gate rejects a second send_message while one is in flight.
	inFlight := make(chan struct{}, 1)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("server: websocket read: %v", err)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.sendWSError(sink, sess.ID, "invalid message format")
			continue
		}

		switch msg.Type {
		case "send_message":
			select {
			case inFlight <- struct{}{}:
				go func(msg wsMessage) {
					defer func() { <-inFlight }()
					s.handleSendMessage(r, sink, sess.ID, msg)
				}(msg)
			default:
				s.sendWSError(sink, sess.ID, "a response is already streaming")
			}
		case "cancel":
			sess.Cancel()
		default:
			s.sendWSError(sink, sess.ID, "unknown message type: "+msg.Type)
		}
	}
}

func (s *Server) handleSendMessage(r *http.Request, sink *wsSink, sessionID string, msg wsMessage) {
	sess := s.sessions.Get(sessionID)
	if sess == nil {
		s.sendWSError(sink, sessionID, "session expired")
		return
	}
	if msg.Message == "" && msg.File == nil {
		s.sendWSError(sink, sessionID, "message is required")
		return
	}

	mode, err := agent.ParseMode(msg.AgentMode)
	if err != nil {
		s.sendWSError(sink, sessionID, err.Error())
		return
	}

	req := agent.Request{Mode: mode, Message: msg.Message}
	if msg.File != nil {
		data, err := base64.StdEncoding.DecodeString(msg.File.Data)
		if err != nil {
			s.sendWSError(sink, sessionID, "file data is not valid base64")
			return
		}
		if int64(len(data)) > s.cfg.MaxUploadBytes {
			s.sendWSError(sink, sessionID, "file exceeds the upload size limit")
			return
		}
		req.File = &agent.File{Name: msg.File.Name, Bytes: data}
	}

	if err := sink.sendJSON(wsAck{Type: "message_received", SessionID: sessionID, AgentMode: msg.AgentMode}); err != nil {
		return
	}

	s.agent.Handle(r.Context(), sess, req, sink)
}

func (s *Server) sendWSError(sink *wsSink, sessionID, message string) {
	ev := stream.Event{
		Type:      stream.TypeError,
		SessionID: sessionID,
		Error:     message,
		Done:      true,
	}
	if err := sink.Send(ev); err != nil {
		log.Printf("server: websocket write error: %v", err)
	}
}
