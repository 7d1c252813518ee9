package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MsgNarrativeStarted MessageType = "narrative_started"
	MsgNarrativeToken   MessageType = "narrative_token"
	MsgNarrativeReady   MessageType = "narrative_ready"
	MsgProfileUpdated   MessageType = "profile_updated"
	MsgError            MessageType = "error"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub manages WebSocket subscriptions per subject. Any number of clients can
// watch one subject; each gets every message for that subject.
type Hub struct {
	// subjectID -> connID -> conn
	subjectConns map[string]map[string]*Connection

	mu sync.RWMutex

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *BroadcastMessage

	log *slog.Logger
}

// Connection represents one subscribed WebSocket client.
type Connection struct {
	ID        string
	SubjectID string
	Send      chan []byte
	Hub       *Hub
}

// BroadcastMessage is a message to fan out to a subject's subscribers.
type BroadcastMessage struct {
	SubjectID string
	Message   *Message
}

// NewHub creates a new WebSocket hub
func NewHub(log *slog.Logger) *Hub {
	h := &Hub{
		subjectConns: make(map[string]map[string]*Connection),
		register:     make(chan *Connection),
		unregister:   make(chan *Connection),
		broadcast:    make(chan *BroadcastMessage, 256),
		log:          log,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			if h.subjectConns[conn.SubjectID] == nil {
				h.subjectConns[conn.SubjectID] = make(map[string]*Connection)
			}
			h.subjectConns[conn.SubjectID][conn.ID] = conn
			h.mu.Unlock()
			h.log.Debug("ws subscribed", "subjectId", conn.SubjectID, "connId", conn.ID)

		case conn := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.subjectConns[conn.SubjectID]; ok {
				if existing, ok := conns[conn.ID]; ok && existing == conn {
					delete(conns, conn.ID)
					close(conn.Send)
					if len(conns) == 0 {
						delete(h.subjectConns, conn.SubjectID)
					}
				}
			}
			h.mu.Unlock()
			h.log.Debug("ws unsubscribed", "subjectId", conn.SubjectID, "connId", conn.ID)

		case msg := <-h.broadcast:
			h.mu.RLock()
			data, _ := json.Marshal(msg.Message)
			for _, conn := range h.subjectConns[msg.SubjectID] {
				select {
				case conn.Send <- data:
				default:
					// Drop message if buffer full
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// BroadcastToSubject sends a message to every client watching the subject
// (implements service.Broadcaster).
func (h *Hub) BroadcastToSubject(subjectID string, msgType string, payload interface{}) {
	data, _ := json.Marshal(payload)
	h.broadcast <- &BroadcastMessage{
		SubjectID: subjectID,
		Message: &Message{
			Type:    MessageType(msgType),
			Payload: data,
		},
	}
}
