// ABOUTME: Broadcast hub managing connected client sessions
// ABOUTME: Fans events out per-session without letting one session block another
package hub

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrSessionUnavailable indicates a send to a closed or backlogged session.
var ErrSessionUnavailable = errors.New("session closed or backlogged")

const (
	sendBufferSize = 64
	writeDeadline  = 10 * time.Second
	pingInterval   = 30 * time.Second
)

// Session is one live client connection capable of receiving broadcasts.
type Session struct {
	ID   string
	conn *websocket.Conn

	send chan []byte
	done chan struct{}
	once sync.Once
}

// Hub maintains the set of connected sessions. Delivery is best-effort:
// a session that cannot keep up or whose connection fails is removed and
// logged, never retried, and never delays delivery to other sessions.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{sessions: make(map[string]*Session)}
}

// Add registers conn as a new session and starts its writer goroutine.
// The caller keeps ownership of the read side of the connection.
func (h *Hub) Add(conn *websocket.Conn) *Session {
	s := &Session{
		ID:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.sessions[s.ID] = s
	count := len(h.sessions)
	h.mu.Unlock()

	go h.writeLoop(s)

	log.Printf("Session connected: %s (%d total)", s.ID, count)
	return s
}

// Remove unregisters the session and closes its connection. Idempotent.
func (h *Hub) Remove(s *Session) {
	h.mu.Lock()
	_, known := h.sessions[s.ID]
	delete(h.sessions, s.ID)
	count := len(h.sessions)
	h.mu.Unlock()

	s.close()

	if known {
		log.Printf("Session disconnected: %s (%d remaining)", s.ID, count)
	}
}

// Count returns the number of connected sessions.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Broadcast delivers msg to every currently registered session. The
// message is marshaled once; enqueueing never blocks, and a session with
// a full buffer is dropped rather than stalling the producer.
func (h *Hub) Broadcast(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshaling broadcast: %v", err)
		return
	}

	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		if !s.enqueue(data) {
			log.Printf("Session %s send buffer full, dropping session", s.ID)
			h.Remove(s)
		}
	}
}

// writeLoop drains the session's send queue onto the wire and keeps the
// connection alive with pings. Any write failure removes the session.
func (h *Hub) writeLoop(s *Session) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("Error writing to session %s: %v", s.ID, err)
				h.Remove(s)
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				h.Remove(s)
				return
			}
		case <-s.done:
			return
		}
	}
}

// Send queues msg for this session only, for per-requester replies.
func (s *Session) Send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if !s.enqueue(data) {
		return ErrSessionUnavailable
	}
	return nil
}

func (s *Session) enqueue(data []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

func (s *Session) close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}
