package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/kiloshop/orderform/internal/auth"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Client is one page connection. Pages only listen; anything they send is
// discarded.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	sessionID uuid.UUID
	send      chan []byte
}

func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("websocket read", zap.Stringer("session_id", c.sessionID), zap.Error(err))
			}
			return
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// One event per frame so pages can JSON-decode each message.
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Snapshot returns the first event sent on a new connection, or false when
// the session does not exist.
type Snapshot func(sessionID uuid.UUID) (Event, bool)

// Server upgrades page connections. Origins are checked against the CORS
// allow list; an empty list allows any origin.
type Server struct {
	hub       *Hub
	jwtSecret string
	snapshot  Snapshot
	upgrader  websocket.Upgrader
}

func NewServer(hub *Hub, jwtSecret string, allowedOrigins []string, snapshot Snapshot) *Server {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Server{
		hub:       hub,
		jwtSecret: jwtSecret,
		snapshot:  snapshot,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || allowed["*"] || origin == "" || allowed[origin]
			},
		},
	}
}

// ServeWS handles WS /ws/sessions/{sid}?token=JWT.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := auth.ValidateToken(s.jwtSecret, tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}
	if !claims.CanAccessSession(sessionID) {
		http.Error(w, "session access denied", http.StatusForbidden)
		return
	}

	var first *Event
	if s.snapshot != nil {
		ev, ok := s.snapshot(sessionID)
		if !ok {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		first = &ev
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.hub.logger.Warn("websocket upgrade", zap.Error(err))
		return
	}

	client := &Client{
		hub:       s.hub,
		conn:      conn,
		sessionID: sessionID,
		send:      make(chan []byte, 256),
	}
	if first != nil {
		if msg, err := json.Marshal(*first); err == nil {
			client.send <- msg
		}
	}

	select {
	case s.hub.register <- client:
	case <-s.hub.done:
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
