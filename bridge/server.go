package bridge

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/membo-ai/studykit/errcode"
	"github.com/membo-ai/studykit/events"
	"github.com/membo-ai/studykit/logger"
)

// Connection constants.
const (
	// writeWait is the write deadline for each outbound message.
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong before dropping the peer.
	pongWait = 60 * time.Second

	// pingPeriod is the keepalive interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize caps inbound command frames.
	maxMessageSize = 64 * 1024

	// sendBuffer is the per-connection outbound queue. Peers that fall
	// this far behind the event feed are disconnected.
	sendBuffer = 64
)

// Server serves the command protocol over WebSocket. Each frame from
// the peer is one Command; each frame to the peer is a response or an
// engine event, distinguished by the "kind" field.
type Server struct {
	bridge   *Bridge
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[*wsConn]struct{}
	closed bool
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithCheckOrigin overrides the websocket origin check.
func WithCheckOrigin(check func(*http.Request) bool) ServerOption {
	return func(s *Server) { s.upgrader.CheckOrigin = check }
}

// NewServer creates a WebSocket server over the bridge. When bus is
// non-nil every published engine event is forwarded to all connected
// peers.
func NewServer(b *Bridge, bus *events.EventBus, opts ...ServerOption) *Server {
	s := &Server{
		bridge: b,
		conns:  make(map[*wsConn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if bus != nil {
		bus.SubscribeAll(s.broadcast)
	}
	return s
}

// ServeHTTP upgrades the request and runs the connection until the
// peer disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &wsConn{server: s, ws: ws, send: make(chan []byte, sendBuffer)}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ws.Close()
		return
	}
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	go c.writePump()
	c.readPump(r)
}

// Close disconnects all peers and rejects new connections.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	conns := make([]*wsConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
}

// eventMessage is the outbound shape of one engine event.
type eventMessage struct {
	Kind      string           `json:"kind"`
	Type      events.EventType `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	SessionID string           `json:"sessionId,omitempty"`
	AttemptID string           `json:"attemptId,omitempty"`
	Data      events.EventData `json:"data,omitempty"`
}

// responseMessage wraps a command response with its kind discriminator.
type responseMessage struct {
	Kind string `json:"kind"`
	Response
}

// broadcast fans one engine event out to every connected peer. Peers
// with a full send queue are dropped rather than blocking the bus.
func (s *Server) broadcast(evt *events.Event) {
	raw, err := json.Marshal(eventMessage{
		Kind:      "event",
		Type:      evt.Type,
		Timestamp: evt.Timestamp,
		SessionID: evt.SessionID,
		AttemptID: evt.AttemptID,
		Data:      evt.Data,
	})
	if err != nil {
		logger.Warn("encoding event failed", "type", string(evt.Type), "error", err)
		return
	}

	s.mu.Lock()
	conns := make([]*wsConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if !c.enqueue(raw) {
			logger.Warn("peer too slow for event feed, dropping connection")
			c.close()
		}
	}
}

func (s *Server) drop(c *wsConn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

// wsConn is one peer connection. All writes go through the send
// channel so the websocket sees a single writer.
type wsConn struct {
	server *Server
	ws     *websocket.Conn
	send   chan []byte

	closeOnce sync.Once
}

func (c *wsConn) readPump(r *http.Request) {
	defer c.close()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("websocket read failed", "error", err)
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			c.reply(Response{Error: &ErrorBody{
				Code:    errcode.CodeValidation,
				Message: "malformed command: " + err.Error(),
			}})
			continue
		}
		c.reply(c.server.bridge.Dispatch(r.Context(), cmd))
	}
}

func (c *wsConn) reply(resp Response) {
	raw, err := json.Marshal(responseMessage{Kind: "response", Response: resp})
	if err != nil {
		logger.Warn("encoding response failed", "id", resp.ID, "error", err)
		return
	}
	if !c.enqueue(raw) {
		c.close()
	}
}

// enqueue queues a frame for the writer. Returns false when the queue
// is full or the connection is closing.
func (c *wsConn) enqueue(raw []byte) bool {
	defer func() {
		// Raced with close; the frame is lost with the connection.
		_ = recover()
	}()
	select {
	case c.send <- raw:
		return true
	default:
		return false
	}
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case raw, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsConn) close() {
	c.closeOnce.Do(func() {
		c.server.drop(c)
		close(c.send)
	})
}
