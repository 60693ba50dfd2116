package infra

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsSendBuffer = 64
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsMaxInbound = 512
)

// Broadcaster delivers an event to every connection in a room.
type Broadcaster interface {
	Broadcast(ctx context.Context, room, event string, data interface{}) error
}

// WSHub manages WebSocket connections and room-based message delivery for
// this process. RedisBroadcaster fans messages out to the hubs of every instance.
type WSHub struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]*WSConn // room -> connID -> conn
	logger *slog.Logger
}

// WSConn is one subscriber's outbound queue.
type WSConn struct {
	ID        string
	Send      chan []byte
	closeOnce sync.Once
}

// NewWSConn creates a connection with a buffered send queue.
func NewWSConn() *WSConn {
	return &WSConn{ID: uuid.NewString(), Send: make(chan []byte, wsSendBuffer)}
}

func (c *WSConn) close() {
	c.closeOnce.Do(func() { close(c.Send) })
}

// WSMessage is the payload sent over WebSocket.
type WSMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub(logger *slog.Logger) *WSHub {
	return &WSHub{
		rooms:  make(map[string]map[string]*WSConn),
		logger: logger,
	}
}

// OperatorRoom is the room an operator's limit board listens on.
func OperatorRoom(operatorID string) string {
	return "operator:" + operatorID
}

// Join adds a connection to a room.
func (h *WSHub) Join(room string, conn *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]*WSConn)
	}
	h.rooms[room][conn.ID] = conn
}

// Leave removes a connection from a room.
func (h *WSHub) Leave(room string, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[room]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Broadcast delivers to local connections only.
func (h *WSHub) Broadcast(_ context.Context, room, event string, data interface{}) error {
	payload, err := json.Marshal(WSMessage{Event: event, Data: data})
	if err != nil {
		return err
	}
	h.deliver(room, payload)
	return nil
}

// deliver drops the message for connections whose buffer is full.
func (h *WSHub) deliver(room string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conn := range h.rooms[room] {
		select {
		case conn.Send <- payload:
		default:
			h.logger.Warn("ws send buffer full", "conn_id", conn.ID, "room", room)
		}
	}
}

// ConnectionCount returns the total number of active connections.
func (h *WSHub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for _, conns := range h.rooms {
		count += len(conns)
	}
	return count
}

// RoomCount returns the number of active rooms.
func (h *WSHub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Serve joins ws to room and pumps messages until the peer goes away or the
// hub shuts down. It blocks for the lifetime of the connection.
func (h *WSHub) Serve(ws *websocket.Conn, room string) {
	conn := NewWSConn()
	h.Join(room, conn)

	done := make(chan struct{})
	go h.writePump(ws, conn, done)
	h.readPump(ws)

	h.Leave(room, conn.ID)
	conn.close()
	<-done
	_ = ws.Close()
}

// readPump discards inbound frames; it exists to process pongs and notice closes.
func (h *WSHub) readPump(ws *websocket.Conn) {
	ws.SetReadLimit(wsMaxInbound)
	_ = ws.SetReadDeadline(time.Now().Add(wsPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := ws.NextReader(); err != nil {
			return
		}
	}
}

func (h *WSHub) writePump(ws *websocket.Conn, conn *WSConn, done chan<- struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
		close(done)
	}()

	for {
		select {
		case msg, ok := <-conn.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Shutdown closes all connections gracefully.
func (h *WSHub) Shutdown(_ context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room, conns := range h.rooms {
		for _, conn := range conns {
			conn.close()
		}
		delete(h.rooms, room)
	}
}
