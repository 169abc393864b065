package panel

import (
	"net/http"
	"time"

	"github.com/file-panel/backend/internal/upload"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// WebSocket message types
const (
	// Client -> Server messages
	MsgTypePing   = "ping"
	MsgTypeUpload = "upload"
	MsgTypeRemove = "remove"

	// Server -> Client messages
	MsgTypeSnapshot = "snapshot"
	MsgTypeEvent    = "event"
	MsgTypeAck      = "ack"
	MsgTypePong     = "pong"
	MsgTypeError    = "error"
)

// WSMessage is every message on the panel socket.
type WSMessage struct {
	Type       string        `json:"type"`
	ID         string        `json:"id,omitempty"`
	Event      *upload.Event `json:"event,omitempty"`
	Entries    []upload.View `json:"entries,omitempty"`
	Dispatched int           `json:"dispatched,omitempty"`
	Error      string        `json:"error,omitempty"`
	Timestamp  int64         `json:"timestamp"`
}

// WebSocketHandler streams manager events to connected pages.
type WebSocketHandler struct {
	manager  *upload.Manager
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(manager *upload.Manager) *WebSocketHandler {
	return &WebSocketHandler{
		manager: manager,
		upgrader: websocket.Upgrader{
			// the panel listens on loopback by default
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
		},
	}
}

// HandleWebSocket sends a snapshot of all entries, then every event.
// Incoming messages can trigger uploads and removals.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	events, unsubscribe := h.manager.Subscribe()
	defer unsubscribe()

	logger.Debugf("[WebSocket] client connected: %s", c.RealIP())

	done := make(chan struct{})
	defer close(done)
	replies := make(chan WSMessage, 8)
	closed := make(chan struct{})
	go h.readLoop(ws, replies, closed, done)

	if err := ws.WriteJSON(stamp(WSMessage{Type: MsgTypeSnapshot, Entries: views(h.manager.Entries())})); err != nil {
		return nil
	}

	for {
		var msg WSMessage
		select {
		case ev, ok := <-events:
			if !ok {
				ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(time.Second))
				return nil
			}
			msg = WSMessage{Type: MsgTypeEvent, Event: &ev}
		case msg = <-replies:
		case <-closed:
			logger.Debugf("[WebSocket] client disconnected: %s", c.RealIP())
			return nil
		}

		if err := ws.WriteJSON(stamp(msg)); err != nil {
			logger.Debugf("[WebSocket] write failed: %v", err)
			return nil
		}
	}
}

// readLoop handles client messages until the connection fails. Writes stay on
// the handler goroutine; replies are passed back over a channel.
func (h *WebSocketHandler) readLoop(ws *websocket.Conn, replies chan<- WSMessage, closed, done chan struct{}) {
	defer close(closed)

	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warnf("[WebSocket] connection error: %v", err)
			}
			return
		}

		reply := h.handleMessage(msg)
		select {
		case replies <- reply:
		case <-done:
			return
		}
	}
}

func (h *WebSocketHandler) handleMessage(msg WSMessage) WSMessage {
	switch msg.Type {
	case MsgTypePing:
		return WSMessage{Type: MsgTypePong}
	case MsgTypeUpload:
		return WSMessage{Type: MsgTypeAck, Dispatched: h.manager.UploadAll()}
	case MsgTypeRemove:
		if err := h.manager.Remove(msg.ID); err != nil {
			return WSMessage{Type: MsgTypeError, ID: msg.ID, Error: err.Error()}
		}
		return WSMessage{Type: MsgTypeAck, ID: msg.ID}
	default:
		return WSMessage{Type: MsgTypeError, Error: "unknown message type: " + msg.Type}
	}
}

func stamp(msg WSMessage) WSMessage {
	msg.Timestamp = time.Now().UnixMilli()
	return msg
}
