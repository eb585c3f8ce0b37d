package surface

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/chat-monitor/backend/internal/model/chat"
	monitorservice "github.com/zhouzirui/chat-monitor/backend/internal/service/monitor"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Session is the part of the session controller chat surfaces talk to.
type Session interface {
	Participants() chat.Roster
	HandleIncoming(ctx context.Context, sender chat.Identity, text string) (chat.Turn, error)
}

// WebSocketHandler WebSocket 聊天窗口处理器
type WebSocketHandler struct {
	session  Session
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(session Session, hub *Hub) *WebSocketHandler {
	return &WebSocketHandler{
		session: session,
		hub:     hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{participant}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// TextMessage 文本消息
type TextMessage struct {
	Text string `json:"text"`
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	participant, err := h.session.Participants().Resolve(chi.URLParam(r, "participant"))
	if err != nil {
		http.Error(w, "unknown participant", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	c := h.hub.register(participant)
	defer h.hub.unregister(participant, c)

	log.Printf("[websocket] new connection %s for %s", c.id, participant)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.writeLoop(ctx, conn, c)

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	h.sendTo(c, "connected", map[string]any{
		"participant": participant,
		"peers":       h.session.Participants().Peers(participant),
		"count":       h.hub.Count(participant),
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[websocket] read error for %s: %v", participant, err)
			}
			return
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		h.handleMessage(ctx, c, participant, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, c *client, participant chat.Identity, msg *inboundMessage) {
	switch msg.Type {
	case "text":
		h.handleTextMessage(ctx, c, participant, msg.Data)
	case "ping":
		h.sendTo(c, "pong", nil)
	default:
		h.sendError(c, "unsupported message type: "+msg.Type)
	}
}

func (h *WebSocketHandler) handleTextMessage(ctx context.Context, c *client, participant chat.Identity, raw json.RawMessage) {
	var text TextMessage
	if err := json.Unmarshal(raw, &text); err != nil {
		h.sendError(c, "invalid text payload")
		return
	}

	turn, err := h.session.HandleIncoming(ctx, participant, text.Text)
	if err != nil {
		switch {
		case errors.Is(err, monitorservice.ErrEmptyMessage):
			h.sendError(c, "message is empty")
		case errors.Is(err, monitorservice.ErrSessionStopped):
			h.sendError(c, "session stopped")
		default:
			log.Printf("[websocket] handle message from %s failed: %v", participant, err)
			h.sendError(c, "message not delivered")
		}
		return
	}

	h.hub.NoteSent(turn)
}

// writeLoop is the only writer of conn.
func (h *WebSocketHandler) writeLoop(ctx context.Context, conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("[websocket] write failed for connection %s: %v", c.id, err)
				conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				log.Printf("[websocket] ping failed for connection %s: %v", c.id, err)
				conn.Close()
				return
			}
		}
	}
}

func (h *WebSocketHandler) sendTo(c *client, msgType string, data interface{}) {
	msg := outgoingMessage{Type: msgType, Data: data, Timestamp: time.Now().UnixMilli()}
	select {
	case c.send <- msg:
	default:
		log.Printf("[websocket] send buffer full for connection %s, dropping %s", c.id, msgType)
	}
}

func (h *WebSocketHandler) sendError(c *client, message string) {
	h.sendTo(c, "error", map[string]any{"message": message})
}
