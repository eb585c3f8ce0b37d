package chat

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/chat-monitor/backend/internal/model/chat"
	monitorservice "github.com/zhouzirui/chat-monitor/backend/internal/service/monitor"
	"github.com/zhouzirui/chat-monitor/backend/pkg/utils"
)

// Session is the part of the session controller the HTTP API needs.
type Session interface {
	Participants() chat.Roster
	WindowSize() int
	HandleIncoming(ctx context.Context, sender chat.Identity, text string) (chat.Turn, error)
	Snapshot(ctx context.Context) (monitorservice.State, error)
}

// SentNotifier is told about messages accepted through the HTTP API.
type SentNotifier interface {
	NoteSent(turn chat.Turn)
}

// Handler 聊天服务的HTTP处理器
type Handler struct {
	session  Session
	notifier SentNotifier
}

// New 创建聊天处理器，notifier 可以为空
func New(session Session, notifier SentNotifier) *Handler {
	return &Handler{
		session:  session,
		notifier: notifier,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/participants", h.handleParticipants)
	r.Post("/messages", h.handleSendMessage)
	r.Get("/transcript", h.handleTranscript)
}

// handleParticipants 返回会话参与者
func (h *Handler) handleParticipants(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"participants": h.session.Participants(),
		"windowSize":   h.session.WindowSize(),
	})
}

// handleSendMessage 以某个参与者的身份发送消息
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Sender  string `json:"sender"`
		Message string `json:"message"`
	}

	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if payload.Sender == "" {
		utils.RespondError(w, http.StatusBadRequest, "sender is required")
		return
	}

	sender, err := h.session.Participants().Resolve(payload.Sender)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	turn, err := h.session.HandleIncoming(r.Context(), sender, payload.Message)
	if err != nil {
		utils.RespondError(w, statusFor(err), err.Error())
		return
	}

	if h.notifier != nil {
		h.notifier.NoteSent(turn)
	}

	utils.RespondJSON(w, http.StatusAccepted, turn)
}

// handleTranscript 返回当前会话快照
func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	state, err := h.session.Snapshot(r.Context())
	if err != nil {
		utils.RespondError(w, statusFor(err), err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, state)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, chat.ErrUnknownParticipant), errors.Is(err, monitorservice.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, monitorservice.ErrSessionStopped), errors.Is(err, monitorservice.ErrSessionNotStarted):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
