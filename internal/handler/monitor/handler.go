package monitor

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/chat-monitor/backend/internal/model/monitor"
	monitorservice "github.com/zhouzirui/chat-monitor/backend/internal/service/monitor"
	"github.com/zhouzirui/chat-monitor/backend/pkg/utils"
)

// Resetter triggers a full session reset.
type Resetter interface {
	Reset(ctx context.Context) error
}

// History returns previously delivered alerts, oldest first.
type History interface {
	History(limit int) ([]monitor.Alert, error)
}

// Handler 家长监控端的HTTP处理器
type Handler struct {
	session     Resetter
	broadcaster *Broadcaster
	history     History
	heartbeat   time.Duration
}

// New 创建监控处理器，history 为空时告警历史接口返回空列表
func New(session Resetter, broadcaster *Broadcaster, history History) *Handler {
	return &Handler{
		session:     session,
		broadcaster: broadcaster,
		history:     history,
		heartbeat:   15 * time.Second,
	}
}

// RegisterRoutes 注册监控相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/monitor", func(m chi.Router) {
		m.Get("/stream", h.handleStream)
		m.Get("/alerts", h.handleListAlerts)
		m.Post("/reset", h.handleReset)
	})
}

// handleStream 以SSE推送告警
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)

	events, cancel := h.broadcaster.Subscribe()
	defer cancel()

	ctx := r.Context()
	log.Printf("[monitor] opening alert stream (subscribers=%d)", h.broadcaster.Subscribers())

	if err := utils.SendSSEEvent(w, flusher, "status", map[string]any{"message": "stream established"}); err != nil {
		log.Printf("[monitor] %v", err)
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[monitor] closing alert stream")
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := utils.SendSSEEvent(w, flusher, event.Name, event.Data); err != nil {
				log.Printf("[monitor] %v", err)
				return
			}
		case t := <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat "+t.UTC().Format(time.RFC3339)); err != nil {
				return
			}
		}
	}
}

// handleListAlerts 返回告警历史
func (h *Handler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		val, err := strconv.Atoi(raw)
		if err != nil || val < 0 {
			utils.RespondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = val
	}

	alerts := []monitor.Alert{}
	if h.history != nil {
		stored, err := h.history.History(limit)
		if err != nil {
			log.Printf("[monitor] load alert history failed: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "failed to load alerts")
			return
		}
		if stored != nil {
			alerts = stored
		}
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

// handleReset 重置整个会话
func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Reset(r.Context()); err != nil {
		if errors.Is(err, monitorservice.ErrSessionStopped) || errors.Is(err, monitorservice.ErrSessionNotStarted) {
			utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
