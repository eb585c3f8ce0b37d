package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/chat-monitor/backend/internal/handler/chat"
	"github.com/zhouzirui/chat-monitor/backend/internal/handler/monitor"
	"github.com/zhouzirui/chat-monitor/backend/internal/handler/surface"
	middlewarePkg "github.com/zhouzirui/chat-monitor/backend/internal/middleware"
	monitorservice "github.com/zhouzirui/chat-monitor/backend/internal/service/monitor"
	"github.com/zhouzirui/chat-monitor/backend/pkg/utils"
)

// Dependencies groups everything the HTTP layer talks to.
type Dependencies struct {
	Session     *monitorservice.Controller
	Hub         *surface.Hub
	Broadcaster *monitor.Broadcaster
	// History may be nil when alerts are not journaled.
	History monitor.History
}

// NewRouter wires HTTP routes to the chat session.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	chatHandler := chat.New(deps.Session, deps.Hub)
	monitorHandler := monitor.New(deps.Session, deps.Broadcaster, deps.History)
	wsHandler := surface.NewWebSocketHandler(deps.Session, deps.Hub)

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)
		monitorHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)
	})

	return r
}
