package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/chat-monitor/backend/internal/config"
	"github.com/zhouzirui/chat-monitor/backend/internal/handler"
	monitorhandler "github.com/zhouzirui/chat-monitor/backend/internal/handler/monitor"
	"github.com/zhouzirui/chat-monitor/backend/internal/handler/surface"
	monitorservice "github.com/zhouzirui/chat-monitor/backend/internal/service/monitor"
	"github.com/zhouzirui/chat-monitor/backend/internal/service/sentiment"
	"github.com/zhouzirui/chat-monitor/backend/internal/store/alerts"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	analyzer, err := sentiment.New(ctx, cfg)
	if err != nil {
		log.Printf("warning: failed to initialize %s analyzer: %v", cfg.Analyzer.Provider, err)
		log.Println("falling back to keyword heuristics - 请检查模型相关环境变量")
		analyzer = sentiment.HeuristicAnalyzer{}
	} else {
		log.Printf("sentiment analyzer initialized (provider=%s)", cfg.Analyzer.Provider)
	}

	broadcaster := monitorhandler.NewBroadcaster(32)
	sinks := monitorservice.MultiSink{broadcaster}

	var history monitorhandler.History
	if cfg.Monitor.AlertDBPath != "" {
		store, err := alerts.Open(cfg.Monitor.AlertDBPath)
		if err != nil {
			log.Fatalf("failed to open alert journal: %v", err)
		}
		defer store.Close()

		journal := alerts.NewJournal(store, cfg.Monitor.QueueSize)
		defer journal.Close()

		sinks = append(sinks, journal)
		history = journal
		log.Printf("alert journal enabled at %s", cfg.Monitor.AlertDBPath)
	} else {
		log.Println("MONITOR_ALERT_DB 未配置，告警不会持久化")
	}

	session, err := monitorservice.NewController(cfg.Monitor.Session(), analyzer, sinks)
	if err != nil {
		log.Fatalf("failed to create chat session: %v", err)
	}

	hub := surface.NewHub()
	for _, id := range session.Participants() {
		if err := session.RegisterSurface(id, hub.Surface(id)); err != nil {
			log.Fatalf("failed to register surface for %s: %v", id, err)
		}
	}

	session.Start(ctx)
	defer session.Stop()

	router := handler.NewRouter(handler.Dependencies{
		Session:     session,
		Hub:         hub,
		Broadcaster: broadcaster,
		History:     history,
	})

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("chat monitor backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Printf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
