package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opopescu/billchat/internal/auth"
	"github.com/opopescu/billchat/internal/comparison"
	"github.com/opopescu/billchat/internal/config"
	"github.com/opopescu/billchat/internal/conversation"
	"github.com/opopescu/billchat/internal/llm"
	"github.com/opopescu/billchat/internal/middleware"
	"github.com/opopescu/billchat/internal/service"
	"github.com/opopescu/billchat/internal/storage/sqlite"
	"github.com/opopescu/billchat/pkg/logging"
)

func main() {
	logging.Setup()
	cfg := config.Load()
	ctx := context.Background()

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.DBPath)

	completer, err := llm.NewGeminiClient(ctx, cfg.GeminiModel)
	if err != nil {
		slog.Error("Failed to initialize completion client", "error", err)
		os.Exit(1)
	}

	engine := comparison.NewEngine(store, cfg.AnomalyThreshold)
	orch := conversation.New(store, engine, completer,
		conversation.WithWindow(cfg.HistoryWindow),
		conversation.WithCompletionTimeout(cfg.CompletionTimeout),
	)

	api := http.NewServeMux()
	service.NewChatService(store, engine, orch).Register(api)

	var apiHandler http.Handler = api
	if cfg.AuthSecret != "" {
		jwtManager := auth.NewJWTManager(cfg.AuthSecret, 24*time.Hour)
		apiHandler = middleware.RequireAuth(jwtManager, apiHandler)
	} else {
		slog.Warn("AUTH_SECRET not set; trusting user_id from requests")
	}

	// Metrics stay outside auth so scrapers don't need a user token.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", apiHandler)
	handler := middleware.Logging(mux)

	addr := fmt.Sprintf(":%d", cfg.Port)
	slog.Info("Server starting", "address", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
