package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sqlchat/sqlchat/internal/api"
	"github.com/sqlchat/sqlchat/internal/archive"
	"github.com/sqlchat/sqlchat/internal/auth"
	"github.com/sqlchat/sqlchat/internal/config"
	"github.com/sqlchat/sqlchat/internal/livedb"
	"github.com/sqlchat/sqlchat/internal/llm"
	"github.com/sqlchat/sqlchat/internal/observability"
	"github.com/sqlchat/sqlchat/internal/pipeline"
	"github.com/sqlchat/sqlchat/internal/session"
	s3store "github.com/sqlchat/sqlchat/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("sqlchat-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	completer, err := llm.New(context.Background(), cfg.AI)
	if err != nil {
		logger.Error("failed to initialize completion client", slog.Any("error", err))
		os.Exit(1)
	}
	chatPipeline := pipeline.New(nil, completer,
		pipeline.WithStageTimeout(cfg.AI.Timeout),
		pipeline.WithLogger(logger),
	)
	sessions := session.NewManager(session.ManagerConfig{
		Pipeline: chatPipeline,
		Connector: session.LiveConnector(livedb.Options{
			SampleRows:     cfg.Live.SchemaSampleRows,
			ReadOnly:       cfg.Live.ReadOnly,
			MaxOpenConns:   cfg.Live.MaxOpenConns,
			ConnectTimeout: cfg.Live.ConnectTimeout,
		}),
		MaxSessions: cfg.Session.MaxSessions,
		IdleTTL:     cfg.Session.IdleTTL,
		Logger:      logger,
	})
	defer func() { _ = sessions.Close() }()

	deps := api.Dependencies{
		Logger:   logger,
		Sessions: sessions,
		UI:       api.ChatUI(),
		Readiness: api.CombineReadinessChecks(
			api.CheckAIConfig(cfg),
			api.CheckArchiveConfig(cfg),
		),
		DependencyTimeout: time.Second,
	}
	if cfg.Archive.Enabled {
		store, err := s3store.New(context.Background(), cfg.Archive)
		if err != nil {
			logger.Error("failed to initialize transcript archive", slog.Any("error", err))
			os.Exit(1)
		}
		deps.Archiver = archive.New(store)
		deps.Readiness = api.CombineReadinessChecks(deps.Readiness, store.Ready)
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sessions.Run(ctx, cfg.Session.SweepInterval)

	go func() {
		provider, model := llm.Describe(completer)
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("ai_provider", provider),
			slog.String("ai_model", model),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
