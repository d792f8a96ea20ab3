package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/sqlchat/sqlchat/internal/auth"
	"github.com/sqlchat/sqlchat/internal/config"
	"github.com/sqlchat/sqlchat/internal/conversation"
	"github.com/sqlchat/sqlchat/internal/livedb"
	"github.com/sqlchat/sqlchat/internal/llm"
	"github.com/sqlchat/sqlchat/internal/observability"
	"github.com/sqlchat/sqlchat/internal/pipeline"
	"github.com/sqlchat/sqlchat/internal/session"
	"github.com/sqlchat/sqlchat/internal/tui"
)

func main() {
	variantFlag := flag.String("variant", "mock", "conversation variant: mock|live")
	logFile := flag.String("log-file", "", "write structured logs to this file")
	flag.Parse()

	cfg, err := config.LoadFromEnv("sqlchat")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	variant, err := conversation.ParseVariant(*variantFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// The terminal is owned by the UI, so logs go to a file or nowhere.
	logger := observability.NopLogger()
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()
		logger = observability.NewLogger(cfg, f)
	}

	ctx := context.Background()
	completer, err := llm.New(ctx, cfg.AI)
	if err != nil {
		fmt.Fprintf(os.Stderr, "completion client: %v\n", err)
		os.Exit(1)
	}
	chatPipeline := pipeline.New(nil, completer,
		pipeline.WithStageTimeout(cfg.AI.Timeout),
		pipeline.WithLogger(logger),
	)
	connector := session.LiveConnector(livedb.Options{
		SampleRows:     cfg.Live.SchemaSampleRows,
		ReadOnly:       cfg.Live.ReadOnly,
		MaxOpenConns:   cfg.Live.MaxOpenConns,
		ConnectTimeout: cfg.Live.ConnectTimeout,
	})
	chat := session.New(uuid.NewString(), auth.Anonymous, variant, chatPipeline, connector, logger)
	defer func() { _ = chat.Close() }()

	provider, model := llm.Describe(completer)
	logger.Info("starting chat shell",
		slog.String("variant", string(variant)),
		slog.String("session_id", chat.ID()),
		slog.String("ai_provider", provider),
		slog.String("ai_model", model),
	)
	program := tea.NewProgram(tui.New(ctx, chat), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tui error: %v\n", err)
		os.Exit(1)
	}
}
