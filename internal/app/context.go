package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"pressflow/internal/config"
	"pressflow/internal/db"
	"pressflow/internal/dispatch"
	"pressflow/internal/engine"
	"pressflow/internal/llm"
	"pressflow/internal/migrate"
	"pressflow/internal/notify"
)

// Notifier is everything the service sends by email.
type Notifier interface {
	dispatch.Notifier
	engine.OnboardingNotifier
}

// App holds the opened database and the wired engine for one workspace.
type App struct {
	DB       *sql.DB
	Config   *config.Config
	Engine   engine.Engine
	Notifier Notifier
	Logger   *slog.Logger
}

// Open opens and migrates the workspace database and wires the engine from cfg.
func Open(ctx context.Context, workspace string, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	n := NewNotifier(cfg, logger)
	return &App{
		DB:       conn,
		Config:   cfg,
		Engine:   Wire(conn, cfg, n, logger),
		Notifier: n,
		Logger:   logger,
	}, nil
}

func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

// NewNotifier uses the mail relay when one is configured and logs otherwise.
func NewNotifier(cfg *config.Config, logger *slog.Logger) Notifier {
	if cfg.Email.RelayURL == "" {
		return notify.LogNotifier{Logger: logger, From: cfg.Email.From, PortalURL: cfg.Email.PortalURL}
	}
	return notify.NewRelayNotifier(notify.RelayConfig{
		Endpoint:  cfg.Email.RelayURL,
		APIKey:    cfg.Email.APIKey,
		From:      cfg.Email.From,
		PortalURL: cfg.Email.PortalURL,
	})
}

// Wire builds an engine with its collaborators. Without an LLM key the draft,
// critique and rewrite actions report the collaborator as unavailable.
func Wire(conn *sql.DB, cfg *config.Config, n Notifier, logger *slog.Logger) engine.Engine {
	eng := engine.New(conn)
	eng.Logger = logger
	eng.Nudges = n
	eng.Dispatch = dispatch.Dispatcher{
		Notifier:  n,
		Showcases: eng.Repo,
		Clients:   eng.Repo,
		Logger:    logger.With("component", "dispatch"),
		Timeout:   cfg.DispatchTimeout(),
		Now:       time.Now,
	}
	if cfg.LLM.APIKey != "" && cfg.LLM.Endpoint != "" {
		chat := llm.NewChatClient(llm.Config{
			Endpoint: cfg.LLM.Endpoint,
			Model:    cfg.LLM.Model,
			APIKey:   cfg.LLM.APIKey,
			Timeout:  cfg.LLMTimeout(),
		})
		eng.Drafts = chat
		eng.Critic = chat
		eng.Rewriter = chat
	}
	return eng
}
