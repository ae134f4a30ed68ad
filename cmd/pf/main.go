package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pressflow/internal/app"
	"pressflow/internal/config"
	"pressflow/internal/db"
	"pressflow/internal/domain"
	"pressflow/internal/engine/auth"
	"pressflow/internal/logging"
	"pressflow/internal/scheduler"
	"pressflow/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "pf",
	Short: "Pressflow CLI",
	Long: `Pressflow runs the press-release workflow: clients submit announcements,
admins draft and review them, clients approve, and admins publish to the public showcase.

Lifecycle: submitted -> draft_generated -> panel_reviewed -> admin_approved -> awaiting_client
-> client_feedback | client_approved -> final_pending -> final_approved -> quality_review
-> quality_approved -> published. Any open release can go to needs_revision or rejected.

The CLI works directly on the workspace database and acts as a local admin unless --role client is given.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		// Existing environment wins over .env.
		if err := godotenv.Load(filepath.Join(workspace, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("PRESSFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-admin", "actor identifier")
	rootCmd.PersistentFlags().String("role", "admin", "role to act as (admin|client)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug|info|warn|error), overrides config")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("role", rootCmd.PersistentFlags().Lookup("role"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(releaseCmd())
	rootCmd.AddCommand(clientCmd())
	rootCmd.AddCommand(adminCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(nudgeCmd())
	rootCmd.AddCommand(configCmd())
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowLegacy bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withApp(ctx, func(ctx context.Context, a *app.App) error {
				cfg := a.Config
				if addr == "" {
					addr = cfg.Server.Addr
				}
				if basePath == "" {
					basePath = cfg.Server.BasePath
				}
				authCfg := server.AuthConfig{
					JWTSecret:              cfg.Auth.JWTSecret,
					Issuer:                 cfg.Auth.Issuer,
					AllowLegacyActorHeader: allowLegacy,
					Logger:                 a.Logger.With("component", "auth"),
				}
				if authCfg.JWTSecret == "" {
					return fmt.Errorf("PRESSFLOW_JWT_SECRET (or auth.jwt_secret) is required for bearer auth")
				}
				handler, err := server.New(server.Config{Engine: a.Engine, BasePath: basePath, Auth: authCfg, Logger: a.Logger})
				if err != nil {
					return err
				}

				relay := server.NewWebhookRelay(a.Engine.Repo, cfg.Webhooks, a.Logger)
				relay.Start(ctx, 0)
				defer relay.Stop()

				if cfg.Nudge.Enabled {
					after, err := cfg.NudgeAfter()
					if err != nil {
						return err
					}
					every, err := cfg.NudgeInterval()
					if err != nil {
						return err
					}
					ticker := scheduler.NewTicker(every)
					log := a.Logger.With("component", "nudge")
					ticker.Start(ctx, func(ctx context.Context, _ time.Time) {
						n, err := a.Engine.RunOnboardingNudges(ctx, after, cfg.Nudge.BatchSize)
						if err != nil {
							log.Error("onboarding nudges failed", "err", err)
							return
						}
						if n > 0 {
							log.Info("onboarding nudges sent", "count", n)
						}
					})
					defer ticker.Stop()
				}

				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				a.Logger.Info("serving pressflow api", "addr", addr, "base_path", basePath, "docs", "/docs")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (default from config)")
	cmd.Flags().BoolVar(&allowLegacy, "allow-legacy-actor-header", false, "accept X-Actor-Id without credentials (local use only)")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create pressflow.yml",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			masked := *cfg
			masked.Auth.JWTSecret = mask(masked.Auth.JWTSecret)
			masked.Email.APIKey = mask(masked.Email.APIKey)
			masked.LLM.APIKey = mask(masked.LLM.APIKey)
			return printJSON(masked)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default pressflow.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	})
	return cmd
}

// --- helpers ---

// loadConfig reads pressflow.yml and layers environment and flag overrides on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOptional(viper.GetString("workspace"))
	if err != nil {
		return nil, err
	}
	if v := viper.GetString("jwt-secret"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := viper.GetString("email-api-key"); v != "" {
		cfg.Email.APIKey = v
	}
	if v := viper.GetString("llm-api-key"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := viper.GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	return cfg, nil
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.NewWithWriter(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	a, err := app.Open(ctx, viper.GetString("workspace"), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// cliActor is the caller the CLI acts as.
func cliActor() (auth.Actor, error) {
	role, err := domain.ParseRole(viper.GetString("role"))
	if err != nil {
		return auth.Actor{}, err
	}
	return auth.Actor{ID: viper.GetString("actor-id"), Role: role, Source: "cli"}, nil
}

func printJSONOrTable(v any, render func()) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	render()
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
