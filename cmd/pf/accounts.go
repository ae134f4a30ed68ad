package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"pressflow/internal/app"
	"pressflow/internal/domain"
	"pressflow/internal/engine"
	"pressflow/internal/server"
)

func clientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Manage clients",
	}
	var opts engine.ClientOptions
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a client",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := cliActor()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				c, err := a.Engine.CreateClient(ctx, actor, opts)
				if err != nil {
					return err
				}
				return printJSON(c)
			})
		},
	}
	add.Flags().StringVar(&opts.ID, "id", "", "client id (default: generated)")
	add.Flags().StringVar(&opts.Email, "email", "", "contact email")
	add.Flags().StringVar(&opts.Name, "name", "", "display name")
	_ = add.MarkFlagRequired("email")
	cmd.AddCommand(add)
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := cliActor()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.ListClients(ctx, actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(items, func() {
					tw := table.NewWriter()
					tw.SetOutputMirror(os.Stdout)
					tw.AppendHeader(table.Row{"ID", "Email", "Name", "Created", "Nudged"})
					for _, c := range items {
						tw.AppendRow(table.Row{c.ID, c.Email, c.Name, c.CreatedAt, deref(c.NudgedAt)})
					}
					tw.Render()
				})
			})
		},
	})
	return cmd
}

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage the admin roster",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "grant <actor-id>",
		Short: "Grant the admin role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := cliActor()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Engine.GrantAdmin(ctx, actor, args[0])
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "revoke <actor-id>",
		Short: "Revoke the admin role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := cliActor()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Engine.RevokeAdmin(ctx, actor, args[0])
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List admins",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := cliActor()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.ListAdmins(ctx, actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(items, func() {
					tw := table.NewWriter()
					tw.SetOutputMirror(os.Stdout)
					tw.AppendHeader(table.Row{"Actor", "Granted by", "Since"})
					for _, ad := range items {
						tw.AppendRow(table.Row{ad.ActorID, ad.GrantedBy, ad.CreatedAt})
					}
					tw.Render()
				})
			})
		},
	})
	return cmd
}

func apikeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys",
	}
	var actorID, role, name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an API key; the key is printed once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				key, plain, err := a.Engine.CreateAPIKey(ctx, actorID, domain.Role(role), name)
				if err != nil {
					return err
				}
				return printJSON(map[string]any{
					"id":       key.ID,
					"actor_id": key.ActorID,
					"role":     key.Role,
					"name":     key.Name,
					"key":      plain,
				})
			})
		},
	}
	create.Flags().StringVar(&actorID, "actor", "", "actor the key authenticates as")
	create.Flags().StringVar(&role, "key-role", string(domain.RoleClient), "client or admin")
	create.Flags().StringVar(&name, "name", "", "label")
	_ = create.MarkFlagRequired("actor")
	cmd.AddCommand(create)

	var listActor string
	list := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.Repo.ListAPIKeys(ctx, listActor)
				if err != nil {
					return err
				}
				return printJSONOrTable(items, func() {
					tw := table.NewWriter()
					tw.SetOutputMirror(os.Stdout)
					tw.AppendHeader(table.Row{"ID", "Actor", "Role", "Name", "Created"})
					for _, k := range items {
						tw.AppendRow(table.Row{k.ID, k.ActorID, k.Role, k.Name, k.CreatedAt})
					}
					tw.Render()
				})
			})
		},
	}
	list.Flags().StringVar(&listActor, "actor", "", "only keys of this actor")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Engine.Repo.DeleteAPIKey(ctx, args[0])
			})
		},
	})
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Bearer token helpers",
	}
	var subject string
	var roles []string
	var ttl time.Duration
	mint := &cobra.Command{
		Use:   "mint",
		Short: "Mint an HS256 bearer token with the configured secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			token, err := server.SignToken(cfg.Auth.JWTSecret, cfg.Auth.Issuer, subject, roles, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	mint.Flags().StringVar(&subject, "subject", "", "actor id carried in the sub claim")
	mint.Flags().StringSliceVar(&roles, "roles", nil, "roles claim, e.g. admin")
	mint.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime (0 = no expiry)")
	_ = mint.MarkFlagRequired("subject")
	cmd.AddCommand(mint)
	return cmd
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Activity log",
	}
	var n int
	var releaseID, action string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show the newest activity entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.Repo.LatestActivity(ctx, n, releaseID, action)
				if err != nil {
					return err
				}
				return printJSONOrTable(items, func() {
					tw := table.NewWriter()
					tw.SetOutputMirror(os.Stdout)
					tw.AppendHeader(table.Row{"ID", "At", "Release", "Actor", "Action", "Details"})
					for _, e := range items {
						tw.AppendRow(table.Row{e.ID, e.CreatedAt, e.ReleaseRequestID, e.UserID, e.Action, truncate(e.Details, 60)})
					}
					tw.Render()
				})
			})
		},
	}
	tail.Flags().IntVar(&n, "n", 20, "number of entries")
	tail.Flags().StringVar(&releaseID, "release", "", "release filter")
	tail.Flags().StringVar(&action, "action", "", "action filter, e.g. release.published")
	cmd.AddCommand(tail)
	return cmd
}

func nudgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nudge",
		Short: "Onboarding reminders",
	}
	var limit int
	run := &cobra.Command{
		Use:   "run",
		Short: "Nudge idle clients once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				after, err := a.Config.NudgeAfter()
				if err != nil {
					return err
				}
				if limit <= 0 {
					limit = a.Config.Nudge.BatchSize
				}
				sent, err := a.Engine.RunOnboardingNudges(ctx, after, limit)
				if err != nil {
					return err
				}
				fmt.Printf("nudged %d client(s)\n", sent)
				return nil
			})
		},
	}
	run.Flags().IntVar(&limit, "limit", 0, "maximum clients (default from config)")
	cmd.AddCommand(run)
	return cmd
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
