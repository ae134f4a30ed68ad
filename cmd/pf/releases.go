package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"pressflow/internal/app"
	"pressflow/internal/domain"
	"pressflow/internal/engine"
	"pressflow/internal/engine/auth"
	"pressflow/internal/repo"
)

func releaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "release",
		Aliases: []string{"releases", "r"},
		Short:   "Work with release requests",
	}
	cmd.AddCommand(releaseListCmd())
	cmd.AddCommand(releaseShowCmd())
	cmd.AddCommand(releaseSubmitCmd())
	cmd.AddCommand(releaseUpdateCmd())
	cmd.AddCommand(releasePublishCmd())
	cmd.AddCommand(releaseActionCmd("rewrite", "Spend the one-time panel rewrite", engine.Engine.RequestPanelRewrite))
	cmd.AddCommand(releaseActionCmd("draft", "Generate the AI draft", engine.Engine.GenerateDraft))
	cmd.AddCommand(releaseActionCmd("critique", "Run the review panel critique", engine.Engine.RunPanelCritique))
	return cmd
}

func releaseListCmd() *cobra.Command {
	var status string
	var f repo.ReleaseFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List releases, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" {
				st, err := domain.ParseStatus(status)
				if err != nil {
					return err
				}
				f.Status = st
			}
			actor, err := cliActor()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.ListReleases(ctx, actor, f)
				if err != nil {
					return err
				}
				return printJSONOrTable(items, func() {
					tw := table.NewWriter()
					tw.SetOutputMirror(os.Stdout)
					tw.AppendHeader(table.Row{"ID", "Client", "Company", "Type", "Status", "Updated"})
					for _, r := range items {
						tw.AppendRow(table.Row{r.ID, r.ClientID, r.CompanyName, r.AnnouncementType, r.Status, r.UpdatedAt})
					}
					tw.Render()
				})
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.ClientID, "client-id", "", "client filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "maximum rows")
	return cmd
}

func releaseShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one release",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := cliActor()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				rel, err := a.Engine.GetRelease(ctx, args[0], actor)
				if err != nil {
					return err
				}
				return printReleaseDetail(a, rel)
			})
		},
	}
}

func releaseSubmitCmd() *cobra.Command {
	var opts engine.SubmitOptions
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a release request",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := cliActor()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				rel, err := a.Engine.SubmitRelease(ctx, actor, opts)
				if err != nil {
					return err
				}
				return printJSON(rel)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ClientID, "client-id", "", "owning client (admins only)")
	cmd.Flags().StringVar(&opts.CompanyName, "company", "", "company name")
	cmd.Flags().StringVar(&opts.AnnouncementType, "type", "", "announcement type, e.g. funding")
	cmd.Flags().StringVar(&opts.AnnouncementDetails, "details", "", "announcement details")
	cmd.Flags().StringVar(&opts.TargetAudience, "audience", "", "target audience")
	cmd.Flags().StringVar(&opts.ContactName, "contact-name", "", "press contact name")
	cmd.Flags().StringVar(&opts.ContactEmail, "contact-email", "", "press contact email")
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("details")
	return cmd
}

func releaseUpdateCmd() *cobra.Command {
	var sets []string
	var status string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update fields and optionally move status",
		Example: `  pf release update 5f1c --status admin_approved
  pf release update 5f1c --set headline="Acme raises $10M" --set quality_score=85
  pf release update 5f1c --set admin_notes=null`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changes, err := parseSets(sets)
			if err != nil {
				return err
			}
			if status != "" {
				changes["status"] = status
			}
			actor, err := cliActor()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				rel, err := a.Engine.ApplyTransition(ctx, args[0], actor, changes)
				if err != nil {
					return err
				}
				return printJSON(rel)
			})
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field=value (repeatable); JSON values are decoded, null clears")
	cmd.Flags().StringVar(&status, "status", "", "target status")
	return cmd
}

func releasePublishCmd() *cobra.Command {
	var contentFile string
	cmd := &cobra.Command{
		Use:   "publish <id>",
		Short: "Publish a release to the showcase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var final *string
			if contentFile != "" {
				data, err := os.ReadFile(contentFile)
				if err != nil {
					return err
				}
				s := string(data)
				final = &s
			}
			actor, err := cliActor()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				rel, err := a.Engine.Publish(ctx, args[0], actor, final)
				if err != nil {
					return err
				}
				return printJSON(rel)
			})
		},
	}
	cmd.Flags().StringVar(&contentFile, "final-content-file", "", "file holding the final content")
	return cmd
}

func releaseActionCmd(use, short string, action func(engine.Engine, context.Context, string, auth.Actor) (domain.ReleaseRequest, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := cliActor()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				rel, err := action(a.Engine, ctx, args[0], actor)
				if err != nil {
					return err
				}
				return printJSON(rel)
			})
		},
	}
}

func printReleaseDetail(a *app.App, rel domain.ReleaseRequest) error {
	return printJSONOrTable(rel, func() {
		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendRows([]table.Row{
			{"ID", rel.ID},
			{"Client", rel.ClientID},
			{"Company", rel.CompanyName},
			{"Type", rel.AnnouncementType},
			{"Status", rel.Status},
			{"Rewrite used", rel.RewriteUsed},
			{"Headline", deref(rel.Headline)},
			{"Admin reviewed", strings.TrimSpace(deref(rel.AdminReviewedBy) + " " + deref(rel.AdminReviewedAt))},
			{"Sent to client", deref(rel.SentToClientAt)},
			{"Client feedback", deref(rel.ClientFeedback)},
			{"Published", deref(rel.PublishedAt)},
			{"Updated", rel.UpdatedAt},
		})
		tw.Render()
		if next := a.Engine.Policy.AllowedTransitions(rel.Status, domain.RoleAdmin); len(next) > 0 {
			names := make([]string, len(next))
			for i, s := range next {
				names[i] = string(s)
			}
			fmt.Println("next:", strings.Join(names, ", "))
		}
	})
}

// parseSets turns field=value pairs into a change map. Values that parse as
// JSON keep their JSON type; anything else is a plain string.
func parseSets(sets []string) (map[string]any, error) {
	out := make(map[string]any, len(sets))
	for _, kv := range sets {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q, want field=value", kv)
		}
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err == nil {
			out[key] = decoded
			continue
		}
		out[key] = value
	}
	return out, nil
}
