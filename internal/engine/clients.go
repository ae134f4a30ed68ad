package engine

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"pressflow/internal/domain"
	"pressflow/internal/engine/auth"
	"pressflow/internal/repo"
)

type ClientOptions struct {
	ID    string
	Email string
	Name  string
}

func (e Engine) CreateClient(ctx context.Context, actor auth.Actor, opts ClientOptions) (domain.Client, error) {
	if err := auth.RequireAdmin(actor, "create clients"); err != nil {
		return domain.Client{}, err
	}
	email := strings.TrimSpace(opts.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.Client{}, &InvalidFieldError{Field: "email", Reason: "must be an email address"}
	}
	id := strings.TrimSpace(opts.ID)
	if id == "" {
		id = newID()
	}
	c := domain.Client{
		ID:        id,
		Email:     email,
		Name:      strings.TrimSpace(opts.Name),
		CreatedAt: e.timestamp(),
	}
	if err := e.Repo.InsertClient(ctx, c); err != nil {
		return domain.Client{}, err
	}
	return c, nil
}

// GetClient lets clients read their own record and admins read any.
func (e Engine) GetClient(ctx context.Context, actor auth.Actor, id string) (domain.Client, error) {
	if err := auth.RequireAuthenticated(actor); err != nil {
		return domain.Client{}, err
	}
	if !actor.IsAdmin() && actor.ID != id {
		return domain.Client{}, auth.ForbiddenError{Action: "view this client"}
	}
	return e.Repo.GetClient(ctx, id)
}

func (e Engine) ListClients(ctx context.Context, actor auth.Actor) ([]domain.Client, error) {
	if err := auth.RequireAdmin(actor, "list clients"); err != nil {
		return nil, err
	}
	return e.Repo.ListClients(ctx)
}

func (e Engine) GrantAdmin(ctx context.Context, actor auth.Actor, actorID string) error {
	if err := auth.RequireAdmin(actor, "grant admin"); err != nil {
		return err
	}
	return e.Repo.GrantAdmin(ctx, actorID, actor.ID, e.timestamp())
}

func (e Engine) ListAdmins(ctx context.Context, actor auth.Actor) ([]domain.Admin, error) {
	if err := auth.RequireAdmin(actor, "list admins"); err != nil {
		return nil, err
	}
	return e.Repo.ListAdmins(ctx)
}

func (e Engine) RevokeAdmin(ctx context.Context, actor auth.Actor, actorID string) error {
	if err := auth.RequireAdmin(actor, "revoke admin"); err != nil {
		return err
	}
	return e.Repo.RevokeAdmin(ctx, actorID)
}

// RunOnboardingNudges notifies clients that signed up more than idle ago and
// never submitted a release. Each client is claimed before sending so that
// concurrent runs never nudge twice.
func (e Engine) RunOnboardingNudges(ctx context.Context, idle time.Duration, limit int) (int, error) {
	if e.Nudges == nil {
		return 0, &UnavailableError{Collaborator: "onboarding notifier"}
	}
	cutoff := e.now().Add(-idle).UTC().Format(time.RFC3339)
	clients, err := e.Repo.ClientsToNudge(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, c := range clients {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if err := e.Repo.MarkClientNudged(ctx, c.ID, e.timestamp()); err != nil {
			if errors.Is(err, repo.ErrStale) {
				continue
			}
			return sent, err
		}
		if err := e.Nudges.NotifyOnboardingNudge(ctx, c); err != nil {
			e.logger().Warn("onboarding nudge failed", "client_id", c.ID, "err", err)
			continue
		}
		sent++
	}
	return sent, nil
}
