package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pressflow/internal/domain"
)

// ErrUnauthenticated is returned before any data is loaded for anonymous callers.
var ErrUnauthenticated = errors.New("authentication required")

// ForbiddenError indicates the caller lacks role or ownership for an action.
type ForbiddenError struct {
	Action string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("not allowed to %s", e.Action)
}

// Actor is the resolved caller of a request.
type Actor struct {
	ID     string
	Role   domain.Role
	Source string
}

func (a Actor) Authenticated() bool {
	if strings.TrimSpace(a.ID) == "" {
		return false
	}
	return a.Role == domain.RoleAdmin || a.Role == domain.RoleClient
}

func (a Actor) IsAdmin() bool { return a.Authenticated() && a.Role == domain.RoleAdmin }

// Owns reports whether the actor is the owning client of rel.
func (a Actor) Owns(rel domain.ReleaseRequest) bool {
	return a.Authenticated() && rel.ClientID == a.ID
}

// RequireAuthenticated is the first check of every operation.
func RequireAuthenticated(a Actor) error {
	if !a.Authenticated() {
		return ErrUnauthenticated
	}
	return nil
}

func RequireAdmin(a Actor, action string) error {
	if err := RequireAuthenticated(a); err != nil {
		return err
	}
	if !a.IsAdmin() {
		return ForbiddenError{Action: action}
	}
	return nil
}

// RequireOwnerOrAdmin allows admins and the owning client.
func RequireOwnerOrAdmin(a Actor, rel domain.ReleaseRequest, action string) error {
	if err := RequireAuthenticated(a); err != nil {
		return err
	}
	if a.IsAdmin() || a.Owns(rel) {
		return nil
	}
	return ForbiddenError{Action: action}
}

// AdminRoster answers whether an actor holds the admin role.
type AdminRoster interface {
	IsAdmin(ctx context.Context, actorID string) (bool, error)
}

// Service resolves a caller's role once per request.
type Service struct {
	Roster AdminRoster
}

// ResolveActor trusts an explicit admin claim and otherwise consults the roster.
// Everyone else is a client.
func (s Service) ResolveActor(ctx context.Context, actorID string, claimedRoles []string, source string) (Actor, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return Actor{}, ErrUnauthenticated
	}
	for _, r := range claimedRoles {
		if strings.EqualFold(strings.TrimSpace(r), string(domain.RoleAdmin)) {
			return Actor{ID: actorID, Role: domain.RoleAdmin, Source: source}, nil
		}
	}
	if s.Roster != nil {
		ok, err := s.Roster.IsAdmin(ctx, actorID)
		if err != nil {
			return Actor{}, err
		}
		if ok {
			return Actor{ID: actorID, Role: domain.RoleAdmin, Source: source}, nil
		}
	}
	return Actor{ID: actorID, Role: domain.RoleClient, Source: source}, nil
}
