package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"

	"pressflow/internal/domain"
	"pressflow/internal/repo"
)

// CreateAPIKey issues a key for actorID. The plaintext key is returned once
// and only its hash is stored.
func (e Engine) CreateAPIKey(ctx context.Context, actorID string, role domain.Role, name string) (domain.APIKey, string, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return domain.APIKey{}, "", &InvalidFieldError{Field: "actor_id", Reason: "required"}
	}
	if role == "" {
		role = domain.RoleClient
	}
	if _, err := domain.ParseRole(string(role)); err != nil {
		return domain.APIKey{}, "", &InvalidFieldError{Field: "role", Reason: err.Error()}
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return domain.APIKey{}, "", err
	}
	plain := "pf_" + hex.EncodeToString(buf)
	key := domain.APIKey{
		ID:        newID(),
		ActorID:   actorID,
		Role:      role,
		Name:      strings.TrimSpace(name),
		KeyHash:   repo.HashAPIKey(plain),
		CreatedAt: e.timestamp(),
	}
	if err := e.Repo.InsertAPIKey(ctx, key); err != nil {
		return domain.APIKey{}, "", err
	}
	return key, plain, nil
}
