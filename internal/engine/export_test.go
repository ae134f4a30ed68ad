package engine

import (
	"context"

	"pressflow/internal/domain"
	"pressflow/internal/engine/auth"
	"pressflow/internal/events"
)

// ApplyToSnapshot applies changes against a caller-supplied copy of the
// release, which lets tests stage a writer working from stale state.
func (e Engine) ApplyToSnapshot(ctx context.Context, rel domain.ReleaseRequest, actor auth.Actor, changes map[string]any) (domain.ReleaseRequest, error) {
	return e.applyLoaded(ctx, rel, actor, changes, events.ActionUpdated)
}
