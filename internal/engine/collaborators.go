package engine

import (
	"context"

	"pressflow/internal/domain"
)

// DraftGenerator turns submission facts into a first draft.
type DraftGenerator interface {
	GenerateDraft(ctx context.Context, rel domain.ReleaseRequest) (domain.Draft, error)
}

// PanelCritic produces journalist-panel feedback on a draft.
type PanelCritic interface {
	Critique(ctx context.Context, rel domain.ReleaseRequest) (string, error)
}

// Rewriter rewrites a draft using the panel feedback.
type Rewriter interface {
	Rewrite(ctx context.Context, rel domain.ReleaseRequest) (string, error)
}

// TransitionListener receives committed status changes.
type TransitionListener interface {
	OnTransition(ctx context.Context, rel domain.ReleaseRequest, from, to domain.Status)
}

// OnboardingNotifier sends the one-time nudge to idle clients.
type OnboardingNotifier interface {
	NotifyOnboardingNudge(ctx context.Context, client domain.Client) error
}
