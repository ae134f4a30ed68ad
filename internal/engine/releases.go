package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"pressflow/internal/domain"
	"pressflow/internal/engine/auth"
	"pressflow/internal/events"
	"pressflow/internal/repo"
)

type SubmitOptions struct {
	ClientID            string
	CompanyName         string
	AnnouncementType    string
	AnnouncementDetails string
	TargetAudience      string
	ContactName         string
	ContactEmail        string
}

// SubmitRelease creates a release in the submitted status. Clients always
// submit for themselves.
func (e Engine) SubmitRelease(ctx context.Context, actor auth.Actor, opts SubmitOptions) (domain.ReleaseRequest, error) {
	if err := auth.RequireAuthenticated(actor); err != nil {
		return domain.ReleaseRequest{}, err
	}
	clientID := strings.TrimSpace(opts.ClientID)
	if actor.Role == domain.RoleClient {
		if clientID != "" && clientID != actor.ID {
			return domain.ReleaseRequest{}, auth.ForbiddenError{Action: "submit for another client"}
		}
		clientID = actor.ID
	}
	if clientID == "" {
		return domain.ReleaseRequest{}, &InvalidFieldError{Field: "client_id", Reason: "required"}
	}
	for field, v := range map[string]string{
		"company_name":         opts.CompanyName,
		"announcement_type":    opts.AnnouncementType,
		"announcement_details": opts.AnnouncementDetails,
	} {
		if strings.TrimSpace(v) == "" {
			return domain.ReleaseRequest{}, &InvalidFieldError{Field: field, Reason: "required"}
		}
	}
	if _, err := e.Repo.GetClient(ctx, clientID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.ReleaseRequest{}, &InvalidFieldError{Field: "client_id", Reason: "unknown client"}
		}
		return domain.ReleaseRequest{}, err
	}
	now := e.timestamp()
	rel := domain.ReleaseRequest{
		ID:                  newID(),
		ClientID:            clientID,
		CompanyName:         opts.CompanyName,
		AnnouncementType:    opts.AnnouncementType,
		AnnouncementDetails: opts.AnnouncementDetails,
		TargetAudience:      optionalString(opts.TargetAudience),
		ContactName:         optionalString(opts.ContactName),
		ContactEmail:        optionalString(opts.ContactEmail),
		Status:              domain.StatusSubmitted,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ReleaseRequest{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertReleaseTx(ctx, tx, rel); err != nil {
		return domain.ReleaseRequest{}, err
	}
	if _, err := e.events().Append(ctx, tx, rel.ID, actor.ID, events.ActionSubmitted, events.Details{
		"client_id": clientID,
		"to_status": rel.Status,
		"company":   rel.CompanyName,
		"type":      rel.AnnouncementType,
	}); err != nil {
		return domain.ReleaseRequest{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ReleaseRequest{}, err
	}
	return rel, nil
}

// GetRelease returns the caller's view of a release.
func (e Engine) GetRelease(ctx context.Context, id string, actor auth.Actor) (domain.ReleaseRequest, error) {
	if err := auth.RequireAuthenticated(actor); err != nil {
		return domain.ReleaseRequest{}, err
	}
	rel, err := e.Repo.GetRelease(ctx, id)
	if err != nil {
		return domain.ReleaseRequest{}, err
	}
	if err := auth.RequireOwnerOrAdmin(actor, rel, "view this release"); err != nil {
		return domain.ReleaseRequest{}, err
	}
	return auth.RedactForRole(rel, actor.Role), nil
}

// ListReleases scopes clients to their own releases.
func (e Engine) ListReleases(ctx context.Context, actor auth.Actor, f repo.ReleaseFilters) ([]domain.ReleaseRequest, error) {
	if err := auth.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		f.ClientID = actor.ID
	}
	items, err := e.Repo.ListReleases(ctx, f)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i] = auth.RedactForRole(items[i], actor.Role)
	}
	return items, nil
}

// ListActivity returns the audit trail of one release.
func (e Engine) ListActivity(ctx context.Context, id string, actor auth.Actor, afterID int64, limit int) ([]domain.ActivityLogEntry, error) {
	if err := auth.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	rel, err := e.Repo.GetRelease(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireOwnerOrAdmin(actor, rel, "view this release"); err != nil {
		return nil, err
	}
	return e.Repo.ListActivity(ctx, id, afterID, limit)
}

// Publish moves a release to published. A release is published at most once.
func (e Engine) Publish(ctx context.Context, id string, actor auth.Actor, finalContent *string) (domain.ReleaseRequest, error) {
	if err := auth.RequireAdmin(actor, "publish releases"); err != nil {
		return domain.ReleaseRequest{}, err
	}
	rel, err := e.Repo.GetRelease(ctx, id)
	if err != nil {
		return domain.ReleaseRequest{}, err
	}
	changes := map[string]any{string(auth.FieldStatus): string(domain.StatusPublished)}
	if finalContent != nil {
		changes[string(auth.FieldFinalContent)] = *finalContent
	}
	return e.publishLoaded(ctx, rel, actor, changes)
}

// publishLoaded guards every path into published: once only, and only with
// content to show.
func (e Engine) publishLoaded(ctx context.Context, rel domain.ReleaseRequest, actor auth.Actor, changes map[string]any) (domain.ReleaseRequest, error) {
	if rel.Status == domain.StatusPublished {
		return rel, ErrAlreadyPublished
	}
	if err := e.Policy.ValidateTransition(rel.Status, domain.StatusPublished, actor.Role); err != nil {
		return rel, err
	}
	if _, ok := changes[string(auth.FieldFinalContent)].(string); !ok && rel.BestContent() == "" {
		return rel, ErrMissingContent
	}
	out, err := e.applyLoaded(ctx, rel, actor, changes, events.ActionPublished)
	if errors.Is(err, ErrConflict) {
		if cur, gerr := e.Repo.GetRelease(ctx, rel.ID); gerr == nil && cur.Status == domain.StatusPublished {
			return cur, ErrAlreadyPublished
		}
	}
	return out, err
}

// RequestPanelRewrite spends the one-time rewrite on a release.
func (e Engine) RequestPanelRewrite(ctx context.Context, id string, actor auth.Actor) (domain.ReleaseRequest, error) {
	if err := auth.RequireAuthenticated(actor); err != nil {
		return domain.ReleaseRequest{}, err
	}
	rel, err := e.Repo.GetRelease(ctx, id)
	if err != nil {
		return domain.ReleaseRequest{}, err
	}
	if err := auth.RequireOwnerOrAdmin(actor, rel, "request a rewrite"); err != nil {
		return domain.ReleaseRequest{}, err
	}
	if blank(rel.AIDraftContent) || blank(rel.PanelFeedback) {
		return rel, ErrRewriteNotReady
	}
	if rel.RewriteUsed {
		return rel, ErrRewriteAlreadyUsed
	}
	if e.Rewriter == nil {
		return rel, &UnavailableError{Collaborator: "rewriter"}
	}
	content, err := e.Rewriter.Rewrite(ctx, rel)
	if err != nil {
		return rel, err
	}
	if strings.TrimSpace(content) == "" {
		return rel, ErrMissingContent
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return rel, err
	}
	defer tx.Rollback()
	if err := e.Repo.ClaimRewriteTx(ctx, tx, rel.ID, content, e.timestamp()); err != nil {
		if errors.Is(err, repo.ErrStale) {
			return rel, ErrRewriteAlreadyUsed
		}
		return rel, err
	}
	if _, err := e.events().Append(ctx, tx, rel.ID, actor.ID, events.ActionRewriteRequest, events.Details{
		"fields": []string{"pending_rewrite_content", "rewrite_used"},
		"status": rel.Status,
	}); err != nil {
		return rel, err
	}
	if err := tx.Commit(); err != nil {
		return rel, err
	}
	return e.redactedFresh(ctx, rel.ID, actor)
}

// GenerateDraft asks the draft generator for content and moves the release
// to draft_generated.
func (e Engine) GenerateDraft(ctx context.Context, id string, actor auth.Actor) (domain.ReleaseRequest, error) {
	if err := auth.RequireAdmin(actor, "generate drafts"); err != nil {
		return domain.ReleaseRequest{}, err
	}
	rel, err := e.Repo.GetRelease(ctx, id)
	if err != nil {
		return domain.ReleaseRequest{}, err
	}
	if rel.Status != domain.StatusDraftGenerated {
		if err := e.Policy.ValidateTransition(rel.Status, domain.StatusDraftGenerated, actor.Role); err != nil {
			return rel, err
		}
	}
	if e.Drafts == nil {
		return rel, &UnavailableError{Collaborator: "draft generator"}
	}
	draft, err := e.Drafts.GenerateDraft(ctx, rel)
	if err != nil {
		return rel, err
	}
	if strings.TrimSpace(draft.Content) == "" {
		return rel, ErrMissingContent
	}
	changes := map[string]any{
		string(auth.FieldAIDraftContent): draft.Content,
		string(auth.FieldStatus):         string(domain.StatusDraftGenerated),
	}
	if len(draft.HeadlineOptions) > 0 {
		b, err := json.Marshal(draft.HeadlineOptions)
		if err != nil {
			return rel, err
		}
		changes[string(auth.FieldAIHeadlineOptions)] = string(b)
	}
	return e.applyLoaded(ctx, rel, actor, changes, events.ActionDraftGenerated)
}

// RunPanelCritique attaches panel feedback and moves the release to panel_reviewed.
func (e Engine) RunPanelCritique(ctx context.Context, id string, actor auth.Actor) (domain.ReleaseRequest, error) {
	if err := auth.RequireAdmin(actor, "run panel critiques"); err != nil {
		return domain.ReleaseRequest{}, err
	}
	rel, err := e.Repo.GetRelease(ctx, id)
	if err != nil {
		return domain.ReleaseRequest{}, err
	}
	if blank(rel.AIDraftContent) {
		return rel, ErrMissingContent
	}
	if rel.Status != domain.StatusPanelReviewed {
		if err := e.Policy.ValidateTransition(rel.Status, domain.StatusPanelReviewed, actor.Role); err != nil {
			return rel, err
		}
	}
	if e.Critic == nil {
		return rel, &UnavailableError{Collaborator: "panel critic"}
	}
	feedback, err := e.Critic.Critique(ctx, rel)
	if err != nil {
		return rel, err
	}
	return e.applyLoaded(ctx, rel, actor, map[string]any{
		string(auth.FieldPanelFeedback): feedback,
		string(auth.FieldStatus):        string(domain.StatusPanelReviewed),
	}, events.ActionPanelReviewed)
}

func (e Engine) redactedFresh(ctx context.Context, id string, actor auth.Actor) (domain.ReleaseRequest, error) {
	rel, err := e.Repo.GetRelease(ctx, id)
	if err != nil {
		return rel, err
	}
	return auth.RedactForRole(rel, actor.Role), nil
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func optionalString(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// NextStatuses lists where actor may move the release from its current status.
// Clients only ever see the choices open to them.
func (e Engine) NextStatuses(ctx context.Context, id string, actor auth.Actor) (domain.ReleaseRequest, []domain.Status, error) {
	rel, err := e.GetRelease(ctx, id, actor)
	if err != nil {
		return rel, nil, err
	}
	return rel, e.Policy.AllowedTransitions(rel.Status, actor.Role), nil
}

// ReleaseCounts tallies releases by status, scoped to the caller for clients.
func (e Engine) ReleaseCounts(ctx context.Context, actor auth.Actor) (map[string]int, error) {
	if err := auth.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	clientID := ""
	if !actor.IsAdmin() {
		clientID = actor.ID
	}
	return e.Repo.CountReleasesByStatus(ctx, clientID)
}

// RecordShowcaseEngagement bumps one public counter of a showcase entry.
func (e Engine) RecordShowcaseEngagement(ctx context.Context, id, counter string) (domain.ShowcaseRelease, error) {
	c := repo.ShowcaseCounter(counter)
	switch c {
	case repo.CounterView, repo.CounterShare, repo.CounterClick:
	default:
		return domain.ShowcaseRelease{}, &InvalidFieldError{Field: "counter", Reason: "must be view, share or click"}
	}
	if err := e.Repo.IncrementShowcaseCounter(ctx, id, c); err != nil {
		return domain.ShowcaseRelease{}, err
	}
	return e.Repo.GetShowcase(ctx, id)
}
