package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"pressflow/internal/domain"
	"pressflow/internal/engine/auth"
	"pressflow/internal/events"
	"pressflow/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Policy Policy

	Dispatch TransitionListener
	Drafts   DraftGenerator
	Critic   PanelCritic
	Rewriter Rewriter
	Nudges   OnboardingNotifier

	Logger *slog.Logger
	Now    func() time.Time
}

func New(db *sql.DB) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Policy: DefaultPolicy,
		Logger: slog.Default(),
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e Engine) events() events.Writer {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w
}

// ApplyTransition validates and persists a partial update, which may include a
// status change. It appends one activity entry and notifies the dispatcher
// after commit.
func (e Engine) ApplyTransition(ctx context.Context, releaseID string, actor auth.Actor, changes map[string]any) (domain.ReleaseRequest, error) {
	if err := auth.RequireAuthenticated(actor); err != nil {
		return domain.ReleaseRequest{}, err
	}
	rel, err := e.Repo.GetRelease(ctx, releaseID)
	if err != nil {
		return domain.ReleaseRequest{}, err
	}
	if actor.Role == domain.RoleAdmin && requestsStatus(changes, domain.StatusPublished) {
		return e.publishLoaded(ctx, rel, actor, changes)
	}
	return e.applyLoaded(ctx, rel, actor, changes, events.ActionUpdated)
}

func requestsStatus(changes map[string]any, s domain.Status) bool {
	v, ok := changes[string(auth.FieldStatus)].(string)
	return ok && v == string(s)
}

// changePlan is the filtered, coerced form of a change request.
type changePlan struct {
	accepted int
	set      map[string]any
	changed  []string
	target   domain.Status
	next     domain.ReleaseRequest
}

// applyLoaded runs a change request against an already loaded release. The
// result is redacted for the caller's role.
func (e Engine) applyLoaded(ctx context.Context, rel domain.ReleaseRequest, actor auth.Actor, changes map[string]any, action string) (domain.ReleaseRequest, error) {
	out, err := e.applyChanges(ctx, rel, actor, changes, action)
	return auth.RedactForRole(out, actor.Role), err
}

func (e Engine) applyChanges(ctx context.Context, rel domain.ReleaseRequest, actor auth.Actor, changes map[string]any, action string) (domain.ReleaseRequest, error) {
	allowed, err := auth.ResolveWritableFields(actor.Role, actor.Owns(rel))
	if err != nil {
		return rel, err
	}
	plan, err := e.planChanges(rel, actor, allowed, changes)
	if err != nil {
		return rel, err
	}
	if plan.accepted == 0 {
		return rel, ErrNoValidFields
	}
	return e.commit(ctx, rel, actor, plan, action)
}

func (e Engine) planChanges(rel domain.ReleaseRequest, actor auth.Actor, allowed auth.FieldSet, changes map[string]any) (changePlan, error) {
	p := changePlan{set: map[string]any{}, next: rel}
	names := make([]string, 0, len(changes))
	for name := range changes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f := auth.Field(name)
		kind, known := auth.KindOf(f)
		if !known || !allowed.Has(f) {
			continue
		}
		raw := changes[name]
		if kind == auth.KindStatus {
			target, keep, err := e.checkStatus(rel.Status, raw, actor)
			if err != nil {
				return p, err
			}
			if !keep {
				continue
			}
			p.accepted++
			if target != rel.Status {
				p.target = target
			}
			continue
		}
		diff, value, err := assignField(&p.next, f, kind, raw)
		if err != nil {
			return p, err
		}
		p.accepted++
		if diff {
			p.set[name] = value
			p.changed = append(p.changed, name)
		}
	}
	return p, nil
}

// checkStatus decides what happens to a requested status. keep=false means
// the value is dropped silently and the rest of the update still applies.
func (e Engine) checkStatus(current domain.Status, raw any, actor auth.Actor) (domain.Status, bool, error) {
	s, ok := raw.(string)
	if !ok {
		return "", false, &domain.InvalidStatusError{Value: fmt.Sprint(raw)}
	}
	target, err := domain.ParseStatus(s)
	if err != nil {
		return "", false, err
	}
	if !auth.ResolveAllowedStatuses(actor.Role).Has(target) {
		return "", false, e.Policy.ValidateTransition(current, target, actor.Role)
	}
	if target == current {
		return target, true, nil
	}
	if actor.Role == domain.RoleClient && current != domain.StatusAwaitingClient {
		return "", false, nil
	}
	if err := e.Policy.ValidateTransition(current, target, actor.Role); err != nil {
		return "", false, err
	}
	return target, true, nil
}

func (e Engine) commit(ctx context.Context, rel domain.ReleaseRequest, actor auth.Actor, p changePlan, action string) (domain.ReleaseRequest, error) {
	if len(p.set) == 0 && p.target == "" {
		return rel, nil
	}
	now := e.timestamp()
	next := p.next
	details := events.Details{"fields": nonNil(p.changed)}
	if p.target != "" {
		next.Status = p.target
		p.set["status"] = string(p.target)
		stampMarkers(&next, p.set, p.target, actor.ID, now)
		details["from_status"] = rel.Status
		details["to_status"] = p.target
		if action == events.ActionUpdated {
			action = events.ActionStatusChanged
		}
	}
	next.UpdatedAt = now
	p.set["updated_at"] = now

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return rel, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateReleaseIfStatusTx(ctx, tx, rel.ID, rel.Status, p.set); err != nil {
		if errors.Is(err, repo.ErrStale) {
			return rel, ErrConflict
		}
		return rel, err
	}
	if _, err := e.events().Append(ctx, tx, rel.ID, actor.ID, action, details); err != nil {
		return rel, err
	}
	if err := tx.Commit(); err != nil {
		return rel, err
	}
	if fresh, err := e.Repo.GetRelease(ctx, rel.ID); err == nil {
		next = fresh
	}
	if p.target != "" && e.Dispatch != nil {
		e.Dispatch.OnTransition(ctx, next, rel.Status, p.target)
	}
	return next, nil
}

// stampMarkers records who and when on entry to review statuses. Columns
// that already hold a value are left alone.
func stampMarkers(rel *domain.ReleaseRequest, set map[string]any, to domain.Status, actorID, now string) {
	mark := func(column string, dst **string, value string) {
		set[column] = repo.SetOnce(column, value)
		if *dst == nil {
			v := value
			*dst = &v
		}
	}
	switch to {
	case domain.StatusAdminApproved:
		mark("admin_reviewed_by", &rel.AdminReviewedBy, actorID)
		mark("admin_reviewed_at", &rel.AdminReviewedAt, now)
	case domain.StatusAwaitingClient:
		mark("sent_to_client_at", &rel.SentToClientAt, now)
	case domain.StatusClientFeedback, domain.StatusClientApproved:
		mark("client_feedback_at", &rel.ClientFeedbackAt, now)
	case domain.StatusQualityApproved:
		mark("quality_reviewed_by", &rel.QualityReviewedBy, actorID)
		mark("quality_reviewed_at", &rel.QualityReviewedAt, now)
	case domain.StatusPublished:
		mark("published_at", &rel.PublishedAt, now)
	}
}

// assignField coerces raw into field f of rel and reports whether it changed.
func assignField(rel *domain.ReleaseRequest, f auth.Field, kind auth.FieldKind, raw any) (bool, any, error) {
	switch kind {
	case auth.KindRequiredText:
		s, ok := raw.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return false, nil, &InvalidFieldError{Field: string(f), Reason: "must be a non-empty string"}
		}
		dst := requiredTextRef(rel, f)
		if *dst == s {
			return false, s, nil
		}
		*dst = s
		return true, s, nil
	case auth.KindText:
		var val *string
		if raw != nil {
			s, ok := raw.(string)
			if !ok {
				return false, nil, &InvalidFieldError{Field: string(f), Reason: "must be a string or null"}
			}
			val = &s
		}
		dst := textRef(rel, f)
		if equalStringPtr(*dst, val) {
			return false, nil, nil
		}
		*dst = val
		if val == nil {
			return true, nil, nil
		}
		return true, *val, nil
	case auth.KindScore:
		var val *int
		if raw != nil {
			n, err := scoreValue(raw)
			if err != nil {
				return false, nil, &InvalidFieldError{Field: string(f), Reason: err.Error()}
			}
			val = &n
		}
		if equalIntPtr(rel.QualityScore, val) {
			return false, nil, nil
		}
		rel.QualityScore = val
		if val == nil {
			return true, nil, nil
		}
		return true, *val, nil
	}
	return false, nil, &InvalidFieldError{Field: string(f), Reason: "not writable"}
}

func requiredTextRef(rel *domain.ReleaseRequest, f auth.Field) *string {
	switch f {
	case auth.FieldCompanyName:
		return &rel.CompanyName
	case auth.FieldAnnouncementType:
		return &rel.AnnouncementType
	default:
		return &rel.AnnouncementDetails
	}
}

func textRef(rel *domain.ReleaseRequest, f auth.Field) **string {
	switch f {
	case auth.FieldTargetAudience:
		return &rel.TargetAudience
	case auth.FieldContactName:
		return &rel.ContactName
	case auth.FieldContactEmail:
		return &rel.ContactEmail
	case auth.FieldAIDraftContent:
		return &rel.AIDraftContent
	case auth.FieldAIHeadlineOptions:
		return &rel.AIHeadlineOptions
	case auth.FieldPanelFeedback:
		return &rel.PanelFeedback
	case auth.FieldAdminRefinedContent:
		return &rel.AdminRefinedContent
	case auth.FieldPendingRewriteContent:
		return &rel.PendingRewriteContent
	case auth.FieldFinalContent:
		return &rel.FinalContent
	case auth.FieldHeadline:
		return &rel.Headline
	case auth.FieldClientFeedback:
		return &rel.ClientFeedback
	default:
		return &rel.AdminNotes
	}
}

func scoreValue(raw any) (int, error) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, errors.New("must be a number")
		}
		f = parsed
	default:
		return 0, errors.New("must be a number")
	}
	if f != math.Trunc(f) || f < 0 || f > 100 {
		return 0, errors.New("must be an integer between 0 and 100")
	}
	return int(f), nil
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func newID() string {
	return uuid.NewString()
}
