package engine_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"pressflow/internal/db"
	"pressflow/internal/dispatch"
	"pressflow/internal/domain"
	"pressflow/internal/engine"
	"pressflow/internal/engine/auth"
	"pressflow/internal/migrate"
	"pressflow/internal/repo"
)

var (
	admin  = auth.Actor{ID: "admin-1", Role: domain.RoleAdmin, Source: "test"}
	client = auth.Actor{ID: "client-1", Role: domain.RoleClient, Source: "test"}
	other  = auth.Actor{ID: "client-2", Role: domain.RoleClient, Source: "test"}
)

type recordingNotifier struct {
	mu     sync.Mutex
	drafts []string
	nudges []string
	fail   bool
}

func (n *recordingNotifier) NotifyDraftReady(ctx context.Context, c domain.Client, rel domain.ReleaseRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.drafts = append(n.drafts, c.Email)
	return nil
}

func (n *recordingNotifier) NotifyOnboardingNudge(ctx context.Context, c domain.Client) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("relay down")
	}
	n.nudges = append(n.nudges, c.Email)
	return nil
}

type fakeWriter struct {
	draft    string
	rewrites int
}

func (w *fakeWriter) GenerateDraft(ctx context.Context, rel domain.ReleaseRequest) (domain.Draft, error) {
	return domain.Draft{Content: w.draft, HeadlineOptions: []string{"Acme raises Series A"}}, nil
}

func (w *fakeWriter) Critique(ctx context.Context, rel domain.ReleaseRequest) (string, error) {
	return "Lead with the funding amount.", nil
}

func (w *fakeWriter) Rewrite(ctx context.Context, rel domain.ReleaseRequest) (string, error) {
	w.rewrites++
	return "rewrite #" + string(rune('0'+w.rewrites)), nil
}

type testEnv struct {
	Engine   engine.Engine
	Ctx      context.Context
	Notifier *recordingNotifier
	Writer   *fakeWriter
	clock    *time.Time
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := &recordingNotifier{}
	writer := &fakeWriter{draft: "<p>" + strings.Repeat("Acme news. ", 30) + "</p>"}

	eng := engine.New(conn)
	eng.Now = now
	eng.Logger = logger
	eng.Drafts = writer
	eng.Critic = writer
	eng.Rewriter = writer
	eng.Nudges = notifier
	eng.Dispatch = dispatch.Dispatcher{
		Notifier:  notifier,
		Showcases: eng.Repo,
		Clients:   eng.Repo,
		Logger:    logger,
		Now:       now,
	}
	ctx := context.Background()
	for _, c := range []engine.ClientOptions{
		{ID: client.ID, Email: "owner@example.com", Name: "Owner"},
		{ID: other.ID, Email: "other@example.com"},
	} {
		if _, err := eng.CreateClient(ctx, admin, c); err != nil {
			t.Fatalf("create client: %v", err)
		}
	}
	return testEnv{Engine: eng, Ctx: ctx, Notifier: notifier, Writer: writer, clock: &clock}
}

func (env testEnv) advance(d time.Duration) {
	*env.clock = env.clock.Add(d)
}

func (env testEnv) submit(t *testing.T) domain.ReleaseRequest {
	t.Helper()
	rel, err := env.Engine.SubmitRelease(env.Ctx, client, engine.SubmitOptions{
		CompanyName:         "Acme",
		AnnouncementType:    "funding",
		AnnouncementDetails: "Series A led by Example Ventures",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return rel
}

func (env testEnv) setStatus(t *testing.T, id string, actor auth.Actor, s domain.Status) domain.ReleaseRequest {
	t.Helper()
	rel, err := env.Engine.ApplyTransition(env.Ctx, id, actor, map[string]any{"status": string(s)})
	if err != nil {
		t.Fatalf("to %s: %v", s, err)
	}
	if rel.Status != s {
		t.Fatalf("expected %s, got %s", s, rel.Status)
	}
	return rel
}

// toAwaitingClient walks a fresh release to awaiting_client.
func (env testEnv) toAwaitingClient(t *testing.T) domain.ReleaseRequest {
	t.Helper()
	rel := env.submit(t)
	if _, err := env.Engine.GenerateDraft(env.Ctx, rel.ID, admin); err != nil {
		t.Fatalf("generate draft: %v", err)
	}
	env.setStatus(t, rel.ID, admin, domain.StatusAdminApproved)
	return env.setStatus(t, rel.ID, admin, domain.StatusAwaitingClient)
}

func (env testEnv) activityCount(t *testing.T, id string) int {
	t.Helper()
	entries, err := env.Engine.Repo.ListActivity(env.Ctx, id, 0, 0)
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	return len(entries)
}

func TestLifecycleScenario(t *testing.T) {
	env := newTestEnv(t)
	rel := env.submit(t)
	if rel.Status != domain.StatusSubmitted || rel.ClientID != client.ID {
		t.Fatalf("unexpected submission: %+v", rel)
	}

	rel, err := env.Engine.GenerateDraft(env.Ctx, rel.ID, admin)
	if err != nil {
		t.Fatalf("generate draft: %v", err)
	}
	if rel.Status != domain.StatusDraftGenerated || rel.AIDraftContent == nil {
		t.Fatalf("draft not stored: %+v", rel)
	}
	if rel.AIHeadlineOptions == nil || *rel.AIHeadlineOptions != `["Acme raises Series A"]` {
		t.Fatalf("headline options not stored: %v", rel.AIHeadlineOptions)
	}
	if len(env.Notifier.drafts) != 0 {
		t.Fatalf("no email expected before awaiting_client")
	}

	rel = env.setStatus(t, rel.ID, admin, domain.StatusAdminApproved)
	if rel.AdminReviewedBy == nil || *rel.AdminReviewedBy != admin.ID {
		t.Fatalf("admin marker missing: %+v", rel)
	}
	rel = env.setStatus(t, rel.ID, admin, domain.StatusAwaitingClient)
	if len(env.Notifier.drafts) != 1 || env.Notifier.drafts[0] != "owner@example.com" {
		t.Fatalf("expected one draft-ready email, got %v", env.Notifier.drafts)
	}

	rel = env.setStatus(t, rel.ID, client, domain.StatusClientApproved)
	if rel.ClientFeedbackAt == nil {
		t.Fatalf("client_feedback_at not set")
	}

	rel, err = env.Engine.Publish(env.Ctx, rel.ID, admin, nil)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if rel.Status != domain.StatusPublished || rel.PublishedAt == nil {
		t.Fatalf("not published: %+v", rel)
	}
	if len(env.Notifier.drafts) != 1 {
		t.Fatalf("draft-ready email sent again: %v", env.Notifier.drafts)
	}
	sc, err := env.Engine.Repo.GetShowcaseByRelease(env.Ctx, rel.ID)
	if err != nil {
		t.Fatalf("showcase: %v", err)
	}
	if !strings.HasSuffix(sc.Summary, "...") || len([]rune(sc.Summary)) != 203 {
		t.Fatalf("summary not truncated: %q", sc.Summary)
	}
	if sc.CompanyName != "Acme" {
		t.Fatalf("unexpected showcase: %+v", sc)
	}
}

func TestClientApprovesWithFeedback(t *testing.T) {
	env := newTestEnv(t)
	rel := env.toAwaitingClient(t)
	out, err := env.Engine.ApplyTransition(env.Ctx, rel.ID, client, map[string]any{
		"status":          "client_approved",
		"client_feedback": "Looks great",
	})
	if err != nil {
		t.Fatalf("client approve: %v", err)
	}
	if out.Status != domain.StatusClientApproved || out.ClientFeedback == nil || *out.ClientFeedback != "Looks great" {
		t.Fatalf("both fields should apply: %+v", out)
	}
}

func TestClientCannotPublish(t *testing.T) {
	env := newTestEnv(t)
	rel := env.toAwaitingClient(t)
	_, err := env.Engine.ApplyTransition(env.Ctx, rel.ID, client, map[string]any{
		"status":          "published",
		"client_feedback": "ship it",
	})
	var te *engine.TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected transition error, got %v", err)
	}
	cur, err := env.Engine.Repo.GetRelease(env.Ctx, rel.ID)
	if err != nil {
		t.Fatal(err)
	}
	if cur.Status != domain.StatusAwaitingClient || cur.ClientFeedback != nil {
		t.Fatalf("rejected request must not write: %+v", cur)
	}
}

func TestClientStatusDroppedOutsideAwaitingClient(t *testing.T) {
	env := newTestEnv(t)
	rel := env.submit(t)
	out, err := env.Engine.ApplyTransition(env.Ctx, rel.ID, client, map[string]any{
		"status":          "client_approved",
		"client_feedback": "early thoughts",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out.Status != domain.StatusSubmitted {
		t.Fatalf("status should be dropped, got %s", out.Status)
	}
	if out.ClientFeedback == nil || *out.ClientFeedback != "early thoughts" {
		t.Fatalf("feedback should apply: %+v", out)
	}

	_, err = env.Engine.ApplyTransition(env.Ctx, rel.ID, client, map[string]any{"status": "client_feedback"})
	if !errors.Is(err, engine.ErrNoValidFields) {
		t.Fatalf("expected ErrNoValidFields, got %v", err)
	}
}

func TestClientFieldsOutsideWhitelistIgnored(t *testing.T) {
	env := newTestEnv(t)
	rel := env.submit(t)
	_, err := env.Engine.ApplyTransition(env.Ctx, rel.ID, client, map[string]any{
		"admin_notes":   "sneaky",
		"quality_score": 99,
	})
	if !errors.Is(err, engine.ErrNoValidFields) {
		t.Fatalf("expected ErrNoValidFields, got %v", err)
	}
}

func TestNoValidFields(t *testing.T) {
	env := newTestEnv(t)
	rel := env.submit(t)
	_, err := env.Engine.ApplyTransition(env.Ctx, rel.ID, admin, map[string]any{"rewrite_used": true, "bogus": 1})
	if !errors.Is(err, engine.ErrNoValidFields) {
		t.Fatalf("expected ErrNoValidFields, got %v", err)
	}
}

func TestInvalidStatusValue(t *testing.T) {
	env := newTestEnv(t)
	rel := env.submit(t)
	_, err := env.Engine.ApplyTransition(env.Ctx, rel.ID, admin, map[string]any{"status": "shipped"})
	var ie *domain.InvalidStatusError
	if !errors.As(err, &ie) {
		t.Fatalf("expected invalid status error, got %v", err)
	}
}

func TestInvalidQualityScore(t *testing.T) {
	env := newTestEnv(t)
	rel := env.submit(t)
	_, err := env.Engine.ApplyTransition(env.Ctx, rel.ID, admin, map[string]any{"quality_score": 101.0})
	var fe *engine.InvalidFieldError
	if !errors.As(err, &fe) || fe.Field != "quality_score" {
		t.Fatalf("expected invalid field error, got %v", err)
	}
	out, err := env.Engine.ApplyTransition(env.Ctx, rel.ID, admin, map[string]any{"quality_score": 87.0})
	if err != nil || out.QualityScore == nil || *out.QualityScore != 87 {
		t.Fatalf("expected score 87: %v %+v", err, out.QualityScore)
	}
}

func TestRequestPanelRewriteOnce(t *testing.T) {
	env := newTestEnv(t)
	rel := env.submit(t)
	if _, err := env.Engine.RequestPanelRewrite(env.Ctx, rel.ID, client); !errors.Is(err, engine.ErrRewriteNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
	if _, err := env.Engine.GenerateDraft(env.Ctx, rel.ID, admin); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.RunPanelCritique(env.Ctx, rel.ID, admin); err != nil {
		t.Fatal(err)
	}

	out, err := env.Engine.RequestPanelRewrite(env.Ctx, rel.ID, client)
	if err != nil {
		t.Fatalf("first rewrite: %v", err)
	}
	if !out.RewriteUsed || out.PendingRewriteContent == nil || *out.PendingRewriteContent != "rewrite #1" {
		t.Fatalf("rewrite not stored: %+v", out)
	}
	if _, err := env.Engine.RequestPanelRewrite(env.Ctx, rel.ID, client); !errors.Is(err, engine.ErrRewriteAlreadyUsed) {
		t.Fatalf("expected ErrRewriteAlreadyUsed, got %v", err)
	}
	cur, _ := env.Engine.Repo.GetRelease(env.Ctx, rel.ID)
	if *cur.PendingRewriteContent != "rewrite #1" {
		t.Fatalf("second call overwrote rewrite: %q", *cur.PendingRewriteContent)
	}
}

func TestRewriteClaimIsAtomic(t *testing.T) {
	env := newTestEnv(t)
	rel := env.submit(t)
	if _, err := env.Engine.GenerateDraft(env.Ctx, rel.ID, admin); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.RunPanelCritique(env.Ctx, rel.ID, admin); err != nil {
		t.Fatal(err)
	}
	tx, err := env.Engine.DB.BeginTx(env.Ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.Repo.ClaimRewriteTx(env.Ctx, tx, rel.ID, "first", "2024-01-01T00:00:00Z"); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	tx, err = env.Engine.DB.BeginTx(env.Ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()
	if err := env.Engine.Repo.ClaimRewriteTx(env.Ctx, tx, rel.ID, "second", "2024-01-01T00:00:00Z"); !errors.Is(err, repo.ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
}

func TestPublishTwice(t *testing.T) {
	env := newTestEnv(t)
	rel := env.toAwaitingClient(t)
	env.setStatus(t, rel.ID, client, domain.StatusClientApproved)
	if _, err := env.Engine.Publish(env.Ctx, rel.ID, admin, nil); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if _, err := env.Engine.Publish(env.Ctx, rel.ID, admin, nil); !errors.Is(err, engine.ErrAlreadyPublished) {
		t.Fatalf("expected ErrAlreadyPublished, got %v", err)
	}
	n, err := env.Engine.Repo.CountShowcasesForRelease(env.Ctx, rel.ID)
	if err != nil || n != 1 {
		t.Fatalf("expected one showcase, got %d (%v)", n, err)
	}
}

func TestPublishRequiresApproval(t *testing.T) {
	env := newTestEnv(t)
	rel := env.submit(t)
	final := "Final text"
	_, err := env.Engine.Publish(env.Ctx, rel.ID, admin, &final)
	var te *engine.TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected transition error, got %v", err)
	}
	if _, err := env.Engine.Publish(env.Ctx, rel.ID, client, &final); !errors.As(err, new(auth.ForbiddenError)) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestIdempotentPatch(t *testing.T) {
	env := newTestEnv(t)
	rel := env.toAwaitingClient(t)
	before := env.activityCount(t, rel.ID)
	changes := map[string]any{"status": "client_feedback", "client_feedback": "Tweak the quote"}

	first, err := env.Engine.ApplyTransition(env.Ctx, rel.ID, client, changes)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	env.advance(time.Minute)
	second, err := env.Engine.ApplyTransition(env.Ctx, rel.ID, client, changes)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if first.UpdatedAt != second.UpdatedAt || second.Status != domain.StatusClientFeedback {
		t.Fatalf("retry changed the record: %+v vs %+v", first, second)
	}
	if got := env.activityCount(t, rel.ID); got != before+1 {
		t.Fatalf("expected one new activity entry, got %d", got-before)
	}
}

func TestConcurrentTransitionsConflict(t *testing.T) {
	env := newTestEnv(t)
	rel := env.toAwaitingClient(t)
	snapshot, err := env.Engine.Repo.GetRelease(env.Ctx, rel.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.ApplyToSnapshot(env.Ctx, snapshot, client, map[string]any{"status": "client_approved"}); err != nil {
		t.Fatalf("first writer: %v", err)
	}
	_, err = env.Engine.ApplyToSnapshot(env.Ctx, snapshot, admin, map[string]any{"status": "needs_revision"})
	if !errors.Is(err, engine.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	cur, _ := env.Engine.Repo.GetRelease(env.Ctx, rel.ID)
	if cur.Status != domain.StatusClientApproved {
		t.Fatalf("loser must not write: %s", cur.Status)
	}
}

func TestReviewMarkersSetOnce(t *testing.T) {
	env := newTestEnv(t)
	rel := env.toAwaitingClient(t)
	first := *rel.SentToClientAt
	firstReview := *rel.AdminReviewedAt

	env.advance(time.Hour)
	env.setStatus(t, rel.ID, client, domain.StatusClientFeedback)
	env.setStatus(t, rel.ID, admin, domain.StatusAdminApproved)
	out := env.setStatus(t, rel.ID, admin, domain.StatusAwaitingClient)
	if *out.SentToClientAt != first || *out.AdminReviewedAt != firstReview {
		t.Fatalf("markers overwritten: %s %s", *out.SentToClientAt, *out.AdminReviewedAt)
	}
	if out.UpdatedAt == rel.UpdatedAt {
		t.Fatalf("updated_at should move")
	}
}

func TestNeedsRevisionDetour(t *testing.T) {
	env := newTestEnv(t)
	rel := env.toAwaitingClient(t)
	env.setStatus(t, rel.ID, admin, domain.StatusNeedsRevision)
	if _, err := env.Engine.ApplyTransition(env.Ctx, rel.ID, admin, map[string]any{"status": "published"}); err == nil {
		t.Fatalf("needs_revision must not jump to published")
	}
	env.setStatus(t, rel.ID, admin, domain.StatusDraftGenerated)
}

func TestUnauthenticatedFailsBeforeLoad(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.ApplyTransition(env.Ctx, "does-not-exist", auth.Actor{}, map[string]any{"status": "rejected"})
	if !errors.Is(err, auth.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if _, err := env.Engine.GetRelease(env.Ctx, "does-not-exist", auth.Actor{}); !errors.Is(err, auth.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestNonOwnerForbidden(t *testing.T) {
	env := newTestEnv(t)
	rel := env.toAwaitingClient(t)
	_, err := env.Engine.ApplyTransition(env.Ctx, rel.ID, other, map[string]any{"status": "client_approved"})
	if !errors.As(err, new(auth.ForbiddenError)) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := env.Engine.GetRelease(env.Ctx, rel.ID, other); !errors.As(err, new(auth.ForbiddenError)) {
		t.Fatalf("expected forbidden read, got %v", err)
	}
	if _, err := env.Engine.GetRelease(env.Ctx, "missing", other); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestClientReadsAreRedactedAndScoped(t *testing.T) {
	env := newTestEnv(t)
	rel := env.submit(t)
	if _, err := env.Engine.ApplyTransition(env.Ctx, rel.ID, admin, map[string]any{"admin_notes": "slow payer", "quality_score": 70}); err != nil {
		t.Fatal(err)
	}
	got, err := env.Engine.GetRelease(env.Ctx, rel.ID, client)
	if err != nil {
		t.Fatal(err)
	}
	if got.AdminNotes != nil || got.QualityScore != nil {
		t.Fatalf("client read leaked admin fields: %+v", got)
	}
	full, _ := env.Engine.GetRelease(env.Ctx, rel.ID, admin)
	if full.AdminNotes == nil || full.QualityScore == nil {
		t.Fatalf("admin read should include admin fields")
	}

	mine, err := env.Engine.ListReleases(env.Ctx, client, repo.ReleaseFilters{})
	if err != nil || len(mine) != 1 {
		t.Fatalf("expected one release for owner: %v %d", err, len(mine))
	}
	theirs, err := env.Engine.ListReleases(env.Ctx, other, repo.ReleaseFilters{ClientID: client.ID})
	if err != nil || len(theirs) != 0 {
		t.Fatalf("other client must not see releases: %v %d", err, len(theirs))
	}
}

func TestClientWriteResponsesAreRedacted(t *testing.T) {
	env := newTestEnv(t)
	rel := env.toAwaitingClient(t)
	if _, err := env.Engine.ApplyTransition(env.Ctx, rel.ID, admin, map[string]any{"admin_notes": "client is difficult", "quality_score": 42}); err != nil {
		t.Fatal(err)
	}
	got, err := env.Engine.ApplyTransition(env.Ctx, rel.ID, client, map[string]any{"status": "client_approved", "client_feedback": "ok"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusClientApproved {
		t.Fatalf("expected client_approved, got %s", got.Status)
	}
	if got.AdminNotes != nil || got.QualityScore != nil {
		t.Fatalf("client write response leaked admin fields: notes=%v score=%v", got.AdminNotes, got.QualityScore)
	}

	// Same status again commits nothing and still hides the admin fields.
	same, err := env.Engine.ApplyTransition(env.Ctx, rel.ID, client, map[string]any{"status": "client_approved"})
	if err != nil {
		t.Fatal(err)
	}
	if same.AdminNotes != nil || same.QualityScore != nil {
		t.Fatalf("no-op response leaked admin fields: %+v", same)
	}

	full, err := env.Engine.ApplyTransition(env.Ctx, rel.ID, admin, map[string]any{"headline": "Acme raises"})
	if err != nil {
		t.Fatal(err)
	}
	if full.AdminNotes == nil || full.QualityScore == nil || *full.QualityScore != 42 {
		t.Fatalf("admin write response should include admin fields: %+v", full)
	}
}

func TestPatchToPublishedUsesPublishGuards(t *testing.T) {
	env := newTestEnv(t)
	rel := env.toAwaitingClient(t)
	env.setStatus(t, rel.ID, client, domain.StatusClientApproved)
	env.setStatus(t, rel.ID, admin, domain.StatusPublished)

	_, err := env.Engine.ApplyTransition(env.Ctx, rel.ID, admin, map[string]any{"status": "published"})
	if !errors.Is(err, engine.ErrAlreadyPublished) {
		t.Fatalf("expected ErrAlreadyPublished, got %v", err)
	}
	n, err := env.Engine.Repo.CountShowcasesForRelease(env.Ctx, rel.ID)
	if err != nil || n != 1 {
		t.Fatalf("expected one showcase, got %d (%v)", n, err)
	}
	entries, err := env.Engine.Repo.LatestActivity(env.Ctx, 1, rel.ID, "")
	if err != nil || len(entries) != 1 || entries[0].Action != "release.published" {
		t.Fatalf("expected release.published as last activity: %+v %v", entries, err)
	}
}

func TestPatchToPublishedRequiresContent(t *testing.T) {
	env := newTestEnv(t)
	rel := env.submit(t)
	for _, s := range []domain.Status{domain.StatusDraftGenerated, domain.StatusAdminApproved, domain.StatusAwaitingClient} {
		env.setStatus(t, rel.ID, admin, s)
	}
	env.setStatus(t, rel.ID, client, domain.StatusClientApproved)

	_, err := env.Engine.ApplyTransition(env.Ctx, rel.ID, admin, map[string]any{"status": "published"})
	if !errors.Is(err, engine.ErrMissingContent) {
		t.Fatalf("expected ErrMissingContent, got %v", err)
	}
	if n, _ := env.Engine.Repo.CountShowcasesForRelease(env.Ctx, rel.ID); n != 0 {
		t.Fatalf("no showcase expected without content, got %d", n)
	}

	got, err := env.Engine.ApplyTransition(env.Ctx, rel.ID, admin, map[string]any{"status": "published", "final_content": "Acme ships."})
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusPublished {
		t.Fatalf("expected published, got %s", got.Status)
	}
}

func TestSubmitValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.SubmitRelease(env.Ctx, client, engine.SubmitOptions{CompanyName: "Acme"})
	var fe *engine.InvalidFieldError
	if !errors.As(err, &fe) {
		t.Fatalf("expected invalid field, got %v", err)
	}
	_, err = env.Engine.SubmitRelease(env.Ctx, client, engine.SubmitOptions{
		ClientID: other.ID, CompanyName: "Acme", AnnouncementType: "x", AnnouncementDetails: "y",
	})
	if !errors.As(err, new(auth.ForbiddenError)) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	_, err = env.Engine.SubmitRelease(env.Ctx, admin, engine.SubmitOptions{
		ClientID: "ghost", CompanyName: "Acme", AnnouncementType: "x", AnnouncementDetails: "y",
	})
	if !errors.As(err, &fe) || fe.Field != "client_id" {
		t.Fatalf("expected unknown client, got %v", err)
	}
}

func TestOnboardingNudges(t *testing.T) {
	env := newTestEnv(t)
	env.submit(t)
	env.advance(72 * time.Hour)

	sent, err := env.Engine.RunOnboardingNudges(env.Ctx, 48*time.Hour, 10)
	if err != nil {
		t.Fatalf("nudge: %v", err)
	}
	if sent != 1 || len(env.Notifier.nudges) != 1 || env.Notifier.nudges[0] != "other@example.com" {
		t.Fatalf("expected only the idle client nudged: %d %v", sent, env.Notifier.nudges)
	}
	sent, err = env.Engine.RunOnboardingNudges(env.Ctx, 48*time.Hour, 10)
	if err != nil || sent != 0 {
		t.Fatalf("second run should nudge nobody: %d %v", sent, err)
	}
}
