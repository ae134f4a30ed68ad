package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"pressflow/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var (
	ErrNotFound = errors.New("not found")
	// ErrStale means a conditional update matched no row.
	ErrStale = errors.New("conditional update matched no rows")
)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

var releaseColumns = []string{
	"id", "client_id", "company_name", "announcement_type", "announcement_details",
	"target_audience", "contact_name", "contact_email",
	"ai_draft_content", "ai_headline_options", "panel_feedback", "admin_refined_content",
	"pending_rewrite_content", "final_content", "headline", "client_feedback", "admin_notes", "quality_score",
	"status", "rewrite_used",
	"admin_reviewed_by", "admin_reviewed_at", "quality_reviewed_by", "quality_reviewed_at",
	"client_feedback_at", "sent_to_client_at", "published_at",
	"created_at", "updated_at",
}

func scanRelease(row rowScanner) (domain.ReleaseRequest, error) {
	var (
		r       domain.ReleaseRequest
		status  string
		rewrite int
		score   sql.NullInt64
		opt     [19]sql.NullString
	)
	err := row.Scan(
		&r.ID, &r.ClientID, &r.CompanyName, &r.AnnouncementType, &r.AnnouncementDetails,
		&opt[0], &opt[1], &opt[2],
		&opt[3], &opt[4], &opt[5], &opt[6],
		&opt[7], &opt[8], &opt[9], &opt[10], &opt[11], &score,
		&status, &rewrite,
		&opt[12], &opt[13], &opt[14], &opt[15],
		&opt[16], &opt[17], &opt[18],
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return r, ErrNotFound
	}
	if err != nil {
		return r, err
	}
	r.Status = domain.Status(status)
	r.RewriteUsed = rewrite != 0
	if score.Valid {
		v := int(score.Int64)
		r.QualityScore = &v
	}
	targets := []**string{
		&r.TargetAudience, &r.ContactName, &r.ContactEmail,
		&r.AIDraftContent, &r.AIHeadlineOptions, &r.PanelFeedback, &r.AdminRefinedContent,
		&r.PendingRewriteContent, &r.FinalContent, &r.Headline, &r.ClientFeedback, &r.AdminNotes,
		&r.AdminReviewedBy, &r.AdminReviewedAt, &r.QualityReviewedBy, &r.QualityReviewedAt,
		&r.ClientFeedbackAt, &r.SentToClientAt, &r.PublishedAt,
	}
	for i, dst := range targets {
		*dst = ptrFromNull(opt[i])
	}
	return r, nil
}

func (r Repo) InsertReleaseTx(ctx context.Context, tx *sql.Tx, rel domain.ReleaseRequest) error {
	return insertRelease(ctx, tx, rel)
}

func insertRelease(ctx context.Context, q queryer, rel domain.ReleaseRequest) error {
	query, args, err := sq.Insert("release_requests").SetMap(map[string]any{
		"id":                   rel.ID,
		"client_id":            rel.ClientID,
		"company_name":         rel.CompanyName,
		"announcement_type":    rel.AnnouncementType,
		"announcement_details": rel.AnnouncementDetails,
		"target_audience":      nullablePtr(rel.TargetAudience),
		"contact_name":         nullablePtr(rel.ContactName),
		"contact_email":        nullablePtr(rel.ContactEmail),
		"status":               string(rel.Status),
		"rewrite_used":         0,
		"created_at":           rel.CreatedAt,
		"updated_at":           rel.UpdatedAt,
	}).ToSql()
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, query, args...)
	return err
}

func (r Repo) GetRelease(ctx context.Context, id string) (domain.ReleaseRequest, error) {
	return getRelease(ctx, r.DB, id)
}

func getRelease(ctx context.Context, q queryer, id string) (domain.ReleaseRequest, error) {
	query, args, err := sq.Select(releaseColumns...).From("release_requests").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.ReleaseRequest{}, err
	}
	return scanRelease(q.QueryRowContext(ctx, query, args...))
}

type ReleaseFilters struct {
	ClientID        string
	Status          domain.Status
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

// ListReleases returns releases newest first, keyset-paginated on (created_at, id).
func (r Repo) ListReleases(ctx context.Context, f ReleaseFilters) ([]domain.ReleaseRequest, error) {
	b := sq.Select(releaseColumns...).From("release_requests").OrderBy("created_at DESC", "id DESC")
	if f.ClientID != "" {
		b = b.Where(sq.Eq{"client_id": f.ClientID})
	}
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": string(f.Status)})
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		b = b.Where(sq.Or{
			sq.Lt{"created_at": f.CursorCreatedAt},
			sq.And{sq.Eq{"created_at": f.CursorCreatedAt}, sq.Lt{"id": f.CursorID}},
		})
	}
	if f.Limit > 0 {
		b = b.Limit(uint64(f.Limit))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ReleaseRequest
	for rows.Next() {
		rel, err := scanRelease(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rel)
	}
	return res, rows.Err()
}

// UpdateReleaseIfStatusTx writes set only while the row still holds expected.
// A miss returns ErrStale so the caller can tell a lost race from success.
func (r Repo) UpdateReleaseIfStatusTx(ctx context.Context, tx *sql.Tx, id string, expected domain.Status, set map[string]any) error {
	if len(set) == 0 {
		return nil
	}
	query, args, err := sq.Update("release_requests").
		SetMap(set).
		Where(sq.Eq{"id": id, "status": string(expected)}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStale
	}
	return nil
}

// ClaimRewriteTx flips rewrite_used and stores the rewrite in one statement.
func (r Repo) ClaimRewriteTx(ctx context.Context, tx *sql.Tx, id, content, updatedAt string) error {
	query, args, err := sq.Update("release_requests").
		Set("pending_rewrite_content", content).
		Set("rewrite_used", 1).
		Set("updated_at", updatedAt).
		Where(sq.Eq{"id": id, "rewrite_used": 0}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStale
	}
	return nil
}

// SetOnce yields a column value that keeps an existing non-null value.
func SetOnce(column string, value any) sq.Sqlizer {
	return sq.Expr(fmt.Sprintf("COALESCE(%s, ?)", column), value)
}

// CountReleasesByStatus summarises the queue.
func (r Repo) CountReleasesByStatus(ctx context.Context, clientID string) (map[string]int, error) {
	b := sq.Select("status", "COUNT(*)").From("release_requests").GroupBy("status")
	if clientID != "" {
		b = b.Where(sq.Eq{"client_id": clientID})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func ptrFromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullablePtr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
