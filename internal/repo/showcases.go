package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"pressflow/internal/domain"
)

var showcaseColumns = []string{
	"id", "release_request_id", "company_name", "headline", "summary", "content",
	"view_count", "share_count", "click_count", "published_at", "created_at",
}

func scanShowcase(row rowScanner) (domain.ShowcaseRelease, error) {
	var s domain.ShowcaseRelease
	err := row.Scan(&s.ID, &s.ReleaseRequestID, &s.CompanyName, &s.Headline, &s.Summary, &s.Content,
		&s.ViewCount, &s.ShareCount, &s.ClickCount, &s.PublishedAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	return s, err
}

// CreateShowcaseIfAbsent inserts the projection unless the release already has one.
// It reports whether a row was written.
func (r Repo) CreateShowcaseIfAbsent(ctx context.Context, s domain.ShowcaseRelease) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO showcase_releases(id,release_request_id,company_name,headline,summary,content,published_at,created_at)
		VALUES (?,?,?,?,?,?,?,?) ON CONFLICT(release_request_id) DO NOTHING`,
		s.ID, s.ReleaseRequestID, s.CompanyName, s.Headline, s.Summary, s.Content, s.PublishedAt, s.CreatedAt)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r Repo) GetShowcase(ctx context.Context, id string) (domain.ShowcaseRelease, error) {
	query, args, err := sq.Select(showcaseColumns...).From("showcase_releases").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.ShowcaseRelease{}, err
	}
	return scanShowcase(r.DB.QueryRowContext(ctx, query, args...))
}

func (r Repo) GetShowcaseByRelease(ctx context.Context, releaseID string) (domain.ShowcaseRelease, error) {
	query, args, err := sq.Select(showcaseColumns...).From("showcase_releases").Where(sq.Eq{"release_request_id": releaseID}).ToSql()
	if err != nil {
		return domain.ShowcaseRelease{}, err
	}
	return scanShowcase(r.DB.QueryRowContext(ctx, query, args...))
}

func (r Repo) CountShowcasesForRelease(ctx context.Context, releaseID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM showcase_releases WHERE release_request_id=?`, releaseID).Scan(&n)
	return n, err
}

func (r Repo) ListShowcases(ctx context.Context, limit int, cursorPublishedAt, cursorID string) ([]domain.ShowcaseRelease, error) {
	b := sq.Select(showcaseColumns...).From("showcase_releases").OrderBy("published_at DESC", "id DESC")
	if cursorPublishedAt != "" && cursorID != "" {
		b = b.Where(sq.Or{
			sq.Lt{"published_at": cursorPublishedAt},
			sq.And{sq.Eq{"published_at": cursorPublishedAt}, sq.Lt{"id": cursorID}},
		})
	}
	if limit > 0 {
		b = b.Limit(uint64(limit))
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
	var res []domain.ShowcaseRelease
	for rows.Next() {
		s, err := scanShowcase(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// ShowcaseCounter names one of the engagement counters.
type ShowcaseCounter string

const (
	CounterView  ShowcaseCounter = "view"
	CounterShare ShowcaseCounter = "share"
	CounterClick ShowcaseCounter = "click"
)

func (r Repo) IncrementShowcaseCounter(ctx context.Context, id string, counter ShowcaseCounter) error {
	var column string
	switch counter {
	case CounterView:
		column = "view_count"
	case CounterShare:
		column = "share_count"
	case CounterClick:
		column = "click_count"
	default:
		return fmt.Errorf("invalid counter %q", counter)
	}
	query, args, err := sq.Update("showcase_releases").
		Set(column, sq.Expr(column+" + 1")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
