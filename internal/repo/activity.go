package repo

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"pressflow/internal/domain"
)

var activityColumns = []string{"id", "release_request_id", "user_id", "action", "details_json", "created_at"}

func scanActivity(row rowScanner) (domain.ActivityLogEntry, error) {
	var a domain.ActivityLogEntry
	err := row.Scan(&a.ID, &a.ReleaseRequestID, &a.UserID, &a.Action, &a.Details, &a.CreatedAt)
	return a, err
}

func (r Repo) queryActivity(ctx context.Context, b sq.SelectBuilder) ([]domain.ActivityLogEntry, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ActivityLogEntry
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// ListActivity returns a release's entries oldest first, starting after cursor.
func (r Repo) ListActivity(ctx context.Context, releaseID string, afterID int64, limit int) ([]domain.ActivityLogEntry, error) {
	b := sq.Select(activityColumns...).From("activity_log").
		Where(sq.Eq{"release_request_id": releaseID}).
		Where(sq.Gt{"id": afterID}).
		OrderBy("id ASC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return r.queryActivity(ctx, b)
}

// LatestActivity returns the newest n entries across releases, optionally filtered.
func (r Repo) LatestActivity(ctx context.Context, n int, releaseID, action string) ([]domain.ActivityLogEntry, error) {
	b := sq.Select(activityColumns...).From("activity_log").OrderBy("id DESC")
	if releaseID != "" {
		b = b.Where(sq.Eq{"release_request_id": releaseID})
	}
	if action != "" {
		b = b.Where(sq.Eq{"action": action})
	}
	if n > 0 {
		b = b.Limit(uint64(n))
	}
	return r.queryActivity(ctx, b)
}

// ActivityAfter feeds the webhook relay in id order.
func (r Repo) ActivityAfter(ctx context.Context, limit int, afterID int64) ([]domain.ActivityLogEntry, error) {
	b := sq.Select(activityColumns...).From("activity_log").Where(sq.Gt{"id": afterID}).OrderBy("id ASC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return r.queryActivity(ctx, b)
}

func (r Repo) LatestActivityID(ctx context.Context) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM activity_log`).Scan(&id)
	return id, err
}
