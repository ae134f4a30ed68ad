package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"pressflow/internal/domain"
)

func scanClient(row rowScanner) (domain.Client, error) {
	var c domain.Client
	var name, nudged sql.NullString
	err := row.Scan(&c.ID, &c.Email, &name, &c.CreatedAt, &nudged)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	c.Name = name.String
	c.NudgedAt = ptrFromNull(nudged)
	return c, nil
}

func (r Repo) InsertClient(ctx context.Context, c domain.Client) error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("id required")
	}
	if strings.TrimSpace(c.Email) == "" {
		return errors.New("email required")
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO clients(id,email,name,created_at) VALUES (?,?,?,?)`,
		c.ID, c.Email, nullable(c.Name), c.CreatedAt)
	return err
}

func (r Repo) GetClient(ctx context.Context, id string) (domain.Client, error) {
	return scanClient(r.DB.QueryRowContext(ctx, `SELECT id,email,name,created_at,nudged_at FROM clients WHERE id=?`, id))
}

func (r Repo) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,email,name,created_at,nudged_at FROM clients ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// ClientsToNudge returns clients created before cutoff that have no releases
// and were never nudged.
func (r Repo) ClientsToNudge(ctx context.Context, cutoff string, limit int) ([]domain.Client, error) {
	b := sq.Select("c.id", "c.email", "c.name", "c.created_at", "c.nudged_at").
		From("clients c").
		Where(sq.Lt{"c.created_at": cutoff}).
		Where(sq.Eq{"c.nudged_at": nil}).
		Where("NOT EXISTS (SELECT 1 FROM release_requests rr WHERE rr.client_id = c.id)").
		OrderBy("c.created_at")
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
	var res []domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// MarkClientNudged stamps nudged_at once; a second call reports ErrStale.
func (r Repo) MarkClientNudged(ctx context.Context, id, now string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE clients SET nudged_at=? WHERE id=? AND nudged_at IS NULL`, now, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStale
	}
	return nil
}
