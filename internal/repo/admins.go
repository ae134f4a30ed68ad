package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"pressflow/internal/domain"
)

// GrantAdmin adds actorID to the admin roster. Granting twice is a no-op.
func (r Repo) GrantAdmin(ctx context.Context, actorID, grantedBy, now string) error {
	if strings.TrimSpace(actorID) == "" {
		return errors.New("actor_id required")
	}
	_, err := r.DB.ExecContext(ctx, `INSERT OR IGNORE INTO admins(actor_id, granted_by, created_at) VALUES (?,?,?)`, actorID, grantedBy, now)
	return err
}

func (r Repo) RevokeAdmin(ctx context.Context, actorID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM admins WHERE actor_id=?`, actorID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) IsAdmin(ctx context.Context, actorID string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM admins WHERE actor_id=?`, actorID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r Repo) ListAdmins(ctx context.Context) ([]domain.Admin, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT actor_id, granted_by, created_at FROM admins ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Admin
	for rows.Next() {
		var a domain.Admin
		if err := rows.Scan(&a.ActorID, &a.GrantedBy, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}
