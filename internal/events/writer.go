package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Activity actions recorded against a release.
const (
	ActionSubmitted      = "release.submitted"
	ActionUpdated        = "release.updated"
	ActionStatusChanged  = "release.status_changed"
	ActionRewriteRequest = "release.rewrite_requested"
	ActionDraftGenerated = "release.draft_generated"
	ActionPanelReviewed  = "release.panel_reviewed"
	ActionPublished      = "release.published"
)

// Writer appends activity_log rows. Rows are never updated or deleted.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type Details map[string]any

// Append writes one entry inside tx so it only lands if the mutation commits.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, releaseID, userID, action string, details Details) (int64, error) {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if details == nil {
		details = Details{}
	}
	data, err := json.Marshal(details)
	if err != nil {
		return 0, fmt.Errorf("marshal activity details: %w", err)
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO activity_log(release_request_id,user_id,action,details_json,created_at) VALUES (?,?,?,?,?)`,
		releaseID, userID, action, string(data), ts)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
