package admin

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// ListAuditLogs returns audit rows newest first, optionally filtered by
// user and action.
func (r *Repository) ListAuditLogs(ctx context.Context, userID *uuid.UUID, action string, limit, offset int) ([]AuditLog, error) {
	var logs []AuditLog
	err := r.db.SelectContext(ctx, &logs, `
		SELECT id, user_id, action, COALESCE(target, '') AS target, meta,
		       COALESCE(ip, '') AS ip, COALESCE(user_agent, '') AS user_agent,
		       created_at
		FROM lab_audit_logs
		WHERE ($1::uuid IS NULL OR user_id = $1)
		  AND ($2 = '' OR action = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, userID, action, limit, offset)
	if err != nil {
		return nil, err
	}
	return logs, nil
}
