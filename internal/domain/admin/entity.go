package admin

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditLog is one row of the append-only audit trail
type AuditLog struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    *uuid.UUID      `db:"user_id" json:"user_id,omitempty"`
	Action    string          `db:"action" json:"action"`
	Target    string          `db:"target" json:"target"`
	Meta      json.RawMessage `db:"meta" json:"meta,omitempty"`
	IP        string          `db:"ip" json:"ip"`
	UserAgent string          `db:"user_agent" json:"user_agent"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
