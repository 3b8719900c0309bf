package notification

import (
	"time"

	"github.com/google/uuid"
)

// DeviceToken is one registered push target, unique per (user_id, token)
type DeviceToken struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Token     string    `db:"token" json:"token"`
	Platform  string    `db:"platform" json:"platform"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DispatchResult summarizes one fan-out run
type DispatchResult struct {
	Requested int      `json:"requested"`
	Sent      int      `json:"sent"`
	Dropped   int      `json:"dropped"` // unregistered tokens, pruned
	Names     []string `json:"names,omitempty"`
}
