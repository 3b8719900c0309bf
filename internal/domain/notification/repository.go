package notification

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

// UpsertToken registers a device token, refreshing the row when the same
// user re-registers the same token.
func (r *Repository) UpsertToken(ctx context.Context, userID uuid.UUID, token, platform string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO lab_device_tokens (id, user_id, token, platform, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, NOW(), NOW())
		ON CONFLICT (user_id, token) DO UPDATE SET
			platform   = EXCLUDED.platform,
			updated_at = NOW()
	`, userID, token, platform)
	return err
}

// TokensForUsers returns the distinct device tokens of the given users
func (r *Repository) TokensForUsers(ctx context.Context, userIDs []uuid.UUID) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		`SELECT DISTINCT token FROM lab_device_tokens WHERE user_id IN (?)`, userIDs)
	if err != nil {
		return nil, err
	}
	var tokens []string
	if err := r.db.SelectContext(ctx, &tokens, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return tokens, nil
}

// AllTokens returns every distinct registered token (broadcast)
func (r *Repository) AllTokens(ctx context.Context) ([]string, error) {
	var tokens []string
	err := r.db.SelectContext(ctx, &tokens,
		`SELECT DISTINCT token FROM lab_device_tokens`)
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// DeleteToken removes a token everywhere it is registered. Used to prune
// tokens the push backend reports as unregistered.
func (r *Repository) DeleteToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM lab_device_tokens WHERE token = $1`, token)
	return err
}
