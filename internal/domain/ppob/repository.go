package ppob

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Upsert inserts the transaction or, when the ref_id already exists, refreshes
// the mutable columns. Repeated saves of the same orchestration step are
// therefore idempotent.
func (r *Repository) Upsert(ctx context.Context, tx *Transaction) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO lab_ppob_transactions (
			tx_id, ref_id, user_id, account_id, buyer_sku_code, customer_no,
			product_type, amount_nominal, price, status, rc, message, sn,
			reversed, raw_request, raw_response, created_at, updated_at
		) VALUES (
			:tx_id, :ref_id, :user_id, :account_id, :buyer_sku_code, :customer_no,
			:product_type, :amount_nominal, :price, :status, :rc, :message, :sn,
			:reversed, :raw_request, :raw_response, NOW(), NOW()
		)
		ON CONFLICT (ref_id) DO UPDATE SET
			price        = EXCLUDED.price,
			status       = EXCLUDED.status,
			rc           = EXCLUDED.rc,
			message      = EXCLUDED.message,
			sn           = EXCLUDED.sn,
			raw_request  = COALESCE(EXCLUDED.raw_request, lab_ppob_transactions.raw_request),
			raw_response = COALESCE(EXCLUDED.raw_response, lab_ppob_transactions.raw_response),
			updated_at   = NOW()
	`, tx)
	return err
}

// GetByRefID loads one of the caller's transactions
func (r *Repository) GetByRefID(ctx context.Context, userID uuid.UUID, refID string) (*Transaction, error) {
	var tx Transaction
	err := r.db.GetContext(ctx, &tx, `
		SELECT tx_id, ref_id, user_id, account_id, buyer_sku_code, customer_no,
		       product_type, amount_nominal::float8 AS amount_nominal,
		       price::float8 AS price, status,
		       COALESCE(rc, '') AS rc, COALESCE(message, '') AS message,
		       COALESCE(sn, '') AS sn, reversed,
		       raw_request, raw_response, created_at, updated_at
		FROM lab_ppob_transactions
		WHERE user_id = $1 AND ref_id = $2
	`, userID, refID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// MarkReversed flips the reversed flag, once. The boolean result is the
// compensation gate: false means another run already claimed the reversal.
func (r *Repository) MarkReversed(ctx context.Context, refID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE lab_ppob_transactions
		SET reversed = TRUE, updated_at = NOW()
		WHERE ref_id = $1 AND reversed = FALSE
	`, refID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClearReversed releases a reversal claim after the compensating credit
// failed, so a later reconciliation can retry the refund.
func (r *Repository) ClearReversed(ctx context.Context, refID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE lab_ppob_transactions
		SET reversed = FALSE, updated_at = NOW()
		WHERE ref_id = $1 AND reversed = TRUE
	`, refID)
	return err
}

// ListByUser returns the caller's transaction history, newest first
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transaction, error) {
	var txs []Transaction
	err := r.db.SelectContext(ctx, &txs, `
		SELECT tx_id, ref_id, user_id, account_id, buyer_sku_code, customer_no,
		       product_type, amount_nominal::float8 AS amount_nominal,
		       price::float8 AS price, status,
		       COALESCE(rc, '') AS rc, COALESCE(message, '') AS message,
		       COALESCE(sn, '') AS sn, reversed,
		       raw_request, raw_response, created_at, updated_at
		FROM lab_ppob_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return txs, nil
}

// GetProduct resolves one active catalog entry by SKU
func (r *Repository) GetProduct(ctx context.Context, buyerSKUCode string) (*Product, error) {
	var p Product
	err := r.db.GetContext(ctx, &p, `
		SELECT buyer_sku_code, product_name, category, brand, type,
		       price::float8 AS price, buyer_product_status, seller_product_status
		FROM corp_sp_get_digiflazz_products(NULL, NULL)
		WHERE buyer_sku_code = $1
	`, buyerSKUCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProducts returns catalog entries, optionally filtered by category/brand
func (r *Repository) ListProducts(ctx context.Context, category, brand string, limit, offset int) ([]Product, error) {
	var products []Product
	err := r.db.SelectContext(ctx, &products, `
		SELECT buyer_sku_code, product_name, category, brand, type,
		       price::float8 AS price, buyer_product_status, seller_product_status
		FROM corp_sp_get_digiflazz_products(NULLIF($1, ''), NULLIF($2, ''))
		ORDER BY category, brand, price
		LIMIT $3 OFFSET $4
	`, category, brand, limit, offset)
	if err != nil {
		return nil, err
	}
	return products, nil
}
