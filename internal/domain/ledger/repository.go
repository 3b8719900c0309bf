package ledger

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository wraps the ledger database's stored functions. Each function is
// an atomic, opaque operation; this layer only shapes arguments and maps the
// database's sentinel error strings to typed errors, exactly once.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// mapStoredError converts the stored functions' sentinel strings into the
// package's closed error set. Unknown errors pass through unchanged.
func mapStoredError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "INSUFFICIENT_FUNDS"):
		return ErrInsufficientFunds
	case strings.Contains(msg, "ACCOUNT_NOT_OWNED"):
		return ErrAccountNotOwned
	case strings.Contains(msg, "ACCOUNT_FROM_NOT_FOUND"),
		strings.Contains(msg, "ACCOUNT_TO_NOT_FOUND"),
		strings.Contains(msg, "ACCOUNT_NOT_FOUND"):
		return ErrAccountNotFound
	case strings.Contains(msg, "AMOUNT_INVALID"):
		return ErrInvalidAmount
	case strings.Contains(msg, "SAME_ACCOUNT"):
		return ErrSameAccount
	}
	return err
}

// VerifyAccountPIN checks a PIN against the stored hash for an owned account
func (r *Repository) VerifyAccountPIN(ctx context.Context, userID, accountID uuid.UUID, pin string) (bool, error) {
	var ok sql.NullBool
	err := r.db.GetContext(ctx, &ok,
		`SELECT lab_fun_verify_account_pin($1,$2,$3) AS ok`, userID, accountID, pin)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapStoredError(err)
	}
	return ok.Valid && ok.Bool, nil
}

// VerifyAccountPINByNo checks a PIN for an account addressed by account number
func (r *Repository) VerifyAccountPINByNo(ctx context.Context, userID uuid.UUID, accountNo, pin string) (bool, error) {
	var ok sql.NullBool
	err := r.db.GetContext(ctx, &ok, `
		SELECT lab_fun_verify_account_pin(
			$1,
			(SELECT id FROM lab_accounts WHERE account_no = $2),
			$3
		) AS ok
	`, userID, accountNo, pin)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapStoredError(err)
	}
	return ok.Valid && ok.Bool, nil
}

// Deposit posts a credit movement and returns the resulting journal entry
func (r *Repository) Deposit(ctx context.Context, userID, accountID uuid.UUID, amount float64, description string) (*Movement, error) {
	var m Movement
	err := r.db.GetContext(ctx, &m, `
		SELECT journal_id, account_id, balance_after, trx_time, COALESCE(description, '') AS description
		FROM lab_fun_deposit($1,$2,$3,$4)
	`, userID, accountID, amount, description)
	if err != nil {
		return nil, mapStoredError(err)
	}
	return &m, nil
}

// Withdraw posts a debit movement and returns the resulting journal entry
func (r *Repository) Withdraw(ctx context.Context, userID, accountID uuid.UUID, amount float64, description string) (*Movement, error) {
	var m Movement
	err := r.db.GetContext(ctx, &m, `
		SELECT journal_id, account_id, balance_after, trx_time, COALESCE(description, '') AS description
		FROM lab_fun_withdraw($1,$2,$3,$4)
	`, userID, accountID, amount, description)
	if err != nil {
		return nil, mapStoredError(err)
	}
	return &m, nil
}

// OpenAccount creates an account with a hashed PIN and optional opening balance
func (r *Repository) OpenAccount(ctx context.Context, userID uuid.UUID, pin string, initialBalance float64) (*Account, error) {
	var accountID uuid.UUID
	err := r.db.GetContext(ctx, &accountID,
		`SELECT account_id FROM lab_fun_open_account($1,$2,$3)`, userID, pin, initialBalance)
	if err != nil {
		return nil, mapStoredError(err)
	}

	var acc Account
	err = r.db.GetContext(ctx, &acc, `
		SELECT id, account_no, saldo::float8 AS saldo, created_at, updated_at
		FROM lab_accounts WHERE id = $1
	`, accountID)
	if err != nil {
		return nil, mapStoredError(err)
	}
	return &acc, nil
}

// UpdateAccountPIN replaces the stored PIN hash for an owned account
func (r *Repository) UpdateAccountPIN(ctx context.Context, userID, accountID uuid.UUID, newPIN string) (bool, error) {
	var ok sql.NullBool
	err := r.db.GetContext(ctx, &ok,
		`SELECT lab_fun_update_account_pin($1,$2,$3) AS ok`, userID, accountID, newPIN)
	if err != nil {
		return false, mapStoredError(err)
	}
	return ok.Valid && ok.Bool, nil
}

// ListAccountsByUser returns the caller's accounts
func (r *Repository) ListAccountsByUser(ctx context.Context, userID uuid.UUID) ([]Account, error) {
	var accounts []Account
	err := r.db.SelectContext(ctx, &accounts, `
		SELECT id, account_no, saldo::float8 AS saldo, created_at, updated_at
		FROM lab_fun_list_accounts_by_user($1)
	`, userID)
	if err != nil {
		return nil, mapStoredError(err)
	}
	return accounts, nil
}

// VerifyAccount resolves an account number to its owner identity (public)
func (r *Repository) VerifyAccount(ctx context.Context, accountNo string) (*AccountIdentity, error) {
	var identity AccountIdentity
	err := r.db.GetContext(ctx, &identity, `
		SELECT account_no, owner_name, status, email
		FROM lab_fun_verify_account($1)
	`, accountNo)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, mapStoredError(err)
	}
	return &identity, nil
}

// TransferByNo moves funds between two accounts addressed by account number
func (r *Repository) TransferByNo(ctx context.Context, userID uuid.UUID, fromNo, toNo string, amount float64, description string) (*TransferResult, error) {
	var result TransferResult
	err := r.db.GetContext(ctx, &result, `
		SELECT journal_id_credit, journal_id_debit, token_from, token_to
		FROM lab_fun_transfer_by_no($1,$2,$3,$4,$5)
	`, userID, fromNo, toNo, amount, description)
	if err != nil {
		return nil, mapStoredError(err)
	}
	return &result, nil
}

// PostJournal records an arbitrary debit/credit entry and returns the row
func (r *Repository) PostJournal(ctx context.Context, userID, accountID uuid.UUID, debit, credit float64, description string) (*Journal, error) {
	var journalID uuid.UUID
	err := r.db.GetContext(ctx, &journalID,
		`SELECT lab_fun_post_journal($1,$2,$3,$4,$5) AS journal_id`,
		userID, accountID, debit, credit, description)
	if err != nil {
		return nil, mapStoredError(err)
	}

	var j Journal
	err = r.db.GetContext(ctx, &j, `
		SELECT id, trx_time,
		       debit::float8  AS debit,
		       credit::float8 AS credit,
		       description,
		       balance_after::float8 AS balance_after,
		       NULL::text AS nama_lengkap
		FROM lab_journals
		WHERE id = $1
	`, journalID)
	if err != nil {
		return nil, mapStoredError(err)
	}
	return &j, nil
}

// ListJournals returns the caller's journal entries for one account
func (r *Repository) ListJournals(ctx context.Context, userID, accountID uuid.UUID, limit, offset int) ([]Journal, error) {
	var journals []Journal
	err := r.db.SelectContext(ctx, &journals, `
		SELECT id, trx_time,
		       debit::float8  AS debit,
		       credit::float8 AS credit,
		       description,
		       balance_after::float8 AS balance_after,
		       nama_lengkap
		FROM lab_fun_list_journal($1,$2,$3,$4)
	`, userID, accountID, limit, offset)
	if err != nil {
		return nil, mapStoredError(err)
	}
	return journals, nil
}

// GetJournalPublic returns the receipt view of a single journal entry
func (r *Repository) GetJournalPublic(ctx context.Context, journalID uuid.UUID) (*PublicJournal, error) {
	var j PublicJournal
	err := r.db.GetContext(ctx, &j, `
		SELECT journal_id, account_no, debit, credit, balance_after, trx_time,
		       COALESCE(description, '') AS description,
		       COALESCE(nama_lengkap, '') AS nama_lengkap
		FROM lab_fun_get_journal_public($1)
	`, journalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, mapStoredError(err)
	}
	return &j, nil
}

// ListJournalsPublic returns the receipt view of an account's journal
func (r *Repository) ListJournalsPublic(ctx context.Context, accountNo string, limit, offset int) ([]PublicJournal, error) {
	var journals []PublicJournal
	err := r.db.SelectContext(ctx, &journals, `
		SELECT journal_id, account_no, debit, credit, balance_after, trx_time,
		       COALESCE(description, '') AS description,
		       COALESCE(nama_lengkap, '') AS nama_lengkap
		FROM lab_fun_list_journals_public($1,$2,$3)
	`, accountNo, limit, offset)
	if err != nil {
		return nil, mapStoredError(err)
	}
	return journals, nil
}

// Audit writes one audit row. Errors are the caller's to ignore.
func (r *Repository) Audit(ctx context.Context, userID *uuid.UUID, action, target string, meta []byte) error {
	if meta == nil {
		meta = []byte("null")
	}
	_, err := r.db.ExecContext(ctx,
		`SELECT lab_fun_audit($1,$2,$3,$4,$5,$6)`,
		userID, action, target, meta, "unknown", "unknown")
	return err
}
