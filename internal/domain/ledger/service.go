package ledger

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/onepay/onepay-api/internal/pkg/validator"
)

// Store is the repository surface the service depends on
type Store interface {
	VerifyAccountPIN(ctx context.Context, userID, accountID uuid.UUID, pin string) (bool, error)
	VerifyAccountPINByNo(ctx context.Context, userID uuid.UUID, accountNo, pin string) (bool, error)
	Deposit(ctx context.Context, userID, accountID uuid.UUID, amount float64, description string) (*Movement, error)
	Withdraw(ctx context.Context, userID, accountID uuid.UUID, amount float64, description string) (*Movement, error)
	OpenAccount(ctx context.Context, userID uuid.UUID, pin string, initialBalance float64) (*Account, error)
	UpdateAccountPIN(ctx context.Context, userID, accountID uuid.UUID, newPIN string) (bool, error)
	ListAccountsByUser(ctx context.Context, userID uuid.UUID) ([]Account, error)
	VerifyAccount(ctx context.Context, accountNo string) (*AccountIdentity, error)
	TransferByNo(ctx context.Context, userID uuid.UUID, fromNo, toNo string, amount float64, description string) (*TransferResult, error)
	PostJournal(ctx context.Context, userID, accountID uuid.UUID, debit, credit float64, description string) (*Journal, error)
	ListJournals(ctx context.Context, userID, accountID uuid.UUID, limit, offset int) ([]Journal, error)
	GetJournalPublic(ctx context.Context, journalID uuid.UUID) (*PublicJournal, error)
	ListJournalsPublic(ctx context.Context, accountNo string, limit, offset int) ([]PublicJournal, error)
	Audit(ctx context.Context, userID *uuid.UUID, action, target string, meta []byte) error
}

// Service exposes the movement gateway and the PIN authenticator on top of
// the ledger stored functions.
type Service struct {
	repo Store
}

func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// VerifyPIN rejects malformed PINs before any database call and checks the
// rest against the stored hash.
func (s *Service) VerifyPIN(ctx context.Context, userID, accountID uuid.UUID, pin string) error {
	if !validator.IsValidPIN(pin) {
		return ErrPINFormat
	}
	ok, err := s.repo.VerifyAccountPIN(ctx, userID, accountID, pin)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPINMismatch
	}
	return nil
}

// Debit withdraws amount from the account. Callers own the at-most-once
// contract: one Debit per logical charge, one Credit per reversal.
func (s *Service) Debit(ctx context.Context, userID, accountID uuid.UUID, amount float64, description string) (*Movement, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	m, err := s.repo.Withdraw(ctx, userID, accountID, amount, description)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("user_id", userID.String()).
		Str("account_id", accountID.String()).
		Float64("amount", amount).
		Str("journal_id", m.JournalID.String()).
		Msg("ledger debit applied")
	return m, nil
}

// Credit deposits amount into the account
func (s *Service) Credit(ctx context.Context, userID, accountID uuid.UUID, amount float64, description string) (*Movement, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	m, err := s.repo.Deposit(ctx, userID, accountID, amount, description)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("user_id", userID.String()).
		Str("account_id", accountID.String()).
		Float64("amount", amount).
		Str("journal_id", m.JournalID.String()).
		Msg("ledger credit applied")
	return m, nil
}

// OpenAccount opens a new account guarded by a well-formed PIN
func (s *Service) OpenAccount(ctx context.Context, userID uuid.UUID, pin string, initialBalance float64) (*Account, error) {
	if !validator.IsValidPIN(pin) {
		return nil, ErrPINFormat
	}
	if initialBalance < 0 {
		return nil, ErrInvalidAmount
	}
	acc, err := s.repo.OpenAccount(ctx, userID, pin, initialBalance)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, userID, "account_open", acc.ID.String(), map[string]interface{}{
		"account_no":      acc.AccountNo,
		"initial_balance": initialBalance,
	})
	return acc, nil
}

// UpdatePIN replaces the PIN of an owned account
func (s *Service) UpdatePIN(ctx context.Context, userID, accountID uuid.UUID, newPIN string) error {
	if !validator.IsValidPIN(newPIN) {
		return ErrPINFormat
	}
	ok, err := s.repo.UpdateAccountPIN(ctx, userID, accountID, newPIN)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAccountNotOwned
	}
	s.audit(ctx, userID, "account_pin_update", accountID.String(), nil)
	return nil
}

// CheckPIN reports whether the PIN matches, without failing the request
func (s *Service) CheckPIN(ctx context.Context, userID, accountID uuid.UUID, pin string) (bool, error) {
	if !validator.IsValidPIN(pin) {
		return false, ErrPINFormat
	}
	valid, err := s.repo.VerifyAccountPIN(ctx, userID, accountID, pin)
	if err != nil {
		return false, err
	}
	s.audit(ctx, userID, "account_pin_check", accountID.String(), map[string]interface{}{
		"account_id": accountID,
		"valid":      valid,
	})
	return valid, nil
}

// ListAccounts returns the caller's accounts
func (s *Service) ListAccounts(ctx context.Context, userID uuid.UUID) ([]Account, error) {
	return s.repo.ListAccountsByUser(ctx, userID)
}

// VerifyAccount resolves an account number to its owner (public endpoint)
func (s *Service) VerifyAccount(ctx context.Context, accountNo string) (*AccountIdentity, error) {
	return s.repo.VerifyAccount(ctx, strings.TrimSpace(accountNo))
}

// CashDeposit posts a deposit; no PIN is required for paying money in
func (s *Service) CashDeposit(ctx context.Context, userID, accountID uuid.UUID, amount float64, description string) (*Movement, error) {
	m, err := s.Credit(ctx, userID, accountID, amount, description)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, userID, "deposit", m.JournalID.String(), nil)
	return m, nil
}

// CashWithdraw posts a withdrawal after PIN verification
func (s *Service) CashWithdraw(ctx context.Context, userID, accountID uuid.UUID, amount float64, description, pin string) (*Movement, error) {
	if err := s.VerifyPIN(ctx, userID, accountID, pin); err != nil {
		return nil, err
	}
	m, err := s.Debit(ctx, userID, accountID, amount, description)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, userID, "withdraw", m.JournalID.String(), nil)
	return m, nil
}

// Transfer moves funds between accounts addressed by account number
func (s *Service) Transfer(ctx context.Context, userID uuid.UUID, fromNo, toNo string, amount float64, description, pin string) (*TransferResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if strings.TrimSpace(fromNo) == strings.TrimSpace(toNo) {
		return nil, ErrSameAccount
	}
	if !validator.IsValidPIN(pin) {
		return nil, ErrPINFormat
	}

	ok, err := s.repo.VerifyAccountPINByNo(ctx, userID, fromNo, pin)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPINMismatch
	}

	result, err := s.repo.TransferByNo(ctx, userID, fromNo, toNo, amount, description)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, userID, "transfer", "", map[string]interface{}{
		"from_account_no": fromNo,
		"to_account_no":   toNo,
		"amount":          amount,
	})
	return result, nil
}

// PostJournal records an arbitrary journal entry
func (s *Service) PostJournal(ctx context.Context, userID, accountID uuid.UUID, debit, credit float64, description string) (*Journal, error) {
	if debit < 0 || credit < 0 {
		return nil, ErrInvalidAmount
	}
	if debit == 0 && credit == 0 {
		return nil, ErrInvalidAmount
	}
	j, err := s.repo.PostJournal(ctx, userID, accountID, debit, credit, description)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, userID, "journal_post", j.ID.String(), map[string]interface{}{
		"account_id": accountID,
		"debit":      debit,
		"credit":     credit,
	})
	return j, nil
}

// ListJournals returns the caller's journal entries for one account
func (s *Service) ListJournals(ctx context.Context, userID, accountID uuid.UUID, limit, offset int) ([]Journal, error) {
	if limit < 1 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListJournals(ctx, userID, accountID, limit, offset)
}

// GetJournalPublic returns the public receipt view of one journal entry
func (s *Service) GetJournalPublic(ctx context.Context, journalID uuid.UUID) (*PublicJournal, error) {
	return s.repo.GetJournalPublic(ctx, journalID)
}

// ListJournalsPublic returns the public receipt view of an account's journal
func (s *Service) ListJournalsPublic(ctx context.Context, accountNo string, limit, offset int) ([]PublicJournal, error) {
	if limit < 1 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListJournalsPublic(ctx, accountNo, limit, offset)
}

// audit is fire-and-forget: failures are logged, never surfaced
func (s *Service) audit(ctx context.Context, userID uuid.UUID, action, target string, meta map[string]interface{}) {
	var metaJSON []byte
	if meta != nil {
		metaJSON, _ = json.Marshal(meta)
	}
	if err := s.repo.Audit(ctx, &userID, action, target, metaJSON); err != nil {
		log.Warn().Err(err).Str("action", action).Msg("audit write failed")
	}
}
