package ppob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/onepay/onepay-api/internal/domain/ledger"
	"github.com/onepay/onepay-api/internal/pkg/digiflazz"
)

// Store is the persistence surface the orchestrator depends on
type Store interface {
	Upsert(ctx context.Context, tx *Transaction) error
	GetByRefID(ctx context.Context, userID uuid.UUID, refID string) (*Transaction, error)
	MarkReversed(ctx context.Context, refID string) (bool, error)
	ClearReversed(ctx context.Context, refID string) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transaction, error)
	GetProduct(ctx context.Context, buyerSKUCode string) (*Product, error)
	ListProducts(ctx context.Context, category, brand string, limit, offset int) ([]Product, error)
}

// Ledger is the money-movement surface: PIN verification plus the two
// atomic postings the orchestration needs.
type Ledger interface {
	VerifyPIN(ctx context.Context, userID, accountID uuid.UUID, pin string) error
	Debit(ctx context.Context, userID, accountID uuid.UUID, amount float64, description string) (*ledger.Movement, error)
	Credit(ctx context.Context, userID, accountID uuid.UUID, amount float64, description string) (*ledger.Movement, error)
}

// Provider is the aggregator client surface
type Provider interface {
	CheckBalance(ctx context.Context) (float64, error)
	InquiryPLN(ctx context.Context, customerNo string) (*digiflazz.PLNInquiry, error)
	Transaction(ctx context.Context, params digiflazz.TransactionParams) (*digiflazz.TransactionResult, error)
}

// Service orchestrates pre-debit purchases against the provider: debit the
// ledger first, submit, classify, and credit back on failure. Both an
// HTTP-level failure and an explicit business failure count as failure; a
// 2xx response with an unknown status is trusted as success-or-pending and
// left to the status operations to resolve.
type Service struct {
	repo         Store
	ledger       Ledger
	provider     Provider
	policy       digiflazz.OutcomePolicy
	confirmDelay time.Duration
}

func NewService(repo Store, ldg Ledger, provider Provider, policy digiflazz.OutcomePolicy, confirmDelay time.Duration) *Service {
	if policy == nil {
		policy = digiflazz.DefaultOutcomePolicy{}
	}
	return &Service{
		repo:         repo,
		ledger:       ldg,
		provider:     provider,
		policy:       policy,
		confirmDelay: confirmDelay,
	}
}

// ListProducts returns the catalog
func (s *Service) ListProducts(ctx context.Context, category, brand string, limit, offset int) ([]Product, error) {
	if limit < 1 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListProducts(ctx, category, brand, limit, offset)
}

// ListTransactions returns the caller's transaction history
func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transaction, error) {
	if limit < 1 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// CheckBalance returns the remaining deposit at the provider
func (s *Service) CheckBalance(ctx context.Context) (float64, error) {
	return s.provider.CheckBalance(ctx)
}

// InquiryPLN validates a PLN customer number before a purchase
func (s *Service) InquiryPLN(ctx context.Context, customerNo string) (*digiflazz.PLNInquiry, error) {
	return s.provider.InquiryPLN(ctx, customerNo)
}

// TopupParams is one prepaid purchase request
type TopupParams struct {
	AccountID    uuid.UUID
	PIN          string
	BuyerSKUCode string
	CustomerNo   string
	Amount       int64 // honored for e-money products only
}

// Topup runs the prepaid purchase orchestration. The ledger is debited
// before the provider sees the request; an explicit business failure at
// submit or at the confirmatory re-check credits the money back.
func (s *Service) Topup(ctx context.Context, userID uuid.UUID, params TopupParams) (*Transaction, error) {
	if err := s.ledger.VerifyPIN(ctx, userID, params.AccountID, params.PIN); err != nil {
		return nil, err
	}

	product, err := s.repo.GetProduct(ctx, params.BuyerSKUCode)
	if err != nil {
		return nil, err
	}
	if !product.BuyerProductStatus || !product.SellerProductStatus {
		return nil, ErrProductInactive
	}

	deposit, err := s.provider.CheckBalance(ctx)
	if err != nil {
		return nil, err
	}
	if deposit < product.Price {
		return nil, ErrInsufficientDeposit
	}

	refID := uuid.NewString()
	amount := int64(0)
	if product.IsEMoney() {
		amount = params.Amount
	}

	tx := &Transaction{
		TxID:          uuid.New(),
		RefID:         refID,
		UserID:        userID,
		AccountID:     params.AccountID,
		BuyerSKUCode:  params.BuyerSKUCode,
		CustomerNo:    params.CustomerNo,
		ProductType:   ProductTypePrepaid,
		AmountNominal: float64(amount),
		Price:         product.Price,
		Status:        StatusDebited,
	}

	if _, err := s.ledger.Debit(ctx, userID, params.AccountID, product.Price,
		fmt.Sprintf("TOPUP %s %s", params.BuyerSKUCode, refID)); err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(ctx, tx); err != nil {
		// The debit is already posted; keep going so the submit is not lost,
		// the status operations reconcile the row later.
		log.Error().Err(err).Str("ref_id", refID).Msg("failed to persist debited transaction")
	}

	result, err := s.provider.Transaction(ctx, digiflazz.TransactionParams{
		BuyerSKUCode: params.BuyerSKUCode,
		CustomerNo:   params.CustomerNo,
		RefID:        refID,
		Amount:       amount,
	})
	s.absorb(ctx, tx, result, StatusSubmitted)

	if err != nil {
		// An HTTP-level failure classifies as failure: the debit must be
		// compensated before the error propagates.
		s.compensate(ctx, tx)
		return tx, err
	}

	if s.policy.IsFailure(result.Data.Status) {
		s.compensate(ctx, tx)
		return tx, fmt.Errorf("%w: %s", ErrTransactionFailed, result.Data.Message)
	}

	// One confirmatory re-check: the provider often settles within seconds,
	// and a terminal verdict here spares the caller a manual status query.
	s.confirmPrepaid(ctx, tx)
	return tx, nil
}

// confirmPrepaid re-submits the same ref_id after a short delay. Digiflazz
// treats a duplicate ref_id as a status check, so this never double-charges.
func (s *Service) confirmPrepaid(ctx context.Context, tx *Transaction) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(s.confirmDelay):
	}

	result, err := s.provider.Transaction(ctx, digiflazz.TransactionParams{
		BuyerSKUCode: tx.BuyerSKUCode,
		CustomerNo:   tx.CustomerNo,
		RefID:        tx.RefID,
		Amount:       int64(tx.AmountNominal),
	})
	if err != nil {
		log.Warn().Err(err).Str("ref_id", tx.RefID).Msg("confirmatory status check unavailable")
		return
	}

	s.absorb(ctx, tx, result, s.settle(result.Data.Status, tx.Status))
	if s.policy.IsFailure(result.Data.Status) {
		s.compensate(ctx, tx)
	}
}

// InquiryPascaParams is one postpaid bill inquiry request
type InquiryPascaParams struct {
	AccountID    uuid.UUID
	BuyerSKUCode string
	CustomerNo   string
}

// InquiryPasca asks the provider for the outstanding bill. No money moves;
// the returned price is what PayPasca will charge.
func (s *Service) InquiryPasca(ctx context.Context, userID uuid.UUID, params InquiryPascaParams) (*Transaction, error) {
	refID := uuid.NewString()

	result, err := s.provider.Transaction(ctx, digiflazz.TransactionParams{
		Commands:     digiflazz.CommandInqPasca,
		BuyerSKUCode: params.BuyerSKUCode,
		CustomerNo:   params.CustomerNo,
		RefID:        refID,
	})
	if err != nil {
		return nil, err
	}
	if s.policy.IsFailure(result.Data.Status) {
		return nil, fmt.Errorf("%w: %s", ErrTransactionFailed, result.Data.Message)
	}

	price := result.Data.SellingPrice
	if price == 0 {
		price = result.Data.Price
	}

	tx := &Transaction{
		TxID:         uuid.New(),
		RefID:        refID,
		UserID:       userID,
		AccountID:    params.AccountID,
		BuyerSKUCode: params.BuyerSKUCode,
		CustomerNo:   params.CustomerNo,
		ProductType:  ProductTypePostpaid,
		Price:        float64(price),
		Status:       StatusInquiry,
		RC:           result.Data.RC,
		Message:      result.Data.Message,
		RawRequest:   result.RawRequest,
		RawResponse:  result.RawResponse,
	}
	if err := s.repo.Upsert(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// PayPasca settles a previously inquired bill. The charge is always the
// stored inquiry amount; the client never chooses what to pay.
func (s *Service) PayPasca(ctx context.Context, userID uuid.UUID, refID, pin string) (*Transaction, error) {
	tx, err := s.repo.GetByRefID(ctx, userID, refID)
	if err != nil {
		return nil, err
	}
	if tx.Status != StatusInquiry {
		return nil, ErrNotInquired
	}

	if err := s.ledger.VerifyPIN(ctx, userID, tx.AccountID, pin); err != nil {
		return nil, err
	}

	if _, err := s.ledger.Debit(ctx, userID, tx.AccountID, tx.Price,
		fmt.Sprintf("PAY %s %s", tx.BuyerSKUCode, tx.RefID)); err != nil {
		return nil, err
	}
	tx.Status = StatusDebited
	if err := s.repo.Upsert(ctx, tx); err != nil {
		log.Error().Err(err).Str("ref_id", tx.RefID).Msg("failed to persist debited transaction")
	}

	result, err := s.provider.Transaction(ctx, digiflazz.TransactionParams{
		Commands:     digiflazz.CommandPayPasca,
		BuyerSKUCode: tx.BuyerSKUCode,
		CustomerNo:   tx.CustomerNo,
		RefID:        tx.RefID,
	})
	s.absorb(ctx, tx, result, StatusSubmitted)

	if err != nil {
		// HTTP failure is classified as failure: compensate, then still ask
		// the provider for its authoritative state, since a postpaid payment
		// may have gone through despite the broken response.
		s.compensate(ctx, tx)
		s.confirmPasca(ctx, tx)
		return tx, err
	}
	if s.policy.IsFailure(result.Data.Status) {
		s.compensate(ctx, tx)
		return tx, fmt.Errorf("%w: %s", ErrTransactionFailed, result.Data.Message)
	}

	// Postpaid settlement is asynchronous provider-side, so the payment is
	// always followed by a status-pasca confirmation.
	s.confirmPasca(ctx, tx)
	return tx, nil
}

func (s *Service) confirmPasca(ctx context.Context, tx *Transaction) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(s.confirmDelay):
	}

	result, err := s.provider.Transaction(ctx, digiflazz.TransactionParams{
		Commands:     digiflazz.CommandStatusPasca,
		BuyerSKUCode: tx.BuyerSKUCode,
		CustomerNo:   tx.CustomerNo,
		RefID:        tx.RefID,
	})
	if err != nil {
		log.Warn().Err(err).Str("ref_id", tx.RefID).Msg("postpaid confirmation unavailable")
		return
	}

	s.absorb(ctx, tx, result, s.settle(result.Data.Status, tx.Status))
	if s.policy.IsFailure(result.Data.Status) {
		s.compensate(ctx, tx)
	}
}

// CekStatus re-queries the provider for a prepaid transaction and reconciles
// the stored row, reversing when a terminal failure is seen on debited money.
func (s *Service) CekStatus(ctx context.Context, userID uuid.UUID, refID string) (*Transaction, error) {
	return s.refresh(ctx, userID, refID, "")
}

// StatusPasca re-queries the provider for a postpaid transaction
func (s *Service) StatusPasca(ctx context.Context, userID uuid.UUID, refID string) (*Transaction, error) {
	return s.refresh(ctx, userID, refID, digiflazz.CommandStatusPasca)
}

func (s *Service) refresh(ctx context.Context, userID uuid.UUID, refID, command string) (*Transaction, error) {
	tx, err := s.repo.GetByRefID(ctx, userID, refID)
	if err != nil {
		return nil, err
	}

	result, err := s.provider.Transaction(ctx, digiflazz.TransactionParams{
		Commands:     command,
		BuyerSKUCode: tx.BuyerSKUCode,
		CustomerNo:   tx.CustomerNo,
		RefID:        tx.RefID,
		Amount:       int64(tx.AmountNominal),
	})
	if err != nil {
		return tx, err
	}

	// money is still out on any debited row that has not been refunded,
	// including a FAILED row whose compensating credit did not go through
	moneyOut := !tx.Reversed &&
		(tx.Status == StatusDebited || tx.Status == StatusSubmitted || tx.Status == StatusFailed)
	s.absorb(ctx, tx, result, s.settle(result.Data.Status, tx.Status))

	if s.policy.IsFailure(result.Data.Status) && moneyOut {
		s.compensate(ctx, tx)
	}
	return tx, nil
}

// absorb copies the provider verdict into the row and persists it. Every
// provider response is stored, including the ones the caller sees as errors.
func (s *Service) absorb(ctx context.Context, tx *Transaction, result *digiflazz.TransactionResult, status string) {
	if result == nil {
		return
	}
	tx.Status = status
	if result.Data.RC != "" {
		tx.RC = result.Data.RC
	}
	if result.Data.Message != "" {
		tx.Message = result.Data.Message
	}
	if result.Data.SN != "" {
		tx.SN = result.Data.SN
	}
	if result.Data.Price > 0 && tx.Price == 0 {
		tx.Price = float64(result.Data.Price)
	}
	if len(result.RawRequest) > 0 {
		tx.RawRequest = result.RawRequest
	}
	if len(result.RawResponse) > 0 {
		tx.RawResponse = result.RawResponse
	}
	if s.policy.IsFailure(result.Data.Status) {
		tx.Status = StatusFailed
	}
	if tx.Reversed {
		tx.Status = StatusReversed
	}
	if err := s.repo.Upsert(ctx, tx); err != nil {
		log.Error().Err(err).Str("ref_id", tx.RefID).Msg("failed to persist provider outcome")
	}
}

// settle maps a non-failure provider status to the row state: an explicit
// success verdict is terminal, anything else stays pending.
func (s *Service) settle(providerStatus, current string) string {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "sukses", "berhasil", "success":
		return StatusSuccess
	}
	if current == StatusDebited {
		return StatusSubmitted
	}
	return current
}

// compensate credits the debited amount back, at most once per transaction.
// The reversed flag is claimed before the credit so a concurrent or repeated
// reconciliation can never double-refund; a failed credit is an operator
// alert, not a caller error.
func (s *Service) compensate(ctx context.Context, tx *Transaction) {
	claimed, err := s.repo.MarkReversed(ctx, tx.RefID)
	if err != nil {
		log.Error().Err(err).Str("ref_id", tx.RefID).Msg("failed to claim reversal")
		return
	}
	if !claimed {
		return
	}

	tx.Reversed = true
	if _, err := s.ledger.Credit(ctx, tx.UserID, tx.AccountID, tx.Price,
		fmt.Sprintf("REVERSAL %s %s", tx.BuyerSKUCode, tx.RefID)); err != nil {
		log.Error().
			Err(err).
			Str("ref_id", tx.RefID).
			Str("user_id", tx.UserID.String()).
			Float64("amount", tx.Price).
			Msg("REVERSAL CREDIT FAILED, manual intervention required")
		// release the claim so a later status query can retry the refund
		tx.Reversed = false
		if clearErr := s.repo.ClearReversed(ctx, tx.RefID); clearErr != nil {
			log.Error().Err(clearErr).Str("ref_id", tx.RefID).Msg("failed to release reversal claim")
		}
		return
	}

	tx.Status = StatusReversed
	if err := s.repo.Upsert(ctx, tx); err != nil {
		log.Error().Err(err).Str("ref_id", tx.RefID).Msg("failed to persist reversal")
	}
	log.Info().
		Str("ref_id", tx.RefID).
		Float64("amount", tx.Price).
		Msg("transaction reversed")
}

var _ Ledger = (*ledger.Service)(nil)
