package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Account is one ledger account owned by a user
type Account struct {
	ID        uuid.UUID `db:"id" json:"id"`
	AccountNo string    `db:"account_no" json:"account_no"`
	Balance   float64   `db:"saldo" json:"balance"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Movement is the result of one atomic ledger posting (deposit or withdraw)
type Movement struct {
	JournalID    uuid.UUID `db:"journal_id" json:"journal_id"`
	AccountID    uuid.UUID `db:"account_id" json:"account_id"`
	BalanceAfter float64   `db:"balance_after" json:"balance_after"`
	TrxTime      time.Time `db:"trx_time" json:"trx_time"`
	Description  string    `db:"description" json:"description"`
}

// Journal is one row of an account's journal listing
type Journal struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TrxTime      time.Time `db:"trx_time" json:"trx_time"`
	Debit        float64   `db:"debit" json:"debit"`
	Credit       float64   `db:"credit" json:"credit"`
	Description  *string   `db:"description" json:"description,omitempty"`
	BalanceAfter float64   `db:"balance_after" json:"balance_after"`
	OwnerName    *string   `db:"nama_lengkap" json:"owner_name,omitempty"`
}

// PublicJournal is the receipt-style journal view exposed without auth
type PublicJournal struct {
	JournalID    uuid.UUID `db:"journal_id" json:"journal_id"`
	AccountNo    string    `db:"account_no" json:"account_no"`
	Debit        float64   `db:"debit" json:"debit"`
	Credit       float64   `db:"credit" json:"credit"`
	BalanceAfter float64   `db:"balance_after" json:"balance_after"`
	TrxTime      time.Time `db:"trx_time" json:"trx_time"`
	Description  string    `db:"description" json:"description"`
	OwnerName    string    `db:"nama_lengkap" json:"owner_name"`
}

// AccountIdentity is the public account verification result
type AccountIdentity struct {
	AccountNo string  `db:"account_no" json:"account_no"`
	OwnerName *string `db:"owner_name" json:"owner_name,omitempty"`
	Status    string  `db:"status" json:"status"`
	Email     *string `db:"email" json:"email,omitempty"`
}

// TransferResult reports both journal legs of a completed transfer
type TransferResult struct {
	JournalIDCredit uuid.UUID `db:"journal_id_credit" json:"journal_id_credit"`
	JournalIDDebit  uuid.UUID `db:"journal_id_debit" json:"journal_id_debit"`
	TokenFrom       *string   `db:"token_from" json:"token_from,omitempty"`
	TokenTo         *string   `db:"token_to" json:"token_to,omitempty"`
}
