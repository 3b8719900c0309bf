package ledger

import "errors"

var (
	ErrPINFormat         = errors.New("pin must be 6 digits")
	ErrPINMismatch       = errors.New("invalid PIN")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountNotOwned   = errors.New("account not owned")
	ErrSameAccount       = errors.New("source and target accounts must differ")
)
