package ppob

import "errors"

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrProductInactive     = errors.New("product is not available")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInsufficientDeposit = errors.New("provider deposit too low")
	ErrTransactionFailed   = errors.New("transaction failed")
	ErrNotInquired         = errors.New("bill has not been inquired")
)
