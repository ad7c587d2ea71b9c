package orders

import "errors"

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrInstrumentNotFound  = errors.New("payment instrument not found")
	ErrTransactionNotFound = errors.New("payment transaction not found")
	ErrNotFailable         = errors.New("order not in created status")
)
