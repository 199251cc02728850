package payments

import "errors"

var (
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrUnknownReference = errors.New("unknown provider reference")
	// ErrAlreadyReconciled marks a replayed callback: the payment is
	// terminal and no side effect ran again.
	ErrAlreadyReconciled = errors.New("payment already reconciled")
	// ErrGatewayUnavailable is transient: nothing committed, the whole
	// checkout is safe to retry from scratch.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrInvalidPhone       = errors.New("invalid phone number, use 2547XXXXXXXX")
	ErrAmountChanged      = errors.New("order amount changed during checkout")
	ErrForbidden          = errors.New("forbidden")
)
