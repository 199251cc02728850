package orders

import "errors"

var (
	ErrEventNotFound         = errors.New("event not found")
	ErrTicketTypeNotFound    = errors.New("ticket type not found for event")
	ErrEmptyOrder            = errors.New("order has no lines")
	ErrInvalidQuantity       = errors.New("quantity must be positive")
	ErrInsufficientInventory = errors.New("insufficient ticket availability")
	ErrOrderNotFound         = errors.New("order not found")
	ErrOrderTerminal         = errors.New("order already in terminal state")
	ErrForbidden             = errors.New("forbidden")
	ErrRateLimited           = errors.New("rate limited")
)
