package repository

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrConflict              = errors.New("conflict")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrCapacityBelowSold     = errors.New("capacity below sold quantity")
	ErrAlreadyReleased       = errors.New("inventory already released")
	ErrAlreadyCheckedIn      = errors.New("already checked in")
	ErrStatusTerminal        = errors.New("status already terminal")
)
