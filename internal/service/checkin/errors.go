package checkin

import "errors"

var (
	ErrEventNotFound = errors.New("event not found")
	ErrInvalidCode   = errors.New("invalid code")
	ErrForbidden     = errors.New("forbidden")
	// ErrAlreadyCheckedIn is the distinct "already used" outcome: the
	// first admission's metadata stays untouched.
	ErrAlreadyCheckedIn = errors.New("ticket already checked in")
)
