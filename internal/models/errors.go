package models

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure returned by the service wraps exactly one of them.
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidState    = errors.New("invalid state")
	ErrConflict        = errors.New("conflict")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrInvalidInput    = errors.New("invalid input")
)

var (
	ErrNoTender       = fmt.Errorf("%w: requested tender does not exist", ErrNotFound)
	ErrNoBid          = fmt.Errorf("%w: requested bid does not exist", ErrNotFound)
	ErrNoUser         = fmt.Errorf("%w: requested user does not exist", ErrNotFound)
	ErrNoOrganization = fmt.Errorf("%w: requested organization does not exist", ErrNotFound)

	ErrRoleNotAllowed = fmt.Errorf("%w: role is not allowed to perform this operation", ErrForbidden)
	ErrNotOwner       = fmt.Errorf("%w: only the tender creator may perform this operation", ErrForbidden)
	ErrTenderHidden   = fmt.Errorf("%w: tender is not visible to this role", ErrForbidden)
	ErrBidClosed      = fmt.Errorf("%w: bid is no longer open for evaluation", ErrForbidden)

	ErrTenderNotDraft     = fmt.Errorf("%w: tender is not in draft", ErrInvalidState)
	ErrTenderNotPublished = fmt.Errorf("%w: tender is not accepting bids", ErrInvalidState)
	ErrTenderClosed       = fmt.Errorf("%w: tender is already closed", ErrInvalidState)
	ErrBidNotAwardable    = fmt.Errorf("%w: bid cannot be awarded", ErrInvalidState)

	ErrEmailTaken         = fmt.Errorf("%w: email is already registered", ErrConflict)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
)
