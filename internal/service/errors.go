package service

import (
	"errors"
	"fmt"
)

// Error classes. Every concrete error below wraps exactly one of them so
// callers can branch on either the class or the specific error.
var (
	ErrValidation      = errors.New("validation error")
	ErrAuth            = errors.New("authentication error")
	ErrPaymentProvider = errors.New("payment provider unavailable, try again")
	ErrIntegrity       = errors.New("integrity error")
)

var (
	ErrInvalidInput    = fmt.Errorf("%w: invalid input", ErrValidation)
	ErrProductNotFound = fmt.Errorf("%w: product not found", ErrValidation)
	ErrInvalidPrice    = fmt.Errorf("%w: product price is not a positive amount", ErrValidation)
	ErrOrderNotFound   = fmt.Errorf("%w: order not found", ErrValidation)
	ErrSessionExpired  = fmt.Errorf("%w: checkout session expired", ErrValidation)
	ErrAttemptClosed   = fmt.Errorf("%w: checkout attempt already closed", ErrValidation)
	ErrAmountMismatch  = fmt.Errorf("%w: paid amount does not match order", ErrValidation)
	// ErrCheckoutRejected means the provider refused the request itself;
	// retrying the same attempt will not help.
	ErrCheckoutRejected = fmt.Errorf("%w: payment provider rejected the checkout", ErrValidation)

	ErrUserNotFound    = fmt.Errorf("%w: user not found", ErrAuth)
	ErrInvalidPassword = fmt.Errorf("%w: invalid password", ErrAuth)
	ErrInvalidToken    = fmt.Errorf("%w: invalid token", ErrAuth)
	ErrBadSignature    = fmt.Errorf("%w: webhook signature rejected", ErrAuth)

	ErrEmailInUse     = fmt.Errorf("%w: email already registered", ErrIntegrity)
	ErrSellerNotFound = fmt.Errorf("%w: seller not found", ErrIntegrity)
)
