package controller

import "errors"

var (
	ErrInvalidFormat        = errors.New("invalid format")
	ErrNotFound             = errors.New("not found")
	ErrAlreadyProcessed     = errors.New("already processed")
	ErrNotVerified          = errors.New("deposit is not verified on chain")
	ErrBelowMinimum         = errors.New("amount below minimum")
	ErrAboveMaximum         = errors.New("amount above maximum")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrPendingRequestExists = errors.New("a withdrawal request is already pending")
	ErrLedgerFailed         = errors.New("ledger operation failed")
)
