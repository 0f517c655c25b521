package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/labomba/deposit-settlement/internal/model"
)

var (
	ErrInsufficientBalance = errors.New("insufficient ledger balance")
	ErrUserNotFound        = errors.New("ledger user not found")
	ErrUnavailable         = errors.New("ledger unavailable")
	// ErrDebitNotFound is returned by Refund when the ledger holds no debit
	// under Entry.Reverses.
	ErrDebitNotFound = errors.New("ledger debit not found")
)

// Entry is a single balance mutation. The ledger applies an IdempotencyKey at
// most once, so callers may retry with the same key.
type Entry struct {
	IdempotencyKey string
	UserID         string
	Amount         decimal.Decimal
	Network        model.Network
	Memo           string
	// Reverses is the idempotency key of the debit a refund gives back.
	Reverses string
}

// ILedger is the external balance ledger. Credit, Debit and Refund return the
// ledger's reference for the applied entry.
type ILedger interface {
	Credit(ctx context.Context, entry Entry) (string, error)
	Debit(ctx context.Context, entry Entry) (string, error)
	Refund(ctx context.Context, entry Entry) (string, error)
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
	UserEmail(ctx context.Context, userID string) (string, error)
}
