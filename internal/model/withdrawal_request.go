package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type WithdrawalState string

const (
	WithdrawalStatePending   WithdrawalState = "pending"
	WithdrawalStateProcessed WithdrawalState = "processed"
	WithdrawalStateRejected  WithdrawalState = "rejected"
)

func (s WithdrawalState) CanTransitionTo(to WithdrawalState) bool {
	return s == WithdrawalStatePending && (to == WithdrawalStateProcessed || to == WithdrawalStateRejected)
}

type WithdrawalRequest struct {
	ID                 string          `json:"id" gorm:"column:id;type:varchar(36);primaryKey"`
	UserID             string          `json:"user_id" gorm:"column:user_id;type:varchar(255);not null;index"`
	Network            Network         `json:"network" gorm:"column:network;type:varchar(20);not null"`
	Amount             decimal.Decimal `json:"amount" gorm:"column:amount;type:numeric(20,6);not null"`
	Fee                decimal.Decimal `json:"fee" gorm:"column:fee;type:numeric(20,6);not null"`
	PayoutAmount       decimal.Decimal `json:"payout_amount" gorm:"column:payout_amount;type:numeric(20,6);not null"`
	DestinationAddress string          `json:"destination_address" gorm:"column:destination_address;type:varchar(128);not null"`
	State              WithdrawalState `json:"state" gorm:"column:state;type:varchar(20);not null;default:'pending';index"`
	// PendingUserID holds UserID while pending and NULL afterwards; its unique
	// index allows a single pending request per user.
	PendingUserID   *string    `json:"-" gorm:"column:pending_user_id;type:varchar(255);uniqueIndex"`
	PayoutTxHash    string     `json:"payout_tx_hash,omitempty" gorm:"column:payout_tx_hash;type:varchar(128)"`
	ResolvedBy      string     `json:"resolved_by,omitempty" gorm:"column:resolved_by;type:varchar(255)"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty" gorm:"column:resolved_at"`
	LedgerDebitedAt *time.Time `json:"ledger_debited_at,omitempty" gorm:"column:ledger_debited_at"`
	RefundedAt      *time.Time `json:"refunded_at,omitempty" gorm:"column:refunded_at"`
	DebitAbsentAt   *time.Time `json:"debit_absent_at,omitempty" gorm:"column:debit_absent_at"`
	CreatedAt       time.Time  `json:"created_at" gorm:"column:created_at"`
	UpdatedAt       time.Time  `json:"updated_at" gorm:"column:updated_at"`
}

func (WithdrawalRequest) TableName() string {
	return "withdrawal_requests"
}

func (w *WithdrawalRequest) BeforeCreate(_ *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.State == "" {
		w.State = WithdrawalStatePending
	}
	if w.State == WithdrawalStatePending && w.PendingUserID == nil {
		userID := w.UserID
		w.PendingUserID = &userID
	}
	return nil
}

// RefundGap reports a rejected request with neither a recorded refund nor a
// ledger confirmation that the debit never happened.
func (w *WithdrawalRequest) RefundGap() bool {
	return w.State == WithdrawalStateRejected && w.RefundedAt == nil && w.DebitAbsentAt == nil
}

type WithdrawalFilter struct {
	UserID string
	State  WithdrawalState
	Limit  int
	Offset int
}
