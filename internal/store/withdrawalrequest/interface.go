package withdrawalrequest

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/labomba/deposit-settlement/internal/model"
)

// TransitionFields are written together with the state change.
type TransitionFields struct {
	ResolvedBy   string
	PayoutTxHash string
}

type IStore interface {
	// Create persists a pending request. A second pending request for the same
	// user fails with errs.ErrPendingRequestExists.
	Create(tx *gorm.DB, req *model.WithdrawalRequest) (*model.WithdrawalRequest, error)
	GetByID(tx *gorm.DB, id string) (*model.WithdrawalRequest, error)
	HasPending(tx *gorm.DB, userID string) (bool, error)
	List(tx *gorm.DB, filter model.WithdrawalFilter) ([]*model.WithdrawalRequest, int64, error)
	Transition(tx *gorm.DB, id string, from, to model.WithdrawalState, fields TransitionFields) (*model.WithdrawalRequest, error)

	// DeletePending removes a request the ledger refused to debit.
	DeletePending(tx *gorm.DB, id string) error
	MarkDebited(tx *gorm.DB, id string) error
	MarkRefunded(tx *gorm.DB, id string) error
	// MarkDebitAbsent records that a rejected request has nothing to refund.
	MarkDebitAbsent(tx *gorm.DB, id string) error
	// ListUnrefunded returns rejected requests that are neither refunded nor
	// confirmed undebited.
	ListUnrefunded(tx *gorm.DB, olderThan time.Time) ([]*model.WithdrawalRequest, error)
	// ListUnconfirmedDebits returns pending requests whose debit outcome was
	// never recorded.
	ListUnconfirmedDebits(tx *gorm.DB, olderThan time.Time) ([]*model.WithdrawalRequest, error)
	SumByState(tx *gorm.DB, state model.WithdrawalState) (amount decimal.Decimal, fees decimal.Decimal, err error)
	CountByState(tx *gorm.DB, state model.WithdrawalState) (int64, error)
}
