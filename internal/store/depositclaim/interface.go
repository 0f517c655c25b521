package depositclaim

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/labomba/deposit-settlement/internal/model"
)

type IStore interface {
	Create(tx *gorm.DB, claim *model.DepositClaim) (*model.DepositClaim, error)
	GetByID(tx *gorm.DB, id string) (*model.DepositClaim, error)
	List(tx *gorm.DB, filter model.DepositClaimFilter) ([]*model.DepositClaim, int64, error)

	// ListCreditedByTxHash returns credited claims that reference the same
	// on-chain transaction, excluding the claim with excludeID.
	ListCreditedByTxHash(tx *gorm.DB, network model.Network, txHash, excludeID string) ([]*model.DepositClaim, error)

	// Transition moves a claim from one state to another only if it is still
	// in the expected state. Losers get errs.ErrStaleState and the current row.
	Transition(tx *gorm.DB, id string, from, to model.DepositState, resolvedBy string) (*model.DepositClaim, error)

	MarkLedgerApplied(tx *gorm.DB, id, ledgerReference string) error
	ListUnappliedCredits(tx *gorm.DB, olderThan time.Time) ([]*model.DepositClaim, error)
	SumByState(tx *gorm.DB, state model.DepositState) (decimal.Decimal, error)
	CountByState(tx *gorm.DB, state model.DepositState) (int64, error)
}
