package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type DepositState string

const (
	DepositStatePending  DepositState = "pending"
	DepositStateCredited DepositState = "credited"
	DepositStateRejected DepositState = "rejected"
)

// CanTransitionTo only allows leaving pending; credited and rejected are terminal.
func (s DepositState) CanTransitionTo(to DepositState) bool {
	return s == DepositStatePending && (to == DepositStateCredited || to == DepositStateRejected)
}

func (s DepositState) Terminal() bool {
	return s == DepositStateCredited || s == DepositStateRejected
}

type DepositClaim struct {
	ID              string          `json:"id" gorm:"column:id;type:varchar(36);primaryKey"`
	UserID          string          `json:"user_id" gorm:"column:user_id;type:varchar(255);not null;index"`
	Network         Network         `json:"network" gorm:"column:network;type:varchar(20);not null;index:idx_deposit_claims_network_tx_hash"`
	ClaimedAmount   decimal.Decimal `json:"claimed_amount" gorm:"column:claimed_amount;type:numeric(20,6);not null"`
	TxHash          string          `json:"tx_hash" gorm:"column:tx_hash;type:varchar(128);not null;index:idx_deposit_claims_network_tx_hash"`
	State           DepositState    `json:"state" gorm:"column:state;type:varchar(20);not null;default:'pending';index"`
	ResolvedBy      string          `json:"resolved_by,omitempty" gorm:"column:resolved_by;type:varchar(255)"`
	ResolvedAt      *time.Time      `json:"resolved_at,omitempty" gorm:"column:resolved_at"`
	LedgerReference string          `json:"ledger_reference,omitempty" gorm:"column:ledger_reference;type:varchar(255)"`
	LedgerAppliedAt *time.Time      `json:"ledger_applied_at,omitempty" gorm:"column:ledger_applied_at"`
	CreatedAt       time.Time       `json:"created_at" gorm:"column:created_at"`
	UpdatedAt       time.Time       `json:"updated_at" gorm:"column:updated_at"`
}

func (DepositClaim) TableName() string {
	return "deposit_claims"
}

func (c *DepositClaim) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.State == "" {
		c.State = DepositStatePending
	}
	return nil
}

// LedgerGap reports a claim marked credited whose ledger credit was never recorded.
func (c *DepositClaim) LedgerGap() bool {
	return c.State == DepositStateCredited && c.LedgerAppliedAt == nil
}

type DepositClaimFilter struct {
	UserID  string
	Network Network
	State   DepositState
	TxHash  string
	Limit   int
	Offset  int
}
