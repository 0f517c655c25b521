package store

import (
	"gorm.io/gorm"

	"github.com/labomba/deposit-settlement/internal/store/depositclaim"
	"github.com/labomba/deposit-settlement/internal/store/withdrawalrequest"
)

type Store struct {
	DepositClaim      depositclaim.IStore
	WithdrawalRequest withdrawalrequest.IStore
}

func New(db *gorm.DB) *Store {
	return &Store{
		DepositClaim:      depositclaim.New(),
		WithdrawalRequest: withdrawalrequest.New(),
	}
}
