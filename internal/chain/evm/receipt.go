package evm

import (
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/labomba/deposit-settlement/internal/model"
)

type Receipt struct {
	network     model.Network
	hash        string
	Status      uint64
	BlockNumber uint64
	Logs        []*types.Log
}

func (r *Receipt) Network() model.Network { return r.network }
func (r *Receipt) TxHash() string         { return r.hash }

func (r *Receipt) Confirmed() bool {
	return r.Status == types.ReceiptStatusSuccessful
}
