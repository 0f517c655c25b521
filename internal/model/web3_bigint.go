package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Web3BigInt is an on-chain integer amount in base units with its token decimals.
type Web3BigInt struct {
	Value   string `json:"value"`
	Decimal int    `json:"decimal"`
}

func NewWeb3BigInt(raw *big.Int, decimals int) *Web3BigInt {
	if raw == nil {
		raw = new(big.Int)
	}
	return &Web3BigInt{Value: raw.String(), Decimal: decimals}
}

func (w *Web3BigInt) BigInt() (*big.Int, bool) {
	return new(big.Int).SetString(w.Value, 10)
}

// ToDecimal converts base units to human units, e.g. 25000000 at 6 decimals is 25.
func (w *Web3BigInt) ToDecimal() (decimal.Decimal, bool) {
	num, ok := w.BigInt()
	if !ok {
		return decimal.Zero, false
	}
	return decimal.NewFromBigInt(num, int32(-w.Decimal)), true
}
