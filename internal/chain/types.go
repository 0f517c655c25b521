package chain

import (
	"github.com/shopspring/decimal"

	"github.com/labomba/deposit-settlement/internal/model"
)

// Transfer is a single movement of the filtered asset, amount in human units.
type Transfer struct {
	From   string            `json:"from"`
	To     string            `json:"to"`
	Asset  string            `json:"asset"`
	Amount decimal.Decimal   `json:"amount"`
	Raw    *model.Web3BigInt `json:"raw"`
}
