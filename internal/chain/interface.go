package chain

import (
	"context"

	"github.com/labomba/deposit-settlement/internal/model"
)

// Receipt is the network-native settlement record of a transaction.
// Concrete values are *evm.Receipt or *solana.Receipt.
type Receipt interface {
	Network() model.Network
	TxHash() string
	Confirmed() bool
}

// IAdapter is the per-network strategy used by the verifier.
type IAdapter interface {
	Network() model.Network
	// AssetID is the USDC contract or mint transfers are filtered by.
	AssetID() string
	ValidateTxHash(txHash string) error
	ValidateAddress(address string) error
	// NormalizeAddress returns the comparable form of an address.
	NormalizeAddress(address string) string
	Fetch(ctx context.Context, txHash string) (Receipt, error)
	Extract(ctx context.Context, receipt Receipt, asset string) ([]Transfer, error)
	HealthCheck(ctx context.Context) error
}
