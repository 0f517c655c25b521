package solana

import (
	"github.com/labomba/deposit-settlement/internal/model"
)

// TokenAccount is the resolved identity behind an SPL token account.
type TokenAccount struct {
	Address  string
	Owner    string
	Mint     string
	Decimals int
}

// Instruction is a decoded instruction; top-level and inner instructions are
// flattened in execution order.
type Instruction struct {
	ProgramID   string
	Type        string
	Inner       bool
	Source      string
	Destination string
	Authority   string
	Mint        string
	Amount      string
	Decimals    *int
}

type Receipt struct {
	hash         string
	Slot         uint64
	Failed       bool
	Instructions []Instruction
	// PostTokenAccounts maps token accounts to their post-transaction owner and mint.
	PostTokenAccounts map[string]TokenAccount
}

func (r *Receipt) Network() model.Network { return model.NetworkSolana }
func (r *Receipt) TxHash() string         { return r.hash }
func (r *Receipt) Confirmed() bool        { return !r.Failed }
