package verifier

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/labomba/deposit-settlement/internal/chain"
	"github.com/labomba/deposit-settlement/internal/model"
)

var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// stubReceiptClient serves canned receipts and counts lookups.
type stubReceiptClient struct {
	receipts map[common.Hash]*types.Receipt
	err      error
	calls    atomic.Int32
}

func (s *stubReceiptClient) TransactionReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	r, ok := s.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (s *stubReceiptClient) BlockNumber(context.Context) (uint64, error) {
	return 1, nil
}

func usdcLog(contract, to string, raw int64) *types.Log {
	return &types.Log{
		Address: common.HexToAddress(contract),
		Topics: []common.Hash{
			transferTopic,
			common.BytesToHash(common.HexToAddress("0x2222222222222222222222222222222222222222").Bytes()),
			common.BytesToHash(common.HexToAddress(to).Bytes()),
		},
		Data: common.LeftPadBytes(big.NewInt(raw).Bytes(), 32),
	}
}

func successReceipt(logs ...*types.Log) *types.Receipt {
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(1000),
		Logs:        logs,
	}
}

// scriptedAdapter returns fixed transfers; used for extractor failure modes.
type scriptedAdapter struct {
	transfers  []chain.Transfer
	extractErr error
	panicMsg   string
	confirmed  bool
}

type scriptedReceipt struct{ confirmed bool }

func (r scriptedReceipt) Network() model.Network { return model.NetworkPolygon }
func (r scriptedReceipt) TxHash() string         { return "" }
func (r scriptedReceipt) Confirmed() bool        { return r.confirmed }

func (a *scriptedAdapter) Network() model.Network { return model.NetworkPolygon }
func (a *scriptedAdapter) AssetID() string        { return "usdc" }

func (a *scriptedAdapter) ValidateTxHash(txHash string) error {
	if !strings.HasPrefix(txHash, "0x") {
		return chain.ErrInvalidTxHash
	}
	return nil
}

func (a *scriptedAdapter) ValidateAddress(string) error { return nil }

func (a *scriptedAdapter) NormalizeAddress(address string) string {
	return strings.ToLower(address)
}

func (a *scriptedAdapter) Fetch(context.Context, string) (chain.Receipt, error) {
	return scriptedReceipt{confirmed: a.confirmed}, nil
}

func (a *scriptedAdapter) Extract(context.Context, chain.Receipt, string) ([]chain.Transfer, error) {
	if a.panicMsg != "" {
		panic(a.panicMsg)
	}
	return a.transfers, a.extractErr
}

func (a *scriptedAdapter) HealthCheck(context.Context) error { return nil }

type recordingRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recordingRecorder) RecordVerification(network, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, network+":"+outcome)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
