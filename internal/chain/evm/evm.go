package evm

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"

	"github.com/labomba/deposit-settlement/internal/chain"
	"github.com/labomba/deposit-settlement/internal/consts"
	"github.com/labomba/deposit-settlement/internal/model"
	"github.com/labomba/deposit-settlement/internal/utils/config"
	"github.com/labomba/deposit-settlement/internal/utils/logger"
)

var (
	txHashPattern  = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
	addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
)

// Adapter serves Base and Polygon; both expose the same receipt shape.
type Adapter struct {
	network model.Network
	assetID string
	client  ReceiptClient
	timeout time.Duration
	logger  *logger.Logger
}

func New(network model.Network, cfg config.ChainConfig, client ReceiptClient, timeout time.Duration, logger *logger.Logger) *Adapter {
	return &Adapter{
		network: network,
		assetID: cfg.AssetID,
		client:  client,
		timeout: timeout,
		logger:  logger,
	}
}

// Dial connects to the network's RPC endpoint.
func Dial(network model.Network, cfg config.ChainConfig, timeout time.Duration, logger *logger.Logger) (*Adapter, error) {
	client, err := ethclient.Dial(cfg.RPCEndpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s rpc", network)
	}
	return New(network, cfg, client, timeout, logger), nil
}

func (a *Adapter) Network() model.Network { return a.network }
func (a *Adapter) AssetID() string        { return a.assetID }

func (a *Adapter) ValidateTxHash(txHash string) error {
	if !txHashPattern.MatchString(txHash) {
		return errors.Wrapf(chain.ErrInvalidTxHash, "%s hash must be 0x followed by 64 hex characters", a.network)
	}
	return nil
}

func (a *Adapter) ValidateAddress(address string) error {
	if !addressPattern.MatchString(address) || !common.IsHexAddress(address) {
		return errors.Wrapf(chain.ErrInvalidAddress, "%s address must be 0x followed by 40 hex characters", a.network)
	}
	return nil
}

func (a *Adapter) NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

func (a *Adapter) Fetch(ctx context.Context, txHash string) (chain.Receipt, error) {
	if err := a.ValidateTxHash(txHash); err != nil {
		return nil, chain.NewFetchError(chain.FetchMalformedHash, a.network, err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	receipt, err := a.client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, chain.NewFetchError(chain.FetchNotFound, a.network, err)
		}
		a.logger.Error("[evm.Fetch][TransactionReceipt]", map[string]string{
			"network": a.network.String(),
			"txHash":  txHash,
			"error":   err.Error(),
		})
		return nil, chain.NewFetchError(chain.FetchRPCUnreachable, a.network, err)
	}
	if receipt == nil {
		return nil, chain.NewFetchError(chain.FetchNotFound, a.network, nil)
	}

	var blockNumber uint64
	if receipt.BlockNumber != nil {
		blockNumber = receipt.BlockNumber.Uint64()
	}

	return &Receipt{
		network:     a.network,
		hash:        txHash,
		Status:      receipt.Status,
		BlockNumber: blockNumber,
		Logs:        receipt.Logs,
	}, nil
}

// Extract returns the Transfer events emitted by the asset contract.
// Logs from other contracts or with other signatures are skipped.
func (a *Adapter) Extract(_ context.Context, r chain.Receipt, asset string) ([]chain.Transfer, error) {
	receipt, ok := r.(*Receipt)
	if !ok || receipt.network != a.network {
		return nil, chain.ErrReceiptMismatch
	}

	contract := common.HexToAddress(asset)
	transfers := []chain.Transfer{}
	for _, l := range receipt.Logs {
		if l == nil || l.Address != contract || !isTransferLog(l) {
			continue
		}

		decoded, err := decodeTransferLog(l)
		if err != nil {
			return nil, errors.Wrapf(err, "log %d", l.Index)
		}

		raw := model.NewWeb3BigInt(decoded.Value, consts.USDCDecimals)
		amount, _ := raw.ToDecimal()
		transfers = append(transfers, chain.Transfer{
			From:   a.NormalizeAddress(decoded.From.Hex()),
			To:     a.NormalizeAddress(decoded.To.Hex()),
			Asset:  asset,
			Amount: amount,
			Raw:    raw,
		})
	}

	return transfers, nil
}

func (a *Adapter) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if _, err := a.client.BlockNumber(ctx); err != nil {
		return errors.Wrapf(err, "%s block number", a.network)
	}
	return nil
}
