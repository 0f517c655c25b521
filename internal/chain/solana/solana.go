package solana

import (
	"context"
	"encoding/json"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil/base58"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"

	"github.com/labomba/deposit-settlement/internal/chain"
	"github.com/labomba/deposit-settlement/internal/model"
	"github.com/labomba/deposit-settlement/internal/utils/config"
	"github.com/labomba/deposit-settlement/internal/utils/logger"
)

const (
	methodGetTransaction = "getTransaction"
	methodGetAccountInfo = "getAccountInfo"
	methodGetHealth      = "getHealth"

	commitmentFinalized = "finalized"

	instructionTransfer        = "transfer"
	instructionTransferChecked = "transferChecked"
)

var (
	signaturePattern = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{80,92}$`)
	addressPattern   = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)
)

type Adapter struct {
	assetID string
	rpc     *rpcClient
	timeout time.Duration
	logger  *logger.Logger
}

func New(cfg config.ChainConfig, timeout time.Duration, logger *logger.Logger) *Adapter {
	return &Adapter{
		assetID: cfg.AssetID,
		rpc:     newRPCClient(cfg.RPCEndpoint, logger),
		timeout: timeout,
		logger:  logger,
	}
}

func (a *Adapter) Network() model.Network { return model.NetworkSolana }
func (a *Adapter) AssetID() string        { return a.assetID }

func (a *Adapter) ValidateTxHash(txHash string) error {
	if !signaturePattern.MatchString(txHash) || len(base58.Decode(txHash)) == 0 {
		return errors.Wrap(chain.ErrInvalidTxHash, "solana signature must be 80-92 base58 characters")
	}
	return nil
}

func (a *Adapter) ValidateAddress(address string) error {
	if !addressPattern.MatchString(address) {
		return errors.Wrap(chain.ErrInvalidAddress, "solana address must be 32-44 base58 characters")
	}
	if _, err := solanago.PublicKeyFromBase58(address); err != nil {
		return errors.Wrapf(chain.ErrInvalidAddress, "solana address: %v", err)
	}
	return nil
}

// NormalizeAddress only trims; base58 is case-sensitive.
func (a *Adapter) NormalizeAddress(address string) string {
	return strings.TrimSpace(address)
}

func (a *Adapter) Fetch(ctx context.Context, txHash string) (chain.Receipt, error) {
	if err := a.ValidateTxHash(txHash); err != nil {
		return nil, chain.NewFetchError(chain.FetchMalformedHash, model.NetworkSolana, err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var result *transactionResult
	err := a.rpc.call(ctx, methodGetTransaction, []interface{}{
		txHash,
		map[string]interface{}{
			"encoding":                       "jsonParsed",
			"commitment":                     commitmentFinalized,
			"maxSupportedTransactionVersion": 0,
		},
	}, &result)
	if err != nil {
		a.logger.Error("[solana.Fetch][getTransaction]", map[string]string{
			"txHash": txHash,
			"error":  err.Error(),
		})
		return nil, chain.NewFetchError(chain.FetchRPCUnreachable, model.NetworkSolana, err)
	}
	if result == nil {
		return nil, chain.NewFetchError(chain.FetchNotFound, model.NetworkSolana, nil)
	}

	return toReceipt(txHash, result), nil
}

func toReceipt(txHash string, tx *transactionResult) *Receipt {
	r := &Receipt{
		hash:              txHash,
		Slot:              tx.Slot,
		PostTokenAccounts: map[string]TokenAccount{},
	}

	keys := tx.Transaction.Message.AccountKeys
	inner := map[int][]instructionEnvelope{}
	if tx.Meta != nil {
		r.Failed = tx.Meta.failed()
		for _, set := range tx.Meta.InnerInstructions {
			inner[set.Index] = append(inner[set.Index], set.Instructions...)
		}
		for _, b := range tx.Meta.PostTokenBalances {
			if b.AccountIndex < 0 || b.AccountIndex >= len(keys) {
				continue
			}
			address := keys[b.AccountIndex].Pubkey
			r.PostTokenAccounts[address] = TokenAccount{
				Address:  address,
				Owner:    b.Owner,
				Mint:     b.Mint,
				Decimals: b.UITokenAmount.Decimals,
			}
		}
	}

	for i, ix := range tx.Transaction.Message.Instructions {
		r.Instructions = append(r.Instructions, decodeInstruction(ix, false))
		for _, innerIx := range inner[i] {
			r.Instructions = append(r.Instructions, decodeInstruction(innerIx, true))
		}
	}

	return r
}

// decodeInstruction keeps transfer fields when the parsed payload is an
// object. Other programs may report parsed as a plain string.
func decodeInstruction(env instructionEnvelope, inner bool) Instruction {
	ix := Instruction{ProgramID: env.ProgramID, Inner: inner}

	var parsed parsedInstruction
	if len(env.Parsed) == 0 || env.Parsed[0] != '{' {
		return ix
	}
	if err := json.Unmarshal(env.Parsed, &parsed); err != nil {
		return ix
	}

	ix.Type = parsed.Type
	ix.Source = parsed.Info.Source
	ix.Destination = parsed.Info.Destination
	ix.Authority = parsed.Info.Authority
	ix.Mint = parsed.Info.Mint
	ix.Amount = parsed.Info.Amount
	if parsed.Info.TokenAmount != nil {
		ix.Amount = parsed.Info.TokenAmount.Amount
		decimals := parsed.Info.TokenAmount.Decimals
		ix.Decimals = &decimals
	}

	return ix
}

// Extract returns SPL token transfers of asset, with To set to the owner
// wallet of the destination token account.
func (a *Adapter) Extract(ctx context.Context, r chain.Receipt, asset string) ([]chain.Transfer, error) {
	receipt, ok := r.(*Receipt)
	if !ok {
		return nil, chain.ErrReceiptMismatch
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	tokenProgram := solanago.TokenProgramID.String()
	resolved := map[string]*TokenAccount{}
	transfers := []chain.Transfer{}

	for _, ix := range receipt.Instructions {
		if ix.ProgramID != tokenProgram {
			continue
		}
		if ix.Type != instructionTransfer && ix.Type != instructionTransferChecked {
			continue
		}
		if ix.Mint != "" && ix.Mint != asset {
			continue
		}

		account, ok := resolved[ix.Destination]
		if !ok {
			var err error
			account, err = a.resolveTokenAccount(ctx, receipt, ix.Destination)
			if err != nil {
				return nil, err
			}
			resolved[ix.Destination] = account
		}
		if account == nil || account.Mint != asset {
			continue
		}

		raw, ok := new(big.Int).SetString(ix.Amount, 10)
		if !ok {
			return nil, errors.Errorf("invalid transfer amount %q", ix.Amount)
		}
		decimals := account.Decimals
		if ix.Decimals != nil {
			decimals = *ix.Decimals
		}

		w := model.NewWeb3BigInt(raw, decimals)
		amount, _ := w.ToDecimal()
		transfers = append(transfers, chain.Transfer{
			From:   ix.Authority,
			To:     account.Owner,
			Asset:  asset,
			Amount: amount,
			Raw:    w,
		})
	}

	return transfers, nil
}

// resolveTokenAccount looks the token account up on chain and falls back to
// the transaction's post balances for accounts closed since. A nil account
// means the destination could not be identified.
func (a *Adapter) resolveTokenAccount(ctx context.Context, receipt *Receipt, address string) (*TokenAccount, error) {
	var result accountInfoResult
	err := a.rpc.call(ctx, methodGetAccountInfo, []interface{}{
		address,
		map[string]interface{}{
			"encoding":   "jsonParsed",
			"commitment": commitmentFinalized,
		},
	}, &result)
	if err != nil {
		a.logger.Error("[solana.Extract][getAccountInfo]", map[string]string{
			"account": address,
			"error":   err.Error(),
		})
		return nil, chain.NewFetchError(chain.FetchRPCUnreachable, model.NetworkSolana, err)
	}

	if result.Value != nil {
		var data parsedAccountData
		if err := json.Unmarshal(result.Value.Data, &data); err == nil && data.Parsed.Info.Owner != "" {
			return &TokenAccount{
				Address:  address,
				Owner:    data.Parsed.Info.Owner,
				Mint:     data.Parsed.Info.Mint,
				Decimals: data.Parsed.Info.TokenAmount.Decimals,
			}, nil
		}
	}

	if post, ok := receipt.PostTokenAccounts[address]; ok {
		return &post, nil
	}

	a.logger.Info("[solana.Extract] unresolved token account", map[string]string{
		"account": address,
		"txHash":  receipt.hash,
	})
	return nil, nil
}

func (a *Adapter) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var status string
	if err := a.rpc.call(ctx, methodGetHealth, []interface{}{}, &status); err != nil {
		return errors.Wrap(err, "solana getHealth")
	}
	if status != "ok" {
		return errors.Errorf("solana node unhealthy: %s", status)
	}
	return nil
}
