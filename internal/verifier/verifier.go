package verifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/labomba/deposit-settlement/internal/chain"
	"github.com/labomba/deposit-settlement/internal/model"
	"github.com/labomba/deposit-settlement/internal/utils/logger"
)

const (
	outcomeCredit           = "custody_match"
	outcomeWrongDestination = "wrong_destination"
	outcomeNoTransfer       = "no_asset_transfer"
	outcomeNotConfirmed     = "not_confirmed"
)

type verifier struct {
	registry *chain.Registry
	cache    *cache.Cache
	recorder Recorder
	logger   *logger.Logger
	now      func() time.Time
}

// New returns a verifier. Only final verdicts are cached; a cacheTTL of zero
// disables caching.
func New(registry *chain.Registry, cacheTTL time.Duration, recorder Recorder, logger *logger.Logger) IVerifier {
	v := &verifier{
		registry: registry,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
	if cacheTTL > 0 {
		v.cache = cache.New(cacheTTL, 2*cacheTTL)
	}
	return v
}

func (v *verifier) Verify(ctx context.Context, network model.Network, txHash, custodyAddress string) (verdict model.VerificationVerdict) {
	verdict = model.VerificationVerdict{
		Network:   network,
		TxHash:    txHash,
		CheckedAt: v.now(),
	}

	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("[Verify] recovered panic", map[string]string{
				"network": network.String(),
				"txHash":  txHash,
				"panic":   fmt.Sprintf("%v", r),
			})
			verdict = fail(verdict, model.VerdictErrorExtractionFailed, fmt.Sprintf("verification aborted: %v", r), false)
		}
		v.record(network, verdict)
	}()

	adapter, err := v.registry.Get(network)
	if err != nil {
		return fail(verdict, model.VerdictErrorUnsupportedNetwork, err.Error(), false)
	}

	txHash = strings.TrimSpace(txHash)
	verdict.TxHash = txHash
	if err := adapter.ValidateTxHash(txHash); err != nil {
		return fail(verdict, model.VerdictErrorMalformedHash, err.Error(), false)
	}

	custody := adapter.NormalizeAddress(custodyAddress)
	key := cacheKey(network, txHash, custody)
	if cached, ok := v.cached(key); ok {
		return cached
	}

	receipt, err := adapter.Fetch(ctx, txHash)
	if err != nil {
		return fromFetchError(verdict, err)
	}

	verdict.TransactionFound = true
	if !receipt.Confirmed() {
		verdict.ErrorReason = "transaction failed on chain"
		v.store(key, verdict)
		return verdict
	}
	verdict.Confirmed = true

	transfers, err := v.extract(ctx, adapter, receipt)
	if err != nil {
		if chain.FetchErrorKindOf(err) == chain.FetchRPCUnreachable && isFetchError(err) {
			return fail(verdict, model.VerdictErrorRPCUnreachable, err.Error(), true)
		}
		v.logger.Error("[Verify][Extract]", map[string]string{
			"network": network.String(),
			"txHash":  txHash,
			"error":   err.Error(),
		})
		return fail(verdict, model.VerdictErrorExtractionFailed, err.Error(), false)
	}

	verdict = applyTransfers(verdict, adapter, transfers, custody)
	v.store(key, verdict)
	return verdict
}

// extract isolates adapter panics so a malformed receipt cannot escape as a crash.
func (v *verifier) extract(ctx context.Context, adapter chain.IAdapter, receipt chain.Receipt) (transfers []chain.Transfer, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("extractor panic: %v", r)
		}
	}()
	return adapter.Extract(ctx, receipt, adapter.AssetID())
}

// applyTransfers partitions transfers by destination. The first transfer to
// custody wins; a wrong destination is reported only when none reached custody.
func applyTransfers(verdict model.VerificationVerdict, adapter chain.IAdapter, transfers []chain.Transfer, custody string) model.VerificationVerdict {
	if len(transfers) == 0 {
		verdict.NoAssetTransfer = true
		verdict.ErrorReason = "no USDC transfer detected to any address"
		return verdict
	}

	var wrong []chain.Transfer
	for _, t := range transfers {
		if adapter.NormalizeAddress(t.To) == custody {
			amount := t.Amount
			verdict.DestinationMatchesCustodyAddress = true
			verdict.DetectedAmount = &amount
			return verdict
		}
		wrong = append(wrong, t)
	}

	verdict.ObservedWrongDestination = wrong[0].To
	verdict.ErrorReason = fmt.Sprintf("USDC was sent to %s, not the custody address", wrong[0].To)
	return verdict
}

func fromFetchError(verdict model.VerificationVerdict, err error) model.VerificationVerdict {
	switch chain.FetchErrorKindOf(err) {
	case chain.FetchNotFound:
		return fail(verdict, model.VerdictErrorNotFound, "transaction not found or not yet finalized", true)
	case chain.FetchMalformedHash:
		return fail(verdict, model.VerdictErrorMalformedHash, err.Error(), false)
	default:
		return fail(verdict, model.VerdictErrorRPCUnreachable, err.Error(), true)
	}
}

func fail(verdict model.VerificationVerdict, code model.VerdictErrorCode, reason string, retryable bool) model.VerificationVerdict {
	verdict.ErrorCode = code
	verdict.ErrorReason = reason
	verdict.Retryable = retryable
	return verdict
}

func isFetchError(err error) bool {
	var fe *chain.FetchError
	return errors.As(err, &fe)
}

func cacheKey(network model.Network, txHash, custody string) string {
	return strings.Join([]string{network.String(), txHash, custody}, ":")
}

func (v *verifier) cached(key string) (model.VerificationVerdict, bool) {
	if v.cache == nil {
		return model.VerificationVerdict{}, false
	}
	item, ok := v.cache.Get(key)
	if !ok {
		return model.VerificationVerdict{}, false
	}
	verdict := item.(model.VerificationVerdict)
	if verdict.DetectedAmount != nil {
		amount := *verdict.DetectedAmount
		verdict.DetectedAmount = &amount
	}
	return verdict, true
}

func (v *verifier) store(key string, verdict model.VerificationVerdict) {
	if v.cache == nil || !verdict.TransactionFound || verdict.ErrorCode != "" {
		return
	}
	v.cache.Set(key, verdict, cache.DefaultExpiration)
}

func (v *verifier) record(network model.Network, verdict model.VerificationVerdict) {
	if v.recorder == nil {
		return
	}
	v.recorder.RecordVerification(network.String(), outcomeOf(verdict))
}

func outcomeOf(verdict model.VerificationVerdict) string {
	switch {
	case verdict.ErrorCode != "":
		return string(verdict.ErrorCode)
	case !verdict.Confirmed:
		return outcomeNotConfirmed
	case verdict.DestinationMatchesCustodyAddress:
		return outcomeCredit
	case verdict.NoAssetTransfer:
		return outcomeNoTransfer
	default:
		return outcomeWrongDestination
	}
}
