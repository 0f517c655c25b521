package controller

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/labomba/deposit-settlement/internal/consts"
	"github.com/labomba/deposit-settlement/internal/model"
	"github.com/labomba/deposit-settlement/internal/store/errs"
)

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.Wrap(ErrInvalidFormat, "amount must be greater than zero")
	}
	if !amount.Equal(amount.Truncate(consts.USDCDecimals)) {
		return errors.Wrapf(ErrInvalidFormat, "amount has more than %d decimals", consts.USDCDecimals)
	}
	return nil
}

// transitionError maps a failed conditional update to the coordinator's
// errors. A lost race is reported as ErrAlreadyProcessed, never swallowed.
func (c *Controller) transitionError(entity, to, currentState string, err error) error {
	switch {
	case errors.Is(err, errs.ErrStaleState), errors.Is(err, errs.ErrInvalidTransition):
		c.metrics.RecordTransition(entity, to, "stale")
		if currentState != "" {
			return errors.Wrapf(ErrAlreadyProcessed, "%s is %s", entity, currentState)
		}
		return ErrAlreadyProcessed
	case errs.IsNotFound(err):
		return errors.Wrap(ErrNotFound, entity)
	default:
		c.metrics.RecordTransition(entity, to, "error")
		return errors.Wrapf(err, "transition %s", entity)
	}
}

func verdictSummary(v model.VerificationVerdict) string {
	switch {
	case v.ErrorCode != "":
		return fmt.Sprintf("%s: %s", v.ErrorCode, v.ErrorReason)
	case !v.Confirmed:
		return "transaction failed on chain"
	case v.NoAssetTransfer:
		return "no USDC transfer in transaction"
	case !v.DestinationMatchesCustodyAddress:
		return fmt.Sprintf("USDC sent to %s, not custody", v.ObservedWrongDestination)
	}
	return "verified"
}

func claimState(claim *model.DepositClaim) string {
	if claim == nil {
		return ""
	}
	return string(claim.State)
}

func withdrawalState(req *model.WithdrawalRequest) string {
	if req == nil {
		return ""
	}
	return string(req.State)
}
