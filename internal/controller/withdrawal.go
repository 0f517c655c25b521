package controller

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/labomba/deposit-settlement/internal/ledger"
	"github.com/labomba/deposit-settlement/internal/model"
	"github.com/labomba/deposit-settlement/internal/notifier"
	"github.com/labomba/deposit-settlement/internal/store/errs"
	"github.com/labomba/deposit-settlement/internal/store/withdrawalrequest"
	"github.com/labomba/deposit-settlement/internal/utils/adminlink"
)

const refundKeyPrefix = "refund:"

func (c *Controller) RequestWithdrawal(ctx context.Context, userID string, amount decimal.Decimal, network model.Network, destination string) (*model.WithdrawalRequest, error) {
	destination = strings.TrimSpace(destination)
	if userID == "" {
		return nil, errors.Wrap(ErrInvalidFormat, "user id is required")
	}
	adapter, err := c.registry.Get(network)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidFormat, "network %q is not supported", network)
	}
	if err := adapter.ValidateAddress(destination); err != nil {
		return nil, errors.Wrapf(ErrInvalidFormat, "%s destination address is malformed", network)
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	limits := c.config.Withdrawal
	if amount.LessThan(limits.MinAmount) {
		return nil, errors.Wrapf(ErrBelowMinimum, "minimum is %s", limits.MinAmount)
	}
	if amount.GreaterThan(limits.MaxAmount) {
		return nil, errors.Wrapf(ErrAboveMaximum, "maximum is %s", limits.MaxAmount)
	}

	db := c.db.WithContext(ctx)
	pending, err := c.store.WithdrawalRequest.HasPending(db, userID)
	if err != nil {
		return nil, errors.Wrap(err, "check pending withdrawal")
	}
	if pending {
		return nil, ErrPendingRequestExists
	}

	balance, err := c.ledger.Balance(ctx, userID)
	if err != nil {
		c.metrics.RecordLedgerFailure("balance")
		return nil, errors.Wrap(ErrLedgerFailed, err.Error())
	}
	if balance.LessThan(amount) {
		return nil, errors.Wrapf(ErrInsufficientBalance, "balance is %s", balance)
	}

	req, err := c.store.WithdrawalRequest.Create(db, &model.WithdrawalRequest{
		UserID:             userID,
		Network:            network,
		Amount:             amount,
		Fee:                limits.Fee,
		PayoutAmount:       amount.Sub(limits.Fee),
		DestinationAddress: adapter.NormalizeAddress(destination),
	})
	if err != nil {
		if errors.Is(err, errs.ErrPendingRequestExists) {
			return nil, ErrPendingRequestExists
		}
		return nil, errors.Wrap(err, "create withdrawal request")
	}

	settleCtx, cancel := c.settleContext(ctx)
	defer cancel()
	settleDB := c.db.WithContext(settleCtx)

	if _, err := c.ledger.Debit(settleCtx, debitEntry(req)); err != nil {
		if !refusedDebit(err) {
			// The debit may have been applied; keep the request so a later
			// decision settles it under the same idempotency key.
			c.metrics.RecordLedgerFailure("debit")
			c.logger.Error("[RequestWithdrawal][Debit] debit outcome unknown, request kept pending", map[string]string{
				"request_id": req.ID,
				"user_id":    userID,
				"amount":     amount.String(),
				"error":      err.Error(),
			})
			return nil, errors.Wrap(ErrLedgerFailed, err.Error())
		}
		if delErr := c.store.WithdrawalRequest.DeletePending(settleDB, req.ID); delErr != nil {
			c.logger.Error("[RequestWithdrawal][DeletePending] orphaned pending request", map[string]string{
				"request_id": req.ID,
				"error":      delErr.Error(),
			})
		}
		if errors.Is(err, ledger.ErrInsufficientBalance) {
			return nil, ErrInsufficientBalance
		}
		return nil, errors.Wrap(ErrLedgerFailed, err.Error())
	}

	if err := c.store.WithdrawalRequest.MarkDebited(settleDB, req.ID); err != nil {
		c.logger.Error("[RequestWithdrawal][MarkDebited]", map[string]string{
			"request_id": req.ID,
			"error":      err.Error(),
		})
	} else if debited, err := c.store.WithdrawalRequest.GetByID(settleDB, req.ID); err == nil {
		req = debited
	}

	c.logger.Info("[RequestWithdrawal] request created", map[string]string{
		"request_id": req.ID,
		"user_id":    userID,
		"network":    network.String(),
		"amount":     amount.String(),
	})
	payout := req.PayoutAmount
	event := notifier.Event{
		Kind:         notifier.EventWithdrawalRequested,
		EntityID:     req.ID,
		UserID:       userID,
		Network:      network,
		Amount:       amount,
		PayoutAmount: &payout,
		Destination:  req.DestinationAddress,
	}
	event.ApproveURL, event.RejectURL = c.adminLinks("withdrawals", req.ID,
		adminLink{adminlink.ActionProcessWithdrawal, "process"},
		adminLink{adminlink.ActionRejectWithdrawal, "reject"})
	c.notify(event)
	return req, nil
}

func debitEntry(req *model.WithdrawalRequest) ledger.Entry {
	return ledger.Entry{
		IdempotencyKey: req.ID,
		UserID:         req.UserID,
		Amount:         req.Amount,
		Network:        req.Network,
		Memo:           "withdrawal " + req.ID,
	}
}

// refusedDebit reports a debit the ledger definitely did not apply.
func refusedDebit(err error) bool {
	return errors.Is(err, ledger.ErrInsufficientBalance) || errors.Is(err, ledger.ErrUserNotFound)
}

// confirmDebit replays the debit of a request whose outcome was never
// recorded. The ledger applies the key at most once.
func (c *Controller) confirmDebit(ctx context.Context, req *model.WithdrawalRequest) error {
	settleCtx, cancel := c.settleContext(ctx)
	defer cancel()

	if _, err := c.ledger.Debit(settleCtx, debitEntry(req)); err != nil {
		if errors.Is(err, ledger.ErrInsufficientBalance) {
			return errors.Wrap(ErrInsufficientBalance, "withdrawal was never debited")
		}
		c.metrics.RecordLedgerFailure("debit")
		return errors.Wrap(ErrLedgerFailed, err.Error())
	}
	if err := c.store.WithdrawalRequest.MarkDebited(c.db.WithContext(settleCtx), req.ID); err != nil {
		c.logger.Error("[confirmDebit][MarkDebited]", map[string]string{
			"request_id": req.ID,
			"error":      err.Error(),
		})
	}
	c.logger.Info("[confirmDebit] debit confirmed", map[string]string{
		"request_id": req.ID,
		"user_id":    req.UserID,
	})
	return nil
}

func (c *Controller) MarkWithdrawalProcessed(ctx context.Context, requestID, payoutTxHash, adminID string) (*model.WithdrawalRequest, error) {
	req, err := c.GetWithdrawal(ctx, requestID)
	if err != nil {
		return nil, err
	}

	payoutTxHash = strings.TrimSpace(payoutTxHash)
	if payoutTxHash != "" {
		adapter, err := c.registry.Get(req.Network)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidFormat, "network %q is not supported", req.Network)
		}
		if err := adapter.ValidateTxHash(payoutTxHash); err != nil {
			return nil, errors.Wrapf(ErrInvalidFormat, "%s payout hash is malformed", req.Network)
		}
	}

	if req.State == model.WithdrawalStatePending && req.LedgerDebitedAt == nil {
		if err := c.confirmDebit(ctx, req); err != nil {
			return nil, err
		}
	}

	processed, err := c.store.WithdrawalRequest.Transition(c.db.WithContext(ctx), requestID,
		model.WithdrawalStatePending, model.WithdrawalStateProcessed,
		withdrawalrequest.TransitionFields{ResolvedBy: adminID, PayoutTxHash: payoutTxHash})
	if err != nil {
		return processed, c.transitionError(entityWithdrawal, string(model.WithdrawalStateProcessed), withdrawalState(processed), err)
	}
	c.metrics.RecordTransition(entityWithdrawal, string(model.WithdrawalStateProcessed), "ok")

	c.logger.Info("[MarkWithdrawalProcessed] request processed", map[string]string{
		"request_id": requestID,
		"admin_id":   adminID,
		"payout_tx":  payoutTxHash,
	})
	payout := processed.PayoutAmount
	c.notify(notifier.Event{
		Kind:         notifier.EventWithdrawalProcessed,
		EntityID:     processed.ID,
		UserID:       processed.UserID,
		Network:      processed.Network,
		Amount:       processed.Amount,
		PayoutAmount: &payout,
		TxHash:       payoutTxHash,
		Destination:  processed.DestinationAddress,
		ExplorerURL:  c.explorerURL(processed.Network, payoutTxHash),
		ActorID:      adminID,
	})
	return processed, nil
}

func (c *Controller) RejectWithdrawal(ctx context.Context, requestID, adminID string) (*model.WithdrawalRequest, error) {
	if _, err := c.GetWithdrawal(ctx, requestID); err != nil {
		return nil, err
	}

	settleCtx, cancel := c.settleContext(ctx)
	defer cancel()

	rejected, err := c.store.WithdrawalRequest.Transition(c.db.WithContext(settleCtx), requestID,
		model.WithdrawalStatePending, model.WithdrawalStateRejected,
		withdrawalrequest.TransitionFields{ResolvedBy: adminID})
	if err != nil {
		return rejected, c.transitionError(entityWithdrawal, string(model.WithdrawalStateRejected), withdrawalState(rejected), err)
	}
	c.metrics.RecordTransition(entityWithdrawal, string(model.WithdrawalStateRejected), "ok")

	if err := c.refund(settleCtx, rejected); err != nil {
		c.metrics.RecordLedgerFailure("refund")
		c.logger.Error("[RejectWithdrawal][Refund] request rejected without refund", map[string]string{
			"request_id": rejected.ID,
			"user_id":    rejected.UserID,
			"amount":     rejected.Amount.String(),
			"error":      err.Error(),
		})
		return rejected, errors.Wrap(ErrLedgerFailed, err.Error())
	}
	if settled, err := c.store.WithdrawalRequest.GetByID(c.db.WithContext(settleCtx), rejected.ID); err == nil {
		rejected = settled
	}

	c.logger.Info("[RejectWithdrawal] request rejected", map[string]string{
		"request_id": requestID,
		"admin_id":   adminID,
	})
	c.notify(notifier.Event{
		Kind:        notifier.EventWithdrawalRejected,
		EntityID:    rejected.ID,
		UserID:      rejected.UserID,
		Network:     rejected.Network,
		Amount:      rejected.Amount,
		Destination: rejected.DestinationAddress,
		ActorID:     adminID,
	})
	return rejected, nil
}

// refund gives back the debit of a rejected request. It is attempted even
// when the debit was never stamped; the ledger answers ErrDebitNotFound if
// there is nothing to give back.
func (c *Controller) refund(ctx context.Context, req *model.WithdrawalRequest) error {
	db := c.db.WithContext(ctx)
	_, err := c.ledger.Refund(ctx, ledger.Entry{
		IdempotencyKey: refundKeyPrefix + req.ID,
		Reverses:       req.ID,
		UserID:         req.UserID,
		Amount:         req.Amount,
		Network:        req.Network,
		Memo:           "withdrawal refund " + req.ID,
	})
	switch {
	case err == nil:
		if req.LedgerDebitedAt == nil {
			if err := c.store.WithdrawalRequest.MarkDebited(db, req.ID); err != nil {
				c.logger.Error("[refund][MarkDebited]", map[string]string{"request_id": req.ID, "error": err.Error()})
			}
		}
		if err := c.store.WithdrawalRequest.MarkRefunded(db, req.ID); err != nil {
			c.logger.Error("[refund][MarkRefunded]", map[string]string{"request_id": req.ID, "error": err.Error()})
		}
		return nil
	case errors.Is(err, ledger.ErrDebitNotFound) && req.LedgerDebitedAt == nil:
		c.logger.Info("[refund] request was never debited", map[string]string{"request_id": req.ID})
		if err := c.store.WithdrawalRequest.MarkDebitAbsent(db, req.ID); err != nil {
			c.logger.Error("[refund][MarkDebitAbsent]", map[string]string{"request_id": req.ID, "error": err.Error()})
		}
		return nil
	default:
		return err
	}
}

func (c *Controller) GetWithdrawal(ctx context.Context, requestID string) (*model.WithdrawalRequest, error) {
	req, err := c.store.WithdrawalRequest.GetByID(c.db.WithContext(ctx), requestID)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil, errors.Wrapf(ErrNotFound, "withdrawal request %s", requestID)
		}
		return nil, err
	}
	return req, nil
}

func (c *Controller) ListWithdrawals(ctx context.Context, filter model.WithdrawalFilter) ([]*model.WithdrawalRequest, int64, error) {
	return c.store.WithdrawalRequest.List(c.db.WithContext(ctx), filter)
}
