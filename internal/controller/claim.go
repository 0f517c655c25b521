package controller

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/labomba/deposit-settlement/internal/ledger"
	"github.com/labomba/deposit-settlement/internal/model"
	"github.com/labomba/deposit-settlement/internal/notifier"
	"github.com/labomba/deposit-settlement/internal/store/errs"
	"github.com/labomba/deposit-settlement/internal/utils/adminlink"
)

func (c *Controller) SubmitClaim(ctx context.Context, userID string, network model.Network, amount decimal.Decimal, txHash string) (*model.DepositClaim, error) {
	txHash = strings.TrimSpace(txHash)
	if err := c.validateClaimInput(userID, network, amount, txHash); err != nil {
		return nil, err
	}

	claim, err := c.store.DepositClaim.Create(c.db.WithContext(ctx), &model.DepositClaim{
		UserID:        userID,
		Network:       network,
		ClaimedAmount: amount,
		TxHash:        txHash,
	})
	if err != nil {
		c.logger.Error("[SubmitClaim][Create]", map[string]string{
			"user_id": userID,
			"tx_hash": txHash,
			"error":   err.Error(),
		})
		return nil, errors.Wrap(err, "create deposit claim")
	}

	c.logger.Info("[SubmitClaim] claim created", map[string]string{
		"claim_id": claim.ID,
		"user_id":  userID,
		"network":  network.String(),
		"amount":   amount.String(),
	})
	c.notify(notifier.Event{
		Kind:        notifier.EventClaimSubmitted,
		EntityID:    claim.ID,
		UserID:      userID,
		Network:     network,
		Amount:      amount,
		TxHash:      txHash,
		ExplorerURL: c.explorerURL(network, txHash),
	})
	return claim, nil
}

func (c *Controller) validateClaimInput(userID string, network model.Network, amount decimal.Decimal, txHash string) error {
	if userID == "" {
		return errors.Wrap(ErrInvalidFormat, "user id is required")
	}
	adapter, err := c.registry.Get(network)
	if err != nil {
		return errors.Wrapf(ErrInvalidFormat, "network %q is not supported", network)
	}
	if err := validateAmount(amount); err != nil {
		return err
	}
	if err := adapter.ValidateTxHash(txHash); err != nil {
		return errors.Wrapf(ErrInvalidFormat, "%s transaction hash is malformed", network)
	}
	return nil
}

func (c *Controller) VerifyClaim(ctx context.Context, claimID string) (*ClaimReview, error) {
	claim, err := c.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}

	verdict := c.verifier.Verify(ctx, claim.Network, claim.TxHash, c.custodyAddress(claim.Network))

	prior, err := c.store.DepositClaim.ListCreditedByTxHash(c.db.WithContext(ctx), claim.Network, claim.TxHash, claim.ID)
	if err != nil {
		return nil, errors.Wrap(err, "list prior credits")
	}

	review := &ClaimReview{
		Claim:        claim,
		Verdict:      verdict,
		PriorCredits: prior,
		ExplorerURL:  c.explorerURL(claim.Network, claim.TxHash),
	}
	if verdict.DetectedAmount != nil && !verdict.DetectedAmount.Equal(claim.ClaimedAmount) {
		review.AmountMismatch = true
	}
	return review, nil
}

func (c *Controller) VerifyAndNotify(ctx context.Context, claimID string) (*ClaimReview, error) {
	review, err := c.VerifyClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}

	event := notifier.Event{
		Kind:         notifier.EventClaimReview,
		EntityID:     review.Claim.ID,
		UserID:       review.Claim.UserID,
		Network:      review.Claim.Network,
		Amount:       review.Claim.ClaimedAmount,
		TxHash:       review.Claim.TxHash,
		ExplorerURL:  review.ExplorerURL,
		Verdict:      &review.Verdict,
		PriorCredits: len(review.PriorCredits),
	}
	if review.Claim.State == model.DepositStatePending {
		event.ApproveURL, event.RejectURL = c.adminLinks("claims", review.Claim.ID,
			adminLink{adminlink.ActionApproveClaim, "approve"},
			adminLink{adminlink.ActionRejectClaim, "reject"})
	}
	c.notify(event)
	return review, nil
}

// adminLinks signs one-click links for the two decisions on an entity. Both
// are empty when links are not configured. The links open a confirmation page;
// nothing changes until the administrator submits it.
func (c *Controller) adminLinks(resource, entityID string, approve, reject adminLink) (string, string) {
	base := strings.TrimRight(c.config.ApiServer.PublicURL, "/")
	secret := c.config.Auth.AdminLinkSecret
	if base == "" || secret == "" {
		return "", ""
	}

	link := func(l adminLink) string {
		token, err := adminlink.Sign(secret, l.action, entityID, adminLinkTTL, c.now())
		if err != nil {
			c.logger.Error("[adminLinks][Sign]", map[string]string{"error": err.Error()})
			return ""
		}
		return fmt.Sprintf("%s/api/v1/admin/links/%s/%s/%s?token=%s", base, resource, entityID, l.verb, token)
	}
	return link(approve), link(reject)
}

type adminLink struct {
	action adminlink.Action
	verb   string
}

func (c *Controller) ApproveClaim(ctx context.Context, claimID, adminID string, opts ApproveOptions) (*ApprovalResult, error) {
	claim, err := c.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if claim.State.Terminal() {
		c.metrics.RecordTransition(entityClaim, string(model.DepositStateCredited), "stale")
		return &ApprovalResult{Claim: claim}, errors.Wrapf(ErrAlreadyProcessed, "claim is %s", claim.State)
	}

	result := &ApprovalResult{}
	if !opts.Force {
		review, err := c.VerifyClaim(ctx, claimID)
		if err != nil {
			return nil, err
		}
		result.Verdict = &review.Verdict
		result.PriorCredits = review.PriorCredits
		if !review.Verdict.Creditable() {
			return result, errors.Wrap(ErrNotVerified, verdictSummary(review.Verdict))
		}
	}

	// From the state change on, the credit runs to completion without the caller.
	settleCtx, cancel := c.settleContext(ctx)
	defer cancel()
	settleDB := c.db.WithContext(settleCtx)

	credited, err := c.store.DepositClaim.Transition(settleDB, claimID, model.DepositStatePending, model.DepositStateCredited, adminID)
	if err != nil {
		result.Claim = credited
		return result, c.transitionError(entityClaim, string(model.DepositStateCredited), claimState(credited), err)
	}
	c.metrics.RecordTransition(entityClaim, string(model.DepositStateCredited), "ok")
	result.Claim = credited

	if result.PriorCredits == nil {
		prior, err := c.store.DepositClaim.ListCreditedByTxHash(settleDB, credited.Network, credited.TxHash, credited.ID)
		if err == nil {
			result.PriorCredits = prior
		}
	}

	reference, err := c.ledger.Credit(settleCtx, ledger.Entry{
		IdempotencyKey: credited.ID,
		UserID:         credited.UserID,
		Amount:         credited.ClaimedAmount,
		Network:        credited.Network,
		Memo:           "deposit " + credited.TxHash,
	})
	if err != nil {
		c.metrics.RecordLedgerFailure("credit")
		c.logger.Error("[ApproveClaim][Credit] claim credited without ledger credit", map[string]string{
			"claim_id": credited.ID,
			"user_id":  credited.UserID,
			"amount":   credited.ClaimedAmount.String(),
			"error":    err.Error(),
		})
		return result, errors.Wrap(ErrLedgerFailed, err.Error())
	}

	if err := c.store.DepositClaim.MarkLedgerApplied(settleDB, credited.ID, reference); err != nil {
		c.logger.Error("[ApproveClaim][MarkLedgerApplied]", map[string]string{
			"claim_id":  credited.ID,
			"reference": reference,
			"error":     err.Error(),
		})
	} else if applied, err := c.store.DepositClaim.GetByID(settleDB, credited.ID); err == nil {
		result.Claim = applied
	}

	c.logger.Info("[ApproveClaim] claim credited", map[string]string{
		"claim_id": credited.ID,
		"admin_id": adminID,
		"amount":   credited.ClaimedAmount.String(),
		"forced":   fmt.Sprintf("%t", opts.Force),
	})
	c.notify(notifier.Event{
		Kind:        notifier.EventClaimCredited,
		EntityID:    credited.ID,
		UserID:      credited.UserID,
		Network:     credited.Network,
		Amount:      credited.ClaimedAmount,
		TxHash:      credited.TxHash,
		ExplorerURL: c.explorerURL(credited.Network, credited.TxHash),
		ActorID:     adminID,
	})
	return result, nil
}

func (c *Controller) RejectClaim(ctx context.Context, claimID, adminID string) (*model.DepositClaim, error) {
	if _, err := c.GetClaim(ctx, claimID); err != nil {
		return nil, err
	}

	rejected, err := c.store.DepositClaim.Transition(c.db.WithContext(ctx), claimID, model.DepositStatePending, model.DepositStateRejected, adminID)
	if err != nil {
		return rejected, c.transitionError(entityClaim, string(model.DepositStateRejected), claimState(rejected), err)
	}
	c.metrics.RecordTransition(entityClaim, string(model.DepositStateRejected), "ok")

	c.logger.Info("[RejectClaim] claim rejected", map[string]string{
		"claim_id": claimID,
		"admin_id": adminID,
	})
	c.notify(notifier.Event{
		Kind:     notifier.EventClaimRejected,
		EntityID: rejected.ID,
		UserID:   rejected.UserID,
		Network:  rejected.Network,
		Amount:   rejected.ClaimedAmount,
		TxHash:   rejected.TxHash,
		ActorID:  adminID,
	})
	return rejected, nil
}

func (c *Controller) GetClaim(ctx context.Context, claimID string) (*model.DepositClaim, error) {
	claim, err := c.store.DepositClaim.GetByID(c.db.WithContext(ctx), claimID)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil, errors.Wrapf(ErrNotFound, "deposit claim %s", claimID)
		}
		return nil, err
	}
	return claim, nil
}

func (c *Controller) ListClaims(ctx context.Context, filter model.DepositClaimFilter) ([]*model.DepositClaim, int64, error) {
	return c.store.DepositClaim.List(c.db.WithContext(ctx), filter)
}
