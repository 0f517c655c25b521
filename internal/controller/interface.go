package controller

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/labomba/deposit-settlement/internal/model"
)

// ClaimReview is what an administrator reads before deciding on a claim.
type ClaimReview struct {
	Claim   *model.DepositClaim       `json:"claim"`
	Verdict model.VerificationVerdict `json:"verdict"`
	// PriorCredits are other credited claims for the same transaction.
	PriorCredits   []*model.DepositClaim `json:"prior_credits"`
	AmountMismatch bool                  `json:"amount_mismatch"`
	ExplorerURL    string                `json:"explorer_url"`
}

type ApproveOptions struct {
	// Force credits without a creditable on-chain verdict.
	Force bool
}

type ApprovalResult struct {
	Claim        *model.DepositClaim        `json:"claim"`
	Verdict      *model.VerificationVerdict `json:"verdict,omitempty"`
	PriorCredits []*model.DepositClaim      `json:"prior_credits"`
}

type IController interface {
	// SubmitClaim validates input without I/O and persists a pending claim.
	SubmitClaim(ctx context.Context, userID string, network model.Network, amount decimal.Decimal, txHash string) (*model.DepositClaim, error)

	// VerifyClaim checks the claim's transaction on chain. It never mutates state.
	VerifyClaim(ctx context.Context, claimID string) (*ClaimReview, error)

	// VerifyAndNotify runs VerifyClaim and sends the review to the administrators.
	VerifyAndNotify(ctx context.Context, claimID string) (*ClaimReview, error)

	// ApproveClaim moves a pending claim to credited and credits the ledger once.
	ApproveClaim(ctx context.Context, claimID, adminID string, opts ApproveOptions) (*ApprovalResult, error)
	RejectClaim(ctx context.Context, claimID, adminID string) (*model.DepositClaim, error)

	GetClaim(ctx context.Context, claimID string) (*model.DepositClaim, error)
	ListClaims(ctx context.Context, filter model.DepositClaimFilter) ([]*model.DepositClaim, int64, error)

	RequestWithdrawal(ctx context.Context, userID string, amount decimal.Decimal, network model.Network, destination string) (*model.WithdrawalRequest, error)
	MarkWithdrawalProcessed(ctx context.Context, requestID, payoutTxHash, adminID string) (*model.WithdrawalRequest, error)
	RejectWithdrawal(ctx context.Context, requestID, adminID string) (*model.WithdrawalRequest, error)

	GetWithdrawal(ctx context.Context, requestID string) (*model.WithdrawalRequest, error)
	ListWithdrawals(ctx context.Context, filter model.WithdrawalFilter) ([]*model.WithdrawalRequest, int64, error)

	// Wait blocks until in-flight notifications finish or ctx is done.
	Wait(ctx context.Context) error
}

// Metrics receives settlement counters.
type Metrics interface {
	RecordTransition(entity, to, result string)
	RecordLedgerFailure(operation string)
	RecordNotificationFailure(channel string)
}
