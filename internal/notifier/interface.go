package notifier

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/labomba/deposit-settlement/internal/model"
)

type EventKind string

const (
	EventClaimSubmitted      EventKind = "claim.submitted"
	EventClaimReview         EventKind = "claim.review"
	EventClaimCredited       EventKind = "claim.credited"
	EventClaimRejected       EventKind = "claim.rejected"
	EventWithdrawalRequested EventKind = "withdrawal.requested"
	EventWithdrawalProcessed EventKind = "withdrawal.processed"
	EventWithdrawalRejected  EventKind = "withdrawal.rejected"
)

// Event describes a settlement state change. Fields that do not apply to a
// kind are left zero.
type Event struct {
	Kind         EventKind                  `json:"kind"`
	EntityID     string                     `json:"entity_id"`
	UserID       string                     `json:"user_id"`
	Network      model.Network              `json:"network"`
	Amount       decimal.Decimal            `json:"amount"`
	PayoutAmount *decimal.Decimal           `json:"payout_amount,omitempty"`
	TxHash       string                     `json:"tx_hash,omitempty"`
	Destination  string                     `json:"destination,omitempty"`
	ExplorerURL  string                     `json:"explorer_url,omitempty"`
	Verdict      *model.VerificationVerdict `json:"verdict,omitempty"`
	PriorCredits int                        `json:"prior_credits,omitempty"`
	// ApproveURL marks a withdrawal processed or credits a claim.
	ApproveURL   string                     `json:"-"`
	RejectURL    string                     `json:"-"`
	ActorID      string                     `json:"actor_id,omitempty"`
	OccurredAt   time.Time                  `json:"occurred_at"`
}

// INotifier delivers events. Implementations ignore kinds they do not handle.
type INotifier interface {
	Notify(ctx context.Context, event Event) error
}

// EmailLookup resolves the contact address of a user.
type EmailLookup interface {
	UserEmail(ctx context.Context, userID string) (string, error)
}
