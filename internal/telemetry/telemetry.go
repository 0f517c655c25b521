package telemetry

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/labomba/deposit-settlement/internal/model"
	"github.com/labomba/deposit-settlement/internal/monitoring"
	"github.com/labomba/deposit-settlement/internal/store"
	"github.com/labomba/deposit-settlement/internal/utils/config"
	"github.com/labomba/deposit-settlement/internal/utils/logger"
)

// gapGracePeriod keeps in-flight approvals out of the report.
const gapGracePeriod = time.Minute

type ReconciliationReport struct {
	UnappliedCredits      []*model.DepositClaim      `json:"unapplied_credits"`
	UnrefundedWithdrawals []*model.WithdrawalRequest `json:"unrefunded_withdrawals"`
	UnconfirmedDebits     []*model.WithdrawalRequest `json:"unconfirmed_debits"`
	GeneratedAt           time.Time                  `json:"generated_at"`
}

func (r *ReconciliationReport) Clean() bool {
	return r.Findings() == 0
}

func (r *ReconciliationReport) Findings() int {
	return len(r.UnappliedCredits) + len(r.UnrefundedWithdrawals) + len(r.UnconfirmedDebits)
}

type MoneyStats struct {
	CreditedDeposits     decimal.Decimal `json:"credited_deposits"`
	CreditedDepositCount int64           `json:"credited_deposit_count"`
	ProcessedWithdrawals decimal.Decimal `json:"processed_withdrawals"`
	ProcessedCount       int64           `json:"processed_withdrawal_count"`
	FeeEarnings          decimal.Decimal `json:"fee_earnings"`
	PendingClaims        int64           `json:"pending_claims"`
	PendingWithdrawals   int64           `json:"pending_withdrawals"`
}

type Telemetry struct {
	db        *gorm.DB
	store     *store.Store
	appConfig *config.AppConfig
	logger    *logger.Logger
	gauges    Gauges
	now       func() time.Time
}

func New(db *gorm.DB, store *store.Store, appConfig *config.AppConfig, logger *logger.Logger, gauges Gauges) *Telemetry {
	return &Telemetry{
		db:        db,
		store:     store,
		appConfig: appConfig,
		logger:    logger,
		gauges:    gauges,
		now:       time.Now,
	}
}

func (t *Telemetry) Reconcile(ctx context.Context) (*ReconciliationReport, error) {
	now := t.now()
	cutoff := now.Add(-gapGracePeriod)
	db := t.db.WithContext(ctx)

	credits, err := t.store.DepositClaim.ListUnappliedCredits(db, cutoff)
	if err != nil {
		return nil, errors.Wrap(err, "list unapplied credits")
	}
	refunds, err := t.store.WithdrawalRequest.ListUnrefunded(db, cutoff)
	if err != nil {
		return nil, errors.Wrap(err, "list unrefunded withdrawals")
	}
	debits, err := t.store.WithdrawalRequest.ListUnconfirmedDebits(db, cutoff)
	if err != nil {
		return nil, errors.Wrap(err, "list unconfirmed debits")
	}

	return &ReconciliationReport{
		UnappliedCredits:      credits,
		UnrefundedWithdrawals: refunds,
		UnconfirmedDebits:     debits,
		GeneratedAt:           now,
	}, nil
}

func (t *Telemetry) Stats(ctx context.Context) (*MoneyStats, error) {
	db := t.db.WithContext(ctx)
	stats := &MoneyStats{}
	var err error

	if stats.CreditedDeposits, err = t.store.DepositClaim.SumByState(db, model.DepositStateCredited); err != nil {
		return nil, errors.Wrap(err, "sum credited deposits")
	}
	if stats.CreditedDepositCount, err = t.store.DepositClaim.CountByState(db, model.DepositStateCredited); err != nil {
		return nil, errors.Wrap(err, "count credited deposits")
	}
	if stats.ProcessedWithdrawals, stats.FeeEarnings, err = t.store.WithdrawalRequest.SumByState(db, model.WithdrawalStateProcessed); err != nil {
		return nil, errors.Wrap(err, "sum processed withdrawals")
	}
	if stats.ProcessedCount, err = t.store.WithdrawalRequest.CountByState(db, model.WithdrawalStateProcessed); err != nil {
		return nil, errors.Wrap(err, "count processed withdrawals")
	}
	if stats.PendingClaims, err = t.store.DepositClaim.CountByState(db, model.DepositStatePending); err != nil {
		return nil, errors.Wrap(err, "count pending claims")
	}
	if stats.PendingWithdrawals, err = t.store.WithdrawalRequest.CountByState(db, model.WithdrawalStatePending); err != nil {
		return nil, errors.Wrap(err, "count pending withdrawals")
	}
	return stats, nil
}

func (t *Telemetry) RunReconciliation(ctx context.Context) (monitoring.JobReport, error) {
	t.logger.Info("[RunReconciliation] start")

	report, err := t.Reconcile(ctx)
	if err != nil {
		t.logger.Error("[RunReconciliation][Reconcile]", map[string]string{
			"error": err.Error(),
		})
		return monitoring.JobReport{}, err
	}

	stats, err := t.Stats(ctx)
	if err != nil {
		t.logger.Error("[RunReconciliation][Stats]", map[string]string{
			"error": err.Error(),
		})
		return monitoring.JobReport{}, err
	}

	if t.gauges != nil {
		t.gauges.SetReconciliationGaps(len(report.UnappliedCredits), len(report.UnrefundedWithdrawals))
		t.gauges.SetPending("deposit_claim", stats.PendingClaims)
		t.gauges.SetPending("withdrawal_request", stats.PendingWithdrawals)
	}

	for _, claim := range report.UnappliedCredits {
		t.logger.Warn("[RunReconciliation] credited claim has no ledger credit", map[string]string{
			"claim_id": claim.ID,
			"user_id":  claim.UserID,
			"amount":   claim.ClaimedAmount.String(),
		})
	}
	for _, req := range report.UnrefundedWithdrawals {
		t.logger.Warn("[RunReconciliation] rejected withdrawal was not refunded", map[string]string{
			"request_id": req.ID,
			"user_id":    req.UserID,
			"amount":     req.Amount.String(),
		})
	}
	for _, req := range report.UnconfirmedDebits {
		t.logger.Warn("[RunReconciliation] pending withdrawal has no recorded debit", map[string]string{
			"request_id": req.ID,
			"user_id":    req.UserID,
			"amount":     req.Amount.String(),
		})
	}

	t.logger.Info("[RunReconciliation] done", map[string]string{
		"unapplied_credits":      strconv.Itoa(len(report.UnappliedCredits)),
		"unrefunded_withdrawals": strconv.Itoa(len(report.UnrefundedWithdrawals)),
		"unconfirmed_debits":     strconv.Itoa(len(report.UnconfirmedDebits)),
	})
	return monitoring.JobReport{
		Findings: report.Findings(),
		Details: map[string]interface{}{
			"unapplied_credits":      len(report.UnappliedCredits),
			"unrefunded_withdrawals": len(report.UnrefundedWithdrawals),
			"unconfirmed_debits":     len(report.UnconfirmedDebits),
			"pending_claims":         stats.PendingClaims,
			"pending_withdrawals":    stats.PendingWithdrawals,
		},
	}, nil
}
