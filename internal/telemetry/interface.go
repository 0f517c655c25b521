package telemetry

import (
	"context"

	"github.com/labomba/deposit-settlement/internal/monitoring"
)

type ITelemetry interface {
	// Reconcile lists state transitions whose ledger side effect never landed.
	Reconcile(ctx context.Context) (*ReconciliationReport, error)
	Stats(ctx context.Context) (*MoneyStats, error)

	// RunReconciliation is the cron job body: it refreshes gauges, logs gaps and
	// reports them as findings.
	RunReconciliation(ctx context.Context) (monitoring.JobReport, error)
}

// Gauges receives reconciliation results.
type Gauges interface {
	SetReconciliationGaps(unappliedCredits, unrefundedWithdrawals int)
	SetPending(entity string, count int64)
}
