package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labomba/deposit-settlement/internal/utils/webhook"
)

func newTestJobManager(t *testing.T) (*JobStatusManager, *prometheus.Registry) {
	t.Helper()
	metrics := NewBackgroundJobMetrics()
	registry := prometheus.NewRegistry()
	metrics.MustRegister(registry)

	jsm := NewJobStatusManager(setupTestLogger(), metrics)
	t.Cleanup(jsm.Stop)
	return jsm, registry
}

func gatherGaugeVec(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, metric := range mf.GetMetric() {
			for k, v := range labels {
				if getLabelValue(metric.GetLabel(), k) != v {
					continue next
				}
			}
			return metric.GetGauge().GetValue()
		}
	}
	return -1
}

func TestJobStatusManager_Lifecycle(t *testing.T) {
	jsm, registry := newTestJobManager(t)

	jsm.RegisterJob("reconciliation")
	jsm.RegisterJob("reconciliation")

	status, ok := jsm.Status("reconciliation")
	require.True(t, ok)
	assert.Equal(t, JobStatusPending, status.Status)

	jsm.StartJob("reconciliation")
	status, _ = jsm.Status("reconciliation")
	assert.Equal(t, JobStatusRunning, status.Status)

	jsm.CompleteJob("reconciliation", JobReport{Findings: 2, Details: map[string]interface{}{"unapplied_credits": 2}}, nil)
	status, _ = jsm.Status("reconciliation")
	assert.Equal(t, JobStatusSuccess, status.Status)
	assert.Equal(t, int64(1), status.SuccessCount)
	assert.Equal(t, 2, status.Findings)
	assert.Equal(t, 2, status.Details["unapplied_credits"])
	assert.Equal(t, 2.0, gatherGaugeVec(t, registry, "settlement_background_job_findings", map[string]string{"job_name": "reconciliation"}))

	jsm.StartJob("reconciliation")
	jsm.CompleteJob("reconciliation", JobReport{}, errors.New("database is locked"))
	status, _ = jsm.Status("reconciliation")
	assert.Equal(t, JobStatusFailed, status.Status)
	assert.Equal(t, int64(1), status.ConsecutiveFailures)
	assert.Equal(t, "database", status.ErrorType)
	assert.Equal(t, 2, status.Findings, "a failed run keeps the last known findings")

	assert.Equal(t, 1.0, gatherCounter(t, registry, "settlement_background_job_runs_total", map[string]string{
		"job_name": "reconciliation", "status": "error",
	}))

	summary := jsm.Summary()
	assert.Equal(t, 1, summary.TotalJobs)
	assert.Equal(t, 1, summary.UnhealthyJobs)
	assert.Equal(t, 1, summary.JobsWithFindings)
}

func TestJobStatusManager_CompleteWithoutStart(t *testing.T) {
	jsm, registry := newTestJobManager(t)
	jsm.RegisterJob("reconciliation")

	jsm.CompleteJob("reconciliation", JobReport{}, nil)
	jsm.CompleteJob("unknown", JobReport{}, nil)

	status, _ := jsm.Status("reconciliation")
	assert.Equal(t, JobStatusPending, status.Status)
	assert.Equal(t, 0.0, gatherCounter(t, registry, "settlement_background_job_runs_total", nil))
}

func TestJobStatusManager_Stalled(t *testing.T) {
	jsm, registry := newTestJobManager(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	jsm.now = func() time.Time { return now }

	jsm.StartJob("slow")
	now = now.Add(6 * time.Minute)

	assert.Equal(t, JobStatusStalled, jsm.Statuses()["slow"].Status)
	jsm.markStalled()
	assert.Equal(t, 1, jsm.Summary().StalledJobs)
	assert.Equal(t, 1.0, gatherGaugeVec(t, registry, "settlement_background_jobs_stalled", nil))

	// A stalled run that eventually returns is still recorded.
	jsm.CompleteJob("slow", JobReport{}, nil)
	status, _ := jsm.Status("slow")
	assert.Equal(t, JobStatusSuccess, status.Status)
	assert.Equal(t, 6*time.Minute, status.LastDuration)
}

func TestJobStatusManager_SetNextRun(t *testing.T) {
	jsm, _ := newTestJobManager(t)
	next := time.Date(2026, 1, 1, 12, 5, 0, 0, time.UTC)

	jsm.SetNextRun("reconciliation", next)

	status, ok := jsm.Status("reconciliation")
	require.True(t, ok)
	assert.Equal(t, next, status.NextRunTime)
}

func TestJobStatusManager_ConcurrentAccess(t *testing.T) {
	jsm, _ := newTestJobManager(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mu.Lock()
			jsm.StartJob("concurrent")
			jsm.CompleteJob("concurrent", JobReport{}, nil)
			mu.Unlock()
			_ = jsm.Summary()
		}()
	}
	wg.Wait()

	status, ok := jsm.Status("concurrent")
	require.True(t, ok)
	assert.Equal(t, int64(20), status.SuccessCount)
}

func TestInstrumentedJob_SuccessPingsWebhook(t *testing.T) {
	var pings atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		pings.Add(1)
	}))
	defer server.Close()

	jsm, _ := newTestJobManager(t)
	job := NewInstrumentedJobWithWebhook("reconciliation", func(ctx context.Context) (JobReport, error) {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return JobReport{Findings: 1}, nil
	}, jsm, setupTestLogger(), time.Second, webhook.New(setupTestLogger()), server.URL)

	job.Execute()

	assert.Equal(t, int32(1), pings.Load())
	status, _ := jsm.Status("reconciliation")
	assert.Equal(t, JobStatusSuccess, status.Status)
	assert.Equal(t, 1, status.Findings)
}

func TestInstrumentedJob_FailureSkipsWebhook(t *testing.T) {
	var pings atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		pings.Add(1)
	}))
	defer server.Close()

	jsm, _ := newTestJobManager(t)
	job := NewInstrumentedJobWithWebhook("reconciliation", func(context.Context) (JobReport, error) {
		return JobReport{}, errors.New("ledger report unavailable")
	}, jsm, setupTestLogger(), time.Second, webhook.New(setupTestLogger()), server.URL)

	job.Execute()

	assert.Equal(t, int32(0), pings.Load())
	status, _ := jsm.Status("reconciliation")
	assert.Equal(t, "ledger", status.ErrorType)
}

func TestInstrumentedJob_Timeout(t *testing.T) {
	jsm, registry := newTestJobManager(t)
	job := NewInstrumentedJob("stuck", func(ctx context.Context) (JobReport, error) {
		time.Sleep(100 * time.Millisecond)
		return JobReport{}, nil
	}, jsm, setupTestLogger(), 10*time.Millisecond)

	job.Execute()

	status, _ := jsm.Status("stuck")
	assert.Equal(t, JobStatusFailed, status.Status)
	assert.Equal(t, "timeout", status.ErrorType)
	assert.Equal(t, 1.0, gatherCounter(t, registry, "settlement_job_timeouts_total", map[string]string{"job_name": "stuck"}))
}

func TestInstrumentedJob_PanicRecovery(t *testing.T) {
	jsm, _ := newTestJobManager(t)
	job := NewInstrumentedJob("panicky", func(context.Context) (JobReport, error) {
		panic("boom")
	}, jsm, setupTestLogger(), time.Second)

	assert.NotPanics(t, job.Execute)

	status, _ := jsm.Status("panicky")
	assert.Equal(t, JobStatusFailed, status.Status)
	assert.Equal(t, "panic", status.ErrorType)
	assert.Contains(t, status.LastError, "boom")
}

func TestClassifyJobError(t *testing.T) {
	assert.Equal(t, "", classifyJobError(nil))
	assert.Equal(t, "timeout", classifyJobError(context.DeadlineExceeded))
	assert.Equal(t, "ledger", classifyJobError(errors.New("ledger credit failed")))
	assert.Equal(t, "network", classifyJobError(errors.New("solana rpc unavailable")))
	assert.Equal(t, "unknown", classifyJobError(errors.New("weird")))
}
