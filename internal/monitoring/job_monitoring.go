package monitoring

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/labomba/deposit-settlement/internal/utils/logger"
	"github.com/labomba/deposit-settlement/internal/utils/webhook"
)

type JobExecutionStatus string

const (
	JobStatusPending JobExecutionStatus = "pending"
	JobStatusRunning JobExecutionStatus = "running"
	JobStatusSuccess JobExecutionStatus = "success"
	JobStatusFailed  JobExecutionStatus = "failed"
	JobStatusStalled JobExecutionStatus = "stalled"
)

// JobReport is what a job run hands back. Findings counts items that need an
// operator (e.g. credited claims without a ledger entry); Details is shown as is.
type JobReport struct {
	Findings int
	Details  map[string]interface{}
}

// JobFunc is the body of a scheduled job.
type JobFunc func(ctx context.Context) (JobReport, error)

type JobStatus struct {
	JobName             string                 `json:"job_name"`
	Status              JobExecutionStatus     `json:"status"`
	LastRunTime         time.Time              `json:"last_run_time"`
	LastDuration        time.Duration          `json:"last_duration_ms"`
	NextRunTime         time.Time              `json:"next_run_time,omitempty"`
	SuccessCount        int64                  `json:"success_count"`
	FailureCount        int64                  `json:"failure_count"`
	ConsecutiveFailures int64                  `json:"consecutive_failures"`
	LastError           string                 `json:"last_error,omitempty"`
	ErrorType           string                 `json:"error_type,omitempty"`
	Findings            int                    `json:"findings"`
	Details             map[string]interface{} `json:"details,omitempty"`
	UpdatedAt           time.Time              `json:"updated_at"`
}

type JobsSummary struct {
	TotalJobs        int       `json:"total_jobs"`
	RunningJobs      int       `json:"running_jobs"`
	HealthyJobs      int       `json:"healthy_jobs"`
	UnhealthyJobs    int       `json:"unhealthy_jobs"`
	StalledJobs      int       `json:"stalled_jobs"`
	JobsWithFindings int       `json:"jobs_with_findings"`
	LastUpdateTime   time.Time `json:"last_update_time"`
}

// JobStatusManager keeps the last outcome of every registered job. A job
// running longer than the stall threshold is reported as stalled.
type JobStatusManager struct {
	mu               sync.RWMutex
	statuses         map[string]*JobStatus
	logger           *logger.Logger
	metrics          *BackgroundJobMetrics
	stalledThreshold time.Duration
	now              func() time.Time
	stop             chan struct{}
	stopOnce         sync.Once
}

func NewJobStatusManager(logger *logger.Logger, metrics *BackgroundJobMetrics) *JobStatusManager {
	jsm := &JobStatusManager{
		statuses:         make(map[string]*JobStatus),
		logger:           logger,
		metrics:          metrics,
		stalledThreshold: 5 * time.Minute,
		now:              time.Now,
		stop:             make(chan struct{}),
	}
	go jsm.watchStalled(time.Minute)
	return jsm
}

func (jsm *JobStatusManager) Stop() {
	jsm.stopOnce.Do(func() { close(jsm.stop) })
}

func (jsm *JobStatusManager) RegisterJob(jobName string) {
	jsm.mu.Lock()
	defer jsm.mu.Unlock()
	jsm.entry(jobName)
}

// entry returns the status for jobName, creating it. Callers hold mu.
func (jsm *JobStatusManager) entry(jobName string) *JobStatus {
	status, ok := jsm.statuses[jobName]
	if !ok {
		status = &JobStatus{JobName: jobName, Status: JobStatusPending, UpdatedAt: jsm.now()}
		jsm.statuses[jobName] = status
		jsm.logger.Info("[RegisterJob] job registered", map[string]string{"job_name": jobName})
	}
	return status
}

// SetNextRun records when the scheduler will fire jobName next.
func (jsm *JobStatusManager) SetNextRun(jobName string, next time.Time) {
	jsm.mu.Lock()
	defer jsm.mu.Unlock()
	jsm.entry(jobName).NextRunTime = next
}

func (jsm *JobStatusManager) StartJob(jobName string) {
	jsm.mu.Lock()
	defer jsm.mu.Unlock()

	status := jsm.entry(jobName)
	status.Status = JobStatusRunning
	status.LastRunTime = jsm.now()
	status.UpdatedAt = status.LastRunTime
	jsm.metrics.activeJobs.Inc()
}

func (jsm *JobStatusManager) CompleteJob(jobName string, report JobReport, err error) {
	jsm.mu.Lock()
	defer jsm.mu.Unlock()

	status, ok := jsm.statuses[jobName]
	if !ok || (status.Status != JobStatusRunning && status.Status != JobStatusStalled) {
		jsm.logger.Error("[CompleteJob] job was not started", map[string]string{"job_name": jobName})
		return
	}
	jsm.metrics.activeJobs.Dec()

	now := jsm.now()
	status.LastDuration = now.Sub(status.LastRunTime)
	status.UpdatedAt = now
	status.Details = report.Details

	if err != nil {
		status.Status = JobStatusFailed
		status.FailureCount++
		status.ConsecutiveFailures++
		status.LastError = err.Error()
		status.ErrorType = classifyJobError(err)

		jsm.metrics.jobRuns.WithLabelValues(jobName, "error").Inc()
		jsm.metrics.jobDuration.WithLabelValues(jobName, "failed").Observe(status.LastDuration.Seconds())
		jsm.logger.Error("[CompleteJob] job failed", map[string]string{
			"job_name":             jobName,
			"duration":             status.LastDuration.String(),
			"error":                status.LastError,
			"error_type":           status.ErrorType,
			"consecutive_failures": strconv.FormatInt(status.ConsecutiveFailures, 10),
		})
		return
	}

	status.Status = JobStatusSuccess
	status.SuccessCount++
	status.ConsecutiveFailures = 0
	status.LastError = ""
	status.ErrorType = ""
	status.Findings = report.Findings

	jsm.metrics.jobRuns.WithLabelValues(jobName, "success").Inc()
	jsm.metrics.jobDuration.WithLabelValues(jobName, "success").Observe(status.LastDuration.Seconds())
	jsm.metrics.jobFindings.WithLabelValues(jobName).Set(float64(report.Findings))
	jsm.logger.Info("[CompleteJob] job succeeded", map[string]string{
		"job_name": jobName,
		"duration": status.LastDuration.String(),
		"findings": strconv.Itoa(report.Findings),
	})
}

// Status returns a copy of one job's status.
func (jsm *JobStatusManager) Status(jobName string) (JobStatus, bool) {
	statuses := jsm.Statuses()
	status, ok := statuses[jobName]
	return status, ok
}

// Statuses returns copies of every job's status with stalls applied.
func (jsm *JobStatusManager) Statuses() map[string]JobStatus {
	jsm.mu.RLock()
	defer jsm.mu.RUnlock()

	now := jsm.now()
	out := make(map[string]JobStatus, len(jsm.statuses))
	for name, status := range jsm.statuses {
		cp := *status
		if status.Details != nil {
			cp.Details = make(map[string]interface{}, len(status.Details))
			for k, v := range status.Details {
				cp.Details[k] = v
			}
		}
		if cp.Status == JobStatusRunning && now.Sub(cp.LastRunTime) > jsm.stalledThreshold {
			cp.Status = JobStatusStalled
		}
		out[name] = cp
	}
	return out
}

func (jsm *JobStatusManager) Summary() JobsSummary {
	statuses := jsm.Statuses()

	summary := JobsSummary{TotalJobs: len(statuses), LastUpdateTime: jsm.now()}
	for _, status := range statuses {
		switch status.Status {
		case JobStatusRunning:
			summary.RunningJobs++
		case JobStatusSuccess:
			summary.HealthyJobs++
		case JobStatusFailed:
			summary.UnhealthyJobs++
		case JobStatusStalled:
			summary.StalledJobs++
		}
		if status.Findings > 0 {
			summary.JobsWithFindings++
		}
	}
	return summary
}

func (jsm *JobStatusManager) watchStalled(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-jsm.stop:
			return
		case <-ticker.C:
			jsm.markStalled()
		}
	}
}

func (jsm *JobStatusManager) markStalled() {
	jsm.mu.Lock()
	defer jsm.mu.Unlock()

	now := jsm.now()
	stalled := 0
	for name, status := range jsm.statuses {
		if status.Status == JobStatusStalled {
			stalled++
			continue
		}
		if status.Status != JobStatusRunning || now.Sub(status.LastRunTime) <= jsm.stalledThreshold {
			continue
		}
		status.Status = JobStatusStalled
		status.UpdatedAt = now
		stalled++
		jsm.logger.Error("[markStalled] job stalled", map[string]string{
			"job_name":     name,
			"running_for":  now.Sub(status.LastRunTime).String(),
			"last_started": status.LastRunTime.Format(time.RFC3339),
		})
	}
	jsm.metrics.stalledJobs.Set(float64(stalled))
}

// InstrumentedJob runs a JobFunc under a deadline, records the outcome and
// pings the uptime webhook after each successful run.
type InstrumentedJob struct {
	name          string
	fn            JobFunc
	statusManager *JobStatusManager
	logger        *logger.Logger
	timeout       time.Duration
	webhookClient *webhook.Client
	webhookURL    string
}

func NewInstrumentedJob(name string, fn JobFunc, statusManager *JobStatusManager, logger *logger.Logger, timeout time.Duration) *InstrumentedJob {
	statusManager.RegisterJob(name)
	return &InstrumentedJob{
		name:          name,
		fn:            fn,
		statusManager: statusManager,
		logger:        logger,
		timeout:       timeout,
	}
}

func NewInstrumentedJobWithWebhook(
	name string,
	fn JobFunc,
	statusManager *JobStatusManager,
	logger *logger.Logger,
	timeout time.Duration,
	webhookClient *webhook.Client,
	webhookURL string,
) *InstrumentedJob {
	job := NewInstrumentedJob(name, fn, statusManager, logger, timeout)
	job.webhookClient = webhookClient
	job.webhookURL = webhookURL
	return job
}

type jobOutcome struct {
	report JobReport
	err    error
}

func (ij *InstrumentedJob) Execute() {
	ij.statusManager.StartJob(ij.name)

	ctx, cancel := context.WithTimeout(context.Background(), ij.timeout)
	defer cancel()

	done := make(chan jobOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ij.logger.Error("[Execute] job panicked", map[string]string{
					"job_name": ij.name,
					"panic":    fmt.Sprintf("%v", r),
					"stack":    string(debug.Stack()),
				})
				done <- jobOutcome{err: fmt.Errorf("job panicked: %v", r)}
			}
		}()
		report, err := ij.fn(ctx)
		done <- jobOutcome{report: report, err: err}
	}()

	var outcome jobOutcome
	select {
	case outcome = <-done:
	case <-ctx.Done():
		outcome.err = fmt.Errorf("job timed out after %v: %w", ij.timeout, ctx.Err())
		ij.statusManager.metrics.jobTimeouts.WithLabelValues(ij.name).Inc()
	}

	ij.statusManager.CompleteJob(ij.name, outcome.report, outcome.err)

	if outcome.err == nil && ij.webhookClient != nil {
		webhookCtx, cancelWebhook := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelWebhook()
		ij.webhookClient.CallUptimeWebhook(webhookCtx, ij.webhookURL)
	}
}

type BackgroundJobMetrics struct {
	jobDuration *prometheus.HistogramVec
	jobRuns     *prometheus.CounterVec
	jobFindings *prometheus.GaugeVec
	activeJobs  prometheus.Gauge
	stalledJobs prometheus.Gauge
	jobTimeouts *prometheus.CounterVec
}

func NewBackgroundJobMetrics() *BackgroundJobMetrics {
	return &BackgroundJobMetrics{
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "settlement_background_job_duration_seconds",
				Help:    "Background job execution duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
			[]string{"job_name", "status"},
		),
		jobRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settlement_background_job_runs_total",
				Help: "Total number of background job runs",
			},
			[]string{"job_name", "status"},
		),
		jobFindings: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "settlement_background_job_findings",
				Help: "Items needing an operator reported by the last successful run",
			},
			[]string{"job_name"},
		),
		activeJobs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "settlement_background_jobs_active",
				Help: "Number of currently running background jobs",
			},
		),
		stalledJobs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "settlement_background_jobs_stalled",
				Help: "Number of stalled background jobs",
			},
		),
		jobTimeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settlement_job_timeouts_total",
				Help: "Total job timeouts",
			},
			[]string{"job_name"},
		),
	}
}

func (m *BackgroundJobMetrics) MustRegister(registry prometheus.Registerer) {
	registry.MustRegister(
		m.jobDuration,
		m.jobRuns,
		m.jobFindings,
		m.activeJobs,
		m.stalledJobs,
		m.jobTimeouts,
	)
}

func classifyJobError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "panic"):
		return "panic"
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		return "timeout"
	case strings.Contains(msg, "ledger"):
		return "ledger"
	case strings.Contains(msg, "database"), strings.Contains(msg, "sql"):
		return "database"
	case strings.Contains(msg, "connection"), strings.Contains(msg, "rpc"):
		return "network"
	default:
		return "unknown"
	}
}
