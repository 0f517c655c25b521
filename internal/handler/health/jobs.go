package health

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/labomba/deposit-settlement/internal/consts"
	"github.com/labomba/deposit-settlement/internal/monitoring"
)

// Jobs handles the background jobs health check endpoint
// @Summary Background jobs health check
// @Description Validates background job status and performance
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} JobsHealthResponse
// @Failure 503 {object} JobsHealthResponse
// @Router /api/v1/health/jobs [get]
func (h *HealthHandler) Jobs(c *gin.Context) {
	start := time.Now()

	if h.jobStatusManager == nil {
		response := JobsHealthResponse{
			Status:     statusUnhealthy,
			Timestamp:  time.Now(),
			Jobs:       make(map[string]monitoring.JobStatus),
			Summary:    monitoring.JobsSummary{},
			DurationMs: time.Since(start).Milliseconds(),
		}
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	jobs := h.jobStatusManager.Statuses()
	summary := h.jobStatusManager.Summary()

	overallStatus := statusHealthy
	switch {
	case summary.StalledJobs > 0 || criticalJobFailing(jobs):
		overallStatus = statusUnhealthy
	case summary.UnhealthyJobs > 0 || summary.JobsWithFindings > 0:
		overallStatus = statusDegraded
	}

	response := JobsHealthResponse{
		Status:     overallStatus,
		Timestamp:  time.Now(),
		Jobs:       jobs,
		Summary:    summary,
		DurationMs: time.Since(start).Milliseconds(),
	}

	statusCode := http.StatusOK
	if overallStatus == statusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	} else if overallStatus == statusDegraded {
		statusCode = http.StatusPartialContent
	}

	h.logger.Info("[Jobs] jobs health check completed", map[string]string{
		"overall_status": overallStatus,
		"duration":       fmt.Sprintf("%dms", response.DurationMs),
		"total_jobs":     fmt.Sprintf("%d", summary.TotalJobs),
		"unhealthy_jobs": fmt.Sprintf("%d", summary.UnhealthyJobs),
		"stalled_jobs":   fmt.Sprintf("%d", summary.StalledJobs),
		"running_jobs":   fmt.Sprintf("%d", summary.RunningJobs),
		"findings":       fmt.Sprintf("%d", summary.JobsWithFindings),
	})

	c.JSON(statusCode, response)
}
// criticalJobFailing reports a critical job that failed more than twice in a row.
func criticalJobFailing(jobs map[string]monitoring.JobStatus) bool {
	for _, name := range []string{consts.ReconciliationJobName} {
		if job, ok := jobs[name]; ok && job.Status == monitoring.JobStatusFailed && job.ConsecutiveFailures > 2 {
			return true
		}
	}
	return false
}
