package http

import (
	"github.com/gin-gonic/gin"

	"github.com/labomba/deposit-settlement/internal/handler"
	"github.com/labomba/deposit-settlement/internal/monitoring"
	"github.com/labomba/deposit-settlement/internal/utils/config"
	"github.com/labomba/deposit-settlement/internal/utils/logger"
)

func loadV1Routes(r *gin.Engine, h *handler.Handler, appConfig *config.AppConfig, logger *logger.Logger, httpMetrics *monitoring.HTTPMetrics) {
	auth := newAuthMiddleware(appConfig.Auth, logger)
	claimOp, withdrawalOp := operationTrackers(httpMetrics)

	v1 := r.Group("/api/v1")

	health := v1.Group("/health")
	{
		health.GET("/db", h.HealthHandler.Database)
		health.GET("/external", h.HealthHandler.External)
		health.GET("/jobs", h.HealthHandler.Jobs)
	}

	// signed one-click links from admin notifications; the token is the
	// credential. GET only renders the confirmation form.
	links := v1.Group("/admin/links")
	{
		links.GET("/claims/:id/approve", h.LinkHandler.ConfirmApproveClaim)
		links.POST("/claims/:id/approve", claimOp("link_approve"), h.LinkHandler.ApproveClaim)
		links.GET("/claims/:id/reject", h.LinkHandler.ConfirmRejectClaim)
		links.POST("/claims/:id/reject", claimOp("link_reject"), h.LinkHandler.RejectClaim)

		links.GET("/withdrawals/:id/process", h.LinkHandler.ConfirmProcessWithdrawal)
		links.POST("/withdrawals/:id/process", withdrawalOp("link_process"), h.LinkHandler.ProcessWithdrawal)
		links.GET("/withdrawals/:id/reject", h.LinkHandler.ConfirmRejectWithdrawal)
		links.POST("/withdrawals/:id/reject", withdrawalOp("link_reject"), h.LinkHandler.RejectWithdrawal)
	}

	user := v1.Group("", auth.RequireUser())

	deposits := user.Group("/deposits")
	{
		deposits.POST("/claims", claimOp("submit"), h.ClaimHandler.Submit)
		deposits.GET("/claims", h.ClaimHandler.ListMine)
		deposits.GET("/claims/:id", h.ClaimHandler.GetMine)
	}

	withdrawals := user.Group("/withdrawals")
	{
		withdrawals.POST("", withdrawalOp("request"), h.WithdrawalHandler.Request)
		withdrawals.GET("", h.WithdrawalHandler.ListMine)
		withdrawals.GET("/:id", h.WithdrawalHandler.GetMine)
	}

	admin := user.Group("/admin", auth.RequireAdmin())
	{
		admin.GET("/claims", h.AdminHandler.ListClaims)
		admin.GET("/claims/:id/verify", h.AdminHandler.VerifyClaim)
		admin.POST("/claims/:id/notify", h.AdminHandler.NotifyClaim)
		admin.POST("/claims/:id/approve", claimOp("approve"), h.AdminHandler.ApproveClaim)
		admin.POST("/claims/:id/reject", claimOp("reject"), h.AdminHandler.RejectClaim)

		admin.GET("/withdrawals", h.AdminHandler.ListWithdrawals)
		admin.POST("/withdrawals/:id/process", withdrawalOp("process"), h.AdminHandler.ProcessWithdrawal)
		admin.POST("/withdrawals/:id/reject", withdrawalOp("reject"), h.AdminHandler.RejectWithdrawal)

		admin.GET("/stats", h.AdminHandler.Stats)
		admin.GET("/reconciliation", h.AdminHandler.Reconciliation)
	}
}

// operationTrackers returns per-category middleware factories; they are no-ops
// when metrics are disabled.
func operationTrackers(httpMetrics *monitoring.HTTPMetrics) (claimOp, withdrawalOp func(string) gin.HandlerFunc) {
	if httpMetrics == nil {
		noop := func(string) gin.HandlerFunc { return func(c *gin.Context) { c.Next() } }
		return noop, noop
	}
	recorder := monitoring.NewBusinessMetricsRecorder(httpMetrics)
	claimOp = func(operation string) gin.HandlerFunc {
		return monitoring.TrackOperation(recorder.RecordClaimOperation, operation)
	}
	withdrawalOp = func(operation string) gin.HandlerFunc {
		return monitoring.TrackOperation(recorder.RecordWithdrawalOperation, operation)
	}
	return claimOp, withdrawalOp
}
