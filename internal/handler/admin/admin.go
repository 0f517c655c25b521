package admin

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/labomba/deposit-settlement/internal/consts"
	"github.com/labomba/deposit-settlement/internal/controller"
	"github.com/labomba/deposit-settlement/internal/handler/apierr"
	"github.com/labomba/deposit-settlement/internal/model"
	"github.com/labomba/deposit-settlement/internal/telemetry"
	"github.com/labomba/deposit-settlement/internal/utils/logger"
	"github.com/labomba/deposit-settlement/internal/view"
)

const defaultPageSize = 50

type ClaimListQuery struct {
	UserID  string `form:"user_id"`
	Network string `form:"network" validate:"omitempty,oneof=solana base polygon"`
	State   string `form:"state" validate:"omitempty,oneof=pending credited rejected"`
	TxHash  string `form:"tx_hash"`
	Limit   int    `form:"limit" validate:"gte=0,lte=200"`
	Offset  int    `form:"offset" validate:"gte=0"`
}

type WithdrawalListQuery struct {
	UserID string `form:"user_id"`
	State  string `form:"state" validate:"omitempty,oneof=pending processed rejected"`
	Limit  int    `form:"limit" validate:"gte=0,lte=200"`
	Offset int    `form:"offset" validate:"gte=0"`
}

type ApproveClaimRequest struct {
	// Force credits even when the on-chain check does not confirm the deposit.
	Force bool `json:"force"`
}

type ProcessWithdrawalRequest struct {
	PayoutTxHash string `json:"payout_tx_hash" validate:"omitempty,max=128"`
}

type handler struct {
	controller controller.IController
	telemetry  telemetry.ITelemetry
	logger     *logger.Logger
	validate   *validator.Validate
}

func New(controller controller.IController, telemetry telemetry.ITelemetry, logger *logger.Logger) IHandler {
	return &handler{
		controller: controller,
		telemetry:  telemetry,
		logger:     logger,
		validate:   validator.New(),
	}
}

// ListClaims godoc
// @Summary List deposit claims
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param user_id query string false "owner"
// @Param network query string false "solana, base or polygon"
// @Param state query string false "pending, credited or rejected"
// @Param tx_hash query string false "transaction hash"
// @Param limit query int false "page size"
// @Param offset query int false "page offset"
// @Success 200 {object} view.Response[[]model.DepositClaim]
// @Failure 400 {object} view.ErrorResponse
// @Failure 403 {object} view.ErrorResponse
// @Router /admin/claims [get]
func (h *handler) ListClaims(c *gin.Context) {
	var q ClaimListQuery
	if !h.bindQuery(c, &q) {
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultPageSize
	}

	claims, total, err := h.controller.ListClaims(c.Request.Context(), model.DepositClaimFilter{
		UserID:  q.UserID,
		Network: model.Network(q.Network),
		State:   model.DepositState(q.State),
		TxHash:  strings.TrimSpace(q.TxHash),
		Limit:   q.Limit,
		Offset:  q.Offset,
	})
	if err != nil {
		apierr.Respond(c, h.logger, "[ListClaims][ListClaims]", err, nil)
		return
	}

	c.JSON(http.StatusOK, view.CreatePaginatedResponse(claims, total, q.Limit, q.Offset))
}

// VerifyClaim godoc
// @Summary Verify a deposit claim on chain
// @Description Read-only check of the claim's transaction against the custody address
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "claim id"
// @Success 200 {object} view.Response[controller.ClaimReview]
// @Failure 404 {object} view.ErrorResponse
// @Router /admin/claims/{id}/verify [get]
func (h *handler) VerifyClaim(c *gin.Context) {
	review, err := h.controller.VerifyClaim(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierr.Respond(c, h.logger, "[VerifyClaim][VerifyClaim]", err, nil)
		return
	}
	c.JSON(http.StatusOK, view.CreateResponse[any](review, nil, nil, ""))
}

// NotifyClaim godoc
// @Summary Verify a claim and send the review to administrators
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "claim id"
// @Success 200 {object} view.Response[controller.ClaimReview]
// @Failure 404 {object} view.ErrorResponse
// @Router /admin/claims/{id}/notify [post]
func (h *handler) NotifyClaim(c *gin.Context) {
	review, err := h.controller.VerifyAndNotify(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierr.Respond(c, h.logger, "[NotifyClaim][VerifyAndNotify]", err, nil)
		return
	}
	c.JSON(http.StatusOK, view.CreateResponse[any](review, nil, nil, "review sent"))
}

// ApproveClaim godoc
// @Summary Approve a deposit claim
// @Description Credits the user's balance once. Without force the deposit must verify on chain.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "claim id"
// @Param request body ApproveClaimRequest false "approval options"
// @Success 200 {object} view.Response[controller.ApprovalResult]
// @Failure 404 {object} view.ErrorResponse
// @Failure 409 {object} view.ErrorResponse
// @Failure 422 {object} view.ErrorResponse
// @Failure 502 {object} view.ErrorResponse
// @Router /admin/claims/{id}/approve [post]
func (h *handler) ApproveClaim(c *gin.Context) {
	var req ApproveClaimRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid request"))
			return
		}
	}

	result, err := h.controller.ApproveClaim(c.Request.Context(), c.Param("id"), c.GetString(consts.ContextKeyUserID), controller.ApproveOptions{Force: req.Force})
	if err != nil {
		apierr.Respond(c, h.logger, "[ApproveClaim][ApproveClaim]", err, result)
		return
	}
	c.JSON(http.StatusOK, view.CreateResponse[any](result, nil, nil, "claim credited"))
}

// RejectClaim godoc
// @Summary Reject a deposit claim
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "claim id"
// @Success 200 {object} view.Response[model.DepositClaim]
// @Failure 404 {object} view.ErrorResponse
// @Failure 409 {object} view.ErrorResponse
// @Router /admin/claims/{id}/reject [post]
func (h *handler) RejectClaim(c *gin.Context) {
	claim, err := h.controller.RejectClaim(c.Request.Context(), c.Param("id"), c.GetString(consts.ContextKeyUserID))
	if err != nil {
		apierr.Respond(c, h.logger, "[RejectClaim][RejectClaim]", err, claim)
		return
	}
	c.JSON(http.StatusOK, view.CreateResponse[any](claim, nil, nil, "claim rejected"))
}

// ListWithdrawals godoc
// @Summary List withdrawal requests
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param user_id query string false "owner"
// @Param state query string false "pending, processed or rejected"
// @Param limit query int false "page size"
// @Param offset query int false "page offset"
// @Success 200 {object} view.Response[[]model.WithdrawalRequest]
// @Failure 400 {object} view.ErrorResponse
// @Router /admin/withdrawals [get]
func (h *handler) ListWithdrawals(c *gin.Context) {
	var q WithdrawalListQuery
	if !h.bindQuery(c, &q) {
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultPageSize
	}

	reqs, total, err := h.controller.ListWithdrawals(c.Request.Context(), model.WithdrawalFilter{
		UserID: q.UserID,
		State:  model.WithdrawalState(q.State),
		Limit:  q.Limit,
		Offset: q.Offset,
	})
	if err != nil {
		apierr.Respond(c, h.logger, "[ListWithdrawals][ListWithdrawals]", err, nil)
		return
	}

	c.JSON(http.StatusOK, view.CreatePaginatedResponse(reqs, total, q.Limit, q.Offset))
}

// ProcessWithdrawal godoc
// @Summary Mark a withdrawal as paid out
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "request id"
// @Param request body ProcessWithdrawalRequest false "payout transaction, optional"
// @Success 200 {object} view.Response[model.WithdrawalRequest]
// @Failure 400 {object} view.ErrorResponse
// @Failure 409 {object} view.ErrorResponse
// @Router /admin/withdrawals/{id}/process [post]
func (h *handler) ProcessWithdrawal(c *gin.Context) {
	var req ProcessWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid request"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid request"))
		return
	}

	processed, err := h.controller.MarkWithdrawalProcessed(c.Request.Context(), c.Param("id"), req.PayoutTxHash, c.GetString(consts.ContextKeyUserID))
	if err != nil {
		apierr.Respond(c, h.logger, "[ProcessWithdrawal][MarkWithdrawalProcessed]", err, processed)
		return
	}
	c.JSON(http.StatusOK, view.CreateResponse[any](processed, nil, nil, "withdrawal processed"))
}

// RejectWithdrawal godoc
// @Summary Reject a withdrawal and refund the user
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "request id"
// @Success 200 {object} view.Response[model.WithdrawalRequest]
// @Failure 409 {object} view.ErrorResponse
// @Failure 502 {object} view.ErrorResponse
// @Router /admin/withdrawals/{id}/reject [post]
func (h *handler) RejectWithdrawal(c *gin.Context) {
	rejected, err := h.controller.RejectWithdrawal(c.Request.Context(), c.Param("id"), c.GetString(consts.ContextKeyUserID))
	if err != nil {
		apierr.Respond(c, h.logger, "[RejectWithdrawal][RejectWithdrawal]", err, rejected)
		return
	}
	c.JSON(http.StatusOK, view.CreateResponse[any](rejected, nil, nil, "withdrawal rejected"))
}

// Stats godoc
// @Summary Money in and out
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} view.Response[telemetry.MoneyStats]
// @Router /admin/stats [get]
func (h *handler) Stats(c *gin.Context) {
	stats, err := h.telemetry.Stats(c.Request.Context())
	if err != nil {
		apierr.Respond(c, h.logger, "[Stats][Stats]", err, nil)
		return
	}
	c.JSON(http.StatusOK, view.CreateResponse[any](stats, nil, nil, ""))
}

// Reconciliation godoc
// @Summary State changes whose ledger side effect is missing
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} view.Response[telemetry.ReconciliationReport]
// @Router /admin/reconciliation [get]
func (h *handler) Reconciliation(c *gin.Context) {
	report, err := h.telemetry.Reconcile(c.Request.Context())
	if err != nil {
		apierr.Respond(c, h.logger, "[Reconciliation][Reconcile]", err, nil)
		return
	}
	message := "clean"
	if !report.Clean() {
		message = "gaps found"
	}
	c.JSON(http.StatusOK, view.CreateResponse[any](report, nil, nil, message))
}

func (h *handler) bindQuery(c *gin.Context, q any) bool {
	if err := c.ShouldBindQuery(q); err != nil {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, q, "invalid query"))
		return false
	}
	if err := h.validate.Struct(q); err != nil {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, q, "invalid query"))
		return false
	}
	return true
}
