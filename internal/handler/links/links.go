package links

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/labomba/deposit-settlement/internal/controller"
	"github.com/labomba/deposit-settlement/internal/handler/apierr"
	"github.com/labomba/deposit-settlement/internal/model"
	"github.com/labomba/deposit-settlement/internal/utils/adminlink"
	"github.com/labomba/deposit-settlement/internal/utils/config"
	"github.com/labomba/deposit-settlement/internal/utils/logger"
)

// linkActor is recorded as resolved_by for decisions made through a link.
const linkActor = "admin-link"

const (
	claimTitle      = "Deposit claim"
	withdrawalTitle = "Withdrawal"
)

type handler struct {
	controller controller.IController
	secret     string
	logger     *logger.Logger
}

func New(controller controller.IController, appConfig *config.AppConfig, logger *logger.Logger) IHandler {
	return &handler{
		controller: controller,
		secret:     appConfig.Auth.AdminLinkSecret,
		logger:     logger,
	}
}

// ConfirmApproveClaim godoc
// @Summary Confirmation form for crediting a claim
// @Tags AdminLinks
// @Produce html
// @Param id path string true "claim id"
// @Param token query string true "signed link token"
// @Success 200 {string} string
// @Failure 403 {string} string
// @Router /admin/links/claims/{id}/approve [get]
func (h *handler) ConfirmApproveClaim(c *gin.Context) {
	h.confirmClaim(c, adminlink.ActionApproveClaim, "Credit this deposit?", "Yes, credit")
}

// ApproveClaim godoc
// @Summary Approve a claim from a signed link
// @Description The deposit must verify on chain; links never force a credit.
// @Tags AdminLinks
// @Accept x-www-form-urlencoded
// @Produce html
// @Param id path string true "claim id"
// @Param token formData string true "signed link token"
// @Success 200 {string} string
// @Failure 403 {string} string
// @Router /admin/links/claims/{id}/approve [post]
func (h *handler) ApproveClaim(c *gin.Context) {
	claimID := c.Param("id")
	if !h.authorize(c, adminlink.ActionApproveClaim, claimID, c.PostForm("token")) {
		return
	}

	result, err := h.controller.ApproveClaim(c.Request.Context(), claimID, linkActor, controller.ApproveOptions{})
	if err != nil {
		status, message := apierr.Status(err)
		h.logger.Info("[ApproveClaim][ApproveClaim]", map[string]string{
			"claim_id": claimID,
			"error":    err.Error(),
		})
		renderResult(c, status, claimTitle, fmt.Sprintf("Claim %s was not credited: %s (%s)", claimID, message, err.Error()))
		return
	}

	renderResult(c, http.StatusOK, claimTitle,
		fmt.Sprintf("Claim %s credited: %s USDC to %s", claimID, result.Claim.ClaimedAmount, result.Claim.UserID))
}

// ConfirmRejectClaim godoc
// @Summary Confirmation form for rejecting a claim
// @Tags AdminLinks
// @Produce html
// @Param id path string true "claim id"
// @Param token query string true "signed link token"
// @Success 200 {string} string
// @Failure 403 {string} string
// @Router /admin/links/claims/{id}/reject [get]
func (h *handler) ConfirmRejectClaim(c *gin.Context) {
	h.confirmClaim(c, adminlink.ActionRejectClaim, "Reject this deposit claim?", "Yes, reject")
}

// RejectClaim godoc
// @Summary Reject a claim from a signed link
// @Tags AdminLinks
// @Accept x-www-form-urlencoded
// @Produce html
// @Param id path string true "claim id"
// @Param token formData string true "signed link token"
// @Success 200 {string} string
// @Failure 403 {string} string
// @Router /admin/links/claims/{id}/reject [post]
func (h *handler) RejectClaim(c *gin.Context) {
	claimID := c.Param("id")
	if !h.authorize(c, adminlink.ActionRejectClaim, claimID, c.PostForm("token")) {
		return
	}

	if _, err := h.controller.RejectClaim(c.Request.Context(), claimID, linkActor); err != nil {
		status, message := apierr.Status(err)
		renderResult(c, status, claimTitle, fmt.Sprintf("Claim %s was not rejected: %s", claimID, message))
		return
	}

	renderResult(c, http.StatusOK, claimTitle, fmt.Sprintf("Claim %s rejected", claimID))
}

// ConfirmProcessWithdrawal godoc
// @Summary Confirmation form for marking a withdrawal paid out
// @Tags AdminLinks
// @Produce html
// @Param id path string true "request id"
// @Param token query string true "signed link token"
// @Success 200 {string} string
// @Failure 403 {string} string
// @Router /admin/links/withdrawals/{id}/process [get]
func (h *handler) ConfirmProcessWithdrawal(c *gin.Context) {
	h.confirmWithdrawal(c, adminlink.ActionProcessWithdrawal,
		"Mark this withdrawal as processed? Send the funds before confirming.", "Yes, mark processed", true)
}

// ProcessWithdrawal godoc
// @Summary Mark a withdrawal processed from a signed link
// @Tags AdminLinks
// @Accept x-www-form-urlencoded
// @Produce html
// @Param id path string true "request id"
// @Param token formData string true "signed link token"
// @Param payout_tx_hash formData string false "payout transaction hash"
// @Success 200 {string} string
// @Failure 403 {string} string
// @Router /admin/links/withdrawals/{id}/process [post]
func (h *handler) ProcessWithdrawal(c *gin.Context) {
	requestID := c.Param("id")
	if !h.authorize(c, adminlink.ActionProcessWithdrawal, requestID, c.PostForm("token")) {
		return
	}

	processed, err := h.controller.MarkWithdrawalProcessed(c.Request.Context(), requestID, c.PostForm("payout_tx_hash"), linkActor)
	if err != nil {
		status, message := apierr.Status(err)
		h.logger.Info("[ProcessWithdrawal][MarkWithdrawalProcessed]", map[string]string{
			"request_id": requestID,
			"error":      err.Error(),
		})
		renderResult(c, status, withdrawalTitle, fmt.Sprintf("Withdrawal %s was not processed: %s", requestID, message))
		return
	}

	renderResult(c, http.StatusOK, withdrawalTitle,
		fmt.Sprintf("Withdrawal %s processed: %s USDC to %s", requestID, processed.PayoutAmount, processed.DestinationAddress))
}

// ConfirmRejectWithdrawal godoc
// @Summary Confirmation form for rejecting a withdrawal
// @Tags AdminLinks
// @Produce html
// @Param id path string true "request id"
// @Param token query string true "signed link token"
// @Success 200 {string} string
// @Failure 403 {string} string
// @Router /admin/links/withdrawals/{id}/reject [get]
func (h *handler) ConfirmRejectWithdrawal(c *gin.Context) {
	h.confirmWithdrawal(c, adminlink.ActionRejectWithdrawal,
		"Reject this withdrawal? The amount is refunded to the user.", "Yes, reject and refund", false)
}

// RejectWithdrawal godoc
// @Summary Reject and refund a withdrawal from a signed link
// @Tags AdminLinks
// @Accept x-www-form-urlencoded
// @Produce html
// @Param id path string true "request id"
// @Param token formData string true "signed link token"
// @Success 200 {string} string
// @Failure 403 {string} string
// @Router /admin/links/withdrawals/{id}/reject [post]
func (h *handler) RejectWithdrawal(c *gin.Context) {
	requestID := c.Param("id")
	if !h.authorize(c, adminlink.ActionRejectWithdrawal, requestID, c.PostForm("token")) {
		return
	}

	if _, err := h.controller.RejectWithdrawal(c.Request.Context(), requestID, linkActor); err != nil {
		status, message := apierr.Status(err)
		h.logger.Info("[RejectWithdrawal][RejectWithdrawal]", map[string]string{
			"request_id": requestID,
			"error":      err.Error(),
		})
		renderResult(c, status, withdrawalTitle, fmt.Sprintf("Withdrawal %s was not rejected: %s", requestID, message))
		return
	}

	renderResult(c, http.StatusOK, withdrawalTitle, fmt.Sprintf("Withdrawal %s rejected and refunded", requestID))
}

func (h *handler) confirmClaim(c *gin.Context, action adminlink.Action, question, confirm string) {
	claimID := c.Param("id")
	token := c.Query("token")
	if !h.authorize(c, action, claimID, token) {
		return
	}

	claim, err := h.controller.GetClaim(c.Request.Context(), claimID)
	if err != nil {
		status, message := apierr.Status(err)
		renderResult(c, status, claimTitle, fmt.Sprintf("Claim %s: %s", claimID, message))
		return
	}
	if claim.State != model.DepositStatePending {
		renderResult(c, http.StatusConflict, claimTitle, fmt.Sprintf("Claim %s is already %s", claimID, claim.State))
		return
	}

	renderPage(c, http.StatusOK, "confirm", confirmPage{
		Title:    claimTitle,
		Question: question,
		Details: []string{
			fmt.Sprintf("%s USDC on %s", claim.ClaimedAmount, claim.Network),
			"User " + claim.UserID,
			"Tx " + claim.TxHash,
		},
		Action:  c.Request.URL.Path,
		Token:   token,
		Confirm: confirm,
	})
}

func (h *handler) confirmWithdrawal(c *gin.Context, action adminlink.Action, question, confirm string, askPayoutHash bool) {
	requestID := c.Param("id")
	token := c.Query("token")
	if !h.authorize(c, action, requestID, token) {
		return
	}

	req, err := h.controller.GetWithdrawal(c.Request.Context(), requestID)
	if err != nil {
		status, message := apierr.Status(err)
		renderResult(c, status, withdrawalTitle, fmt.Sprintf("Withdrawal %s: %s", requestID, message))
		return
	}
	if req.State != model.WithdrawalStatePending {
		renderResult(c, http.StatusConflict, withdrawalTitle, fmt.Sprintf("Withdrawal %s is already %s", requestID, req.State))
		return
	}

	renderPage(c, http.StatusOK, "confirm", confirmPage{
		Title:    withdrawalTitle,
		Question: question,
		Details: []string{
			fmt.Sprintf("Pay out %s USDC on %s (requested %s, fee %s)", req.PayoutAmount, req.Network, req.Amount, req.Fee),
			"To " + req.DestinationAddress,
			"User " + req.UserID,
		},
		Action:        c.Request.URL.Path,
		Token:         token,
		Confirm:       confirm,
		AskPayoutHash: askPayoutHash,
	})
}

func (h *handler) authorize(c *gin.Context, action adminlink.Action, entityID, token string) bool {
	if err := adminlink.Verify(h.secret, token, action, entityID); err != nil {
		h.logger.Warn("[authorize] rejected admin link", map[string]string{
			"entity_id": entityID,
			"action":    string(action),
			"error":     err.Error(),
		})
		renderResult(c, http.StatusForbidden, "Link expired", "This link is invalid or has expired")
		return false
	}
	return true
}
