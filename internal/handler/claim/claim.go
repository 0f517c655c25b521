package claim

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/labomba/deposit-settlement/internal/consts"
	"github.com/labomba/deposit-settlement/internal/controller"
	"github.com/labomba/deposit-settlement/internal/handler/apierr"
	"github.com/labomba/deposit-settlement/internal/model"
	"github.com/labomba/deposit-settlement/internal/utils/logger"
	"github.com/labomba/deposit-settlement/internal/view"
)

const defaultPageSize = 50

type SubmitClaimRequest struct {
	Network string `json:"network" validate:"required,oneof=solana base polygon"`
	Amount  string `json:"amount" validate:"required,numeric"`
	TxHash  string `json:"tx_hash" validate:"required,max=128"`
}

type ListQuery struct {
	State  string `form:"state" validate:"omitempty,oneof=pending credited rejected"`
	Limit  int    `form:"limit" validate:"gte=0,lte=200"`
	Offset int    `form:"offset" validate:"gte=0"`
}

type handler struct {
	controller controller.IController
	logger     *logger.Logger
	validate   *validator.Validate
}

func New(controller controller.IController, logger *logger.Logger) IHandler {
	return &handler{
		controller: controller,
		logger:     logger,
		validate:   validator.New(),
	}
}

// Submit godoc
// @Summary Submit a deposit claim
// @Description Records a pending claim that the user sent USDC to custody
// @id submitDepositClaim
// @Tags Deposits
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body SubmitClaimRequest true "Deposit claim"
// @Success 201 {object} view.Response[model.DepositClaim]
// @Failure 400 {object} view.ErrorResponse
// @Failure 401 {object} view.ErrorResponse
// @Failure 500 {object} view.ErrorResponse
// @Router /deposits/claims [post]
func (h *handler) Submit(c *gin.Context) {
	var req SubmitClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Info("[Submit][ShouldBindJSON]", map[string]string{"error": err.Error()})
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid request"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid request"))
		return
	}

	network, err := model.ParseNetwork(req.Network)
	if err != nil {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid request"))
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid amount"))
		return
	}

	claim, err := h.controller.SubmitClaim(c.Request.Context(), c.GetString(consts.ContextKeyUserID), network, amount, req.TxHash)
	if err != nil {
		apierr.Respond(c, h.logger, "[Submit][SubmitClaim]", err, nil)
		return
	}

	c.JSON(http.StatusCreated, view.CreateResponse[any](claim, nil, nil, "claim submitted"))
}

// ListMine godoc
// @Summary List my deposit claims
// @Tags Deposits
// @Produce json
// @Security BearerAuth
// @Param state query string false "pending, credited or rejected"
// @Param limit query int false "page size"
// @Param offset query int false "page offset"
// @Success 200 {object} view.Response[[]model.DepositClaim]
// @Failure 400 {object} view.ErrorResponse
// @Router /deposits/claims [get]
func (h *handler) ListMine(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, q, "invalid query"))
		return
	}
	if err := h.validate.Struct(q); err != nil {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, q, "invalid query"))
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultPageSize
	}

	claims, total, err := h.controller.ListClaims(c.Request.Context(), model.DepositClaimFilter{
		UserID: c.GetString(consts.ContextKeyUserID),
		State:  model.DepositState(q.State),
		Limit:  q.Limit,
		Offset: q.Offset,
	})
	if err != nil {
		apierr.Respond(c, h.logger, "[ListMine][ListClaims]", err, nil)
		return
	}

	c.JSON(http.StatusOK, view.CreatePaginatedResponse(claims, total, q.Limit, q.Offset))
}

// GetMine godoc
// @Summary Get one of my deposit claims
// @Tags Deposits
// @Produce json
// @Security BearerAuth
// @Param id path string true "claim id"
// @Success 200 {object} view.Response[model.DepositClaim]
// @Failure 404 {object} view.ErrorResponse
// @Router /deposits/claims/{id} [get]
func (h *handler) GetMine(c *gin.Context) {
	claim, err := h.controller.GetClaim(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierr.Respond(c, h.logger, "[GetMine][GetClaim]", err, nil)
		return
	}
	// other users' claims are reported as missing
	if claim.UserID != c.GetString(consts.ContextKeyUserID) {
		c.JSON(http.StatusNotFound, view.CreateResponse[any](nil, controller.ErrNotFound, nil, "not found"))
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any](claim, nil, nil, ""))
}
