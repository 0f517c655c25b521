package withdrawal

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

type WithdrawalRequest struct {
	Amount             string `json:"amount" validate:"required,numeric"`
	Network            string `json:"network" validate:"required,oneof=solana base polygon"`
	DestinationAddress string `json:"destination_address" validate:"required,max=128"`
}

type ListQuery struct {
	State  string `form:"state" validate:"omitempty,oneof=pending processed rejected"`
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

// Request godoc
// @Summary Request a withdrawal
// @Description Debits the balance and queues a payout for an administrator
// @id requestWithdrawal
// @Tags Withdrawals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body WithdrawalRequest true "Withdrawal request"
// @Success 201 {object} view.Response[model.WithdrawalRequest]
// @Failure 400 {object} view.ErrorResponse
// @Failure 409 {object} view.ErrorResponse
// @Failure 422 {object} view.ErrorResponse
// @Failure 502 {object} view.ErrorResponse
// @Router /withdrawals [post]
func (h *handler) Request(c *gin.Context) {
	var req WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Info("[Request][ShouldBindJSON]", map[string]string{"error": err.Error()})
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

	withdrawal, err := h.controller.RequestWithdrawal(c.Request.Context(), c.GetString(consts.ContextKeyUserID), amount, network, req.DestinationAddress)
	if err != nil {
		apierr.Respond(c, h.logger, "[Request][RequestWithdrawal]", err, nil)
		return
	}

	c.JSON(http.StatusCreated, view.CreateResponse[any](withdrawal, nil, nil, "withdrawal requested"))
}

// ListMine godoc
// @Summary List my withdrawal requests
// @Tags Withdrawals
// @Produce json
// @Security BearerAuth
// @Param state query string false "pending, processed or rejected"
// @Param limit query int false "page size"
// @Param offset query int false "page offset"
// @Success 200 {object} view.Response[[]model.WithdrawalRequest]
// @Failure 400 {object} view.ErrorResponse
// @Router /withdrawals [get]
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

	reqs, total, err := h.controller.ListWithdrawals(c.Request.Context(), model.WithdrawalFilter{
		UserID: c.GetString(consts.ContextKeyUserID),
		State:  model.WithdrawalState(q.State),
		Limit:  q.Limit,
		Offset: q.Offset,
	})
	if err != nil {
		apierr.Respond(c, h.logger, "[ListMine][ListWithdrawals]", err, nil)
		return
	}

	c.JSON(http.StatusOK, view.CreatePaginatedResponse(reqs, total, q.Limit, q.Offset))
}

// GetMine godoc
// @Summary Get one of my withdrawal requests
// @Tags Withdrawals
// @Produce json
// @Security BearerAuth
// @Param id path string true "request id"
// @Success 200 {object} view.Response[model.WithdrawalRequest]
// @Failure 404 {object} view.ErrorResponse
// @Router /withdrawals/{id} [get]
func (h *handler) GetMine(c *gin.Context) {
	req, err := h.controller.GetWithdrawal(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierr.Respond(c, h.logger, "[GetMine][GetWithdrawal]", err, nil)
		return
	}
	if req.UserID != c.GetString(consts.ContextKeyUserID) {
		c.JSON(http.StatusNotFound, view.CreateResponse[any](nil, controller.ErrNotFound, nil, "not found"))
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any](req, nil, nil, ""))
}
