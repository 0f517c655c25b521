package apierr

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/labomba/deposit-settlement/internal/controller"
	"github.com/labomba/deposit-settlement/internal/model"
	"github.com/labomba/deposit-settlement/internal/utils/logger"
	"github.com/labomba/deposit-settlement/internal/view"
)

// Status maps a controller error to an HTTP status and a client-facing message.
func Status(err error) (int, string) {
	switch {
	case errors.Is(err, controller.ErrInvalidFormat), errors.Is(err, model.ErrUnsupportedNetwork):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, controller.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, controller.ErrAlreadyProcessed):
		return http.StatusConflict, "already processed"
	case errors.Is(err, controller.ErrPendingRequestExists):
		return http.StatusConflict, "a withdrawal request is already pending"
	case errors.Is(err, controller.ErrBelowMinimum), errors.Is(err, controller.ErrAboveMaximum):
		return http.StatusUnprocessableEntity, "amount out of range"
	case errors.Is(err, controller.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, "insufficient balance"
	case errors.Is(err, controller.ErrNotVerified):
		return http.StatusUnprocessableEntity, "deposit is not verified on chain"
	case errors.Is(err, controller.ErrLedgerFailed):
		return http.StatusBadGateway, "ledger operation failed"
	}
	return http.StatusInternalServerError, "internal error"
}

// Respond logs err under tag and writes the mapped error response. data is
// echoed in the body when the caller has partial results to show.
func Respond(c *gin.Context, log *logger.Logger, tag string, err error, data any) {
	status, message := Status(err)
	fields := map[string]string{
		"error":  err.Error(),
		"status": http.StatusText(status),
	}
	if status >= http.StatusInternalServerError {
		log.Error(tag, fields)
	} else {
		log.Info(tag, fields)
	}
	c.JSON(status, view.CreateResponse[any](data, err, nil, message))
}
