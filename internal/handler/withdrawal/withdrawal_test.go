package withdrawal

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/labomba/deposit-settlement/internal/consts"
	"github.com/labomba/deposit-settlement/internal/controller"
	"github.com/labomba/deposit-settlement/internal/controller/mocks"
	"github.com/labomba/deposit-settlement/internal/model"
	"github.com/labomba/deposit-settlement/internal/utils/logger"
)

const (
	testUserID  = "user-1"
	destination = "0x1111111111111111111111111111111111111111"
)

func setupRouter(ctrl *mocks.Controller) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(ctrl, logger.New("test"))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(consts.ContextKeyUserID, testUserID)
		c.Next()
	})
	r.POST("/withdrawals", h.Request)
	r.GET("/withdrawals", h.ListMine)
	r.GET("/withdrawals/:id", h.GetMine)
	return r
}

func post(r *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/withdrawals", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func amountOf(v int64) interface{} {
	return mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(decimal.NewFromInt(v)) })
}

func TestRequest_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"created", nil, http.StatusCreated},
		{"below minimum", errors.Wrap(controller.ErrBelowMinimum, "minimum is 10"), http.StatusUnprocessableEntity},
		{"insufficient balance", controller.ErrInsufficientBalance, http.StatusUnprocessableEntity},
		{"pending exists", controller.ErrPendingRequestExists, http.StatusConflict},
		{"ledger failure", errors.Wrap(controller.ErrLedgerFailed, "debit timed out"), http.StatusBadGateway},
		{"bad destination", errors.Wrap(controller.ErrInvalidFormat, "destination"), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := new(mocks.Controller)
			var out *model.WithdrawalRequest
			if tt.err == nil {
				out = &model.WithdrawalRequest{ID: "w1", UserID: testUserID}
			}
			ctrl.On("RequestWithdrawal", mock.Anything, testUserID, amountOf(20), model.NetworkPolygon, destination).Return(out, tt.err)

			w := post(setupRouter(ctrl), `{"amount":"20","network":"polygon","destination_address":"`+destination+`"}`)

			assert.Equal(t, tt.status, w.Code)
			ctrl.AssertExpectations(t)
		})
	}
}

func TestRequest_InvalidBody(t *testing.T) {
	ctrl := new(mocks.Controller)

	w := post(setupRouter(ctrl), `{"amount":"-","network":"polygon"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "destination_address")
	ctrl.AssertNotCalled(t, "RequestWithdrawal")
}

func TestListMine(t *testing.T) {
	ctrl := new(mocks.Controller)
	ctrl.On("ListWithdrawals", mock.Anything, model.WithdrawalFilter{UserID: testUserID, Limit: 10, Offset: 20}).
		Return([]*model.WithdrawalRequest{{ID: "w1"}}, int64(21), nil)

	w := httptest.NewRecorder()
	setupRouter(ctrl).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/withdrawals?limit=10&offset=20", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":21`)
}

func TestGetMine_OtherUser(t *testing.T) {
	ctrl := new(mocks.Controller)
	ctrl.On("GetWithdrawal", mock.Anything, "w2").Return(&model.WithdrawalRequest{ID: "w2", UserID: "user-2"}, nil)

	w := httptest.NewRecorder()
	setupRouter(ctrl).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/withdrawals/w2", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}
