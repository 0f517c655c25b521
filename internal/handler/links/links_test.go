package links

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/labomba/deposit-settlement/internal/controller"
	"github.com/labomba/deposit-settlement/internal/controller/mocks"
	"github.com/labomba/deposit-settlement/internal/model"
	"github.com/labomba/deposit-settlement/internal/utils/adminlink"
	"github.com/labomba/deposit-settlement/internal/utils/config"
	"github.com/labomba/deposit-settlement/internal/utils/logger"
)

const secret = "link-secret"

func setupRouter(ctrl *mocks.Controller) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.AppConfig{Auth: config.AuthConfig{AdminLinkSecret: secret}}
	h := New(ctrl, cfg, logger.New("test"))

	r := gin.New()
	r.GET("/claims/:id/approve", h.ConfirmApproveClaim)
	r.POST("/claims/:id/approve", h.ApproveClaim)
	r.GET("/claims/:id/reject", h.ConfirmRejectClaim)
	r.POST("/claims/:id/reject", h.RejectClaim)
	r.GET("/withdrawals/:id/process", h.ConfirmProcessWithdrawal)
	r.POST("/withdrawals/:id/process", h.ProcessWithdrawal)
	r.GET("/withdrawals/:id/reject", h.ConfirmRejectWithdrawal)
	r.POST("/withdrawals/:id/reject", h.RejectWithdrawal)
	return r
}

func sign(t *testing.T, action adminlink.Action, id string, ttl time.Duration) string {
	token, err := adminlink.Sign(secret, action, id, ttl, time.Now())
	require.NoError(t, err)
	return token
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func post(r *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.ServeHTTP(w, req)
	return w
}

func pendingClaim() *model.DepositClaim {
	return &model.DepositClaim{
		ID:            "c1",
		UserID:        "u1",
		Network:       model.NetworkBase,
		ClaimedAmount: decimal.NewFromInt(25),
		TxHash:        "0xabc",
		State:         model.DepositStatePending,
	}
}

func pendingWithdrawal() *model.WithdrawalRequest {
	return &model.WithdrawalRequest{
		ID:                 "w1",
		UserID:             "u1",
		Network:            model.NetworkPolygon,
		Amount:             decimal.NewFromInt(20),
		Fee:                decimal.RequireFromString("0.5"),
		PayoutAmount:       decimal.RequireFromString("19.5"),
		DestinationAddress: "0x1111111111111111111111111111111111111111",
		State:              model.WithdrawalStatePending,
	}
}

func TestConfirmApproveClaim_RendersFormOnly(t *testing.T) {
	ctrl := new(mocks.Controller)
	ctrl.On("GetClaim", mock.Anything, "c1").Return(pendingClaim(), nil)
	token := sign(t, adminlink.ActionApproveClaim, "c1", time.Hour)

	w := get(setupRouter(ctrl), "/claims/c1/approve?token="+token)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	body := w.Body.String()
	assert.Contains(t, body, `<form method="post" action="/claims/c1/approve">`)
	assert.Contains(t, body, `name="token" value="`+token+`"`)
	assert.Contains(t, body, "25 USDC on base")
	assert.NotContains(t, body, "payout_tx_hash")
	ctrl.AssertNotCalled(t, "ApproveClaim", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmClaim_AlreadyDecided(t *testing.T) {
	ctrl := new(mocks.Controller)
	claim := pendingClaim()
	claim.State = model.DepositStateCredited
	ctrl.On("GetClaim", mock.Anything, "c1").Return(claim, nil)

	w := get(setupRouter(ctrl), "/claims/c1/reject?token="+sign(t, adminlink.ActionRejectClaim, "c1", time.Hour))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already credited")
	assert.NotContains(t, w.Body.String(), "<form")
	ctrl.AssertNotCalled(t, "RejectClaim", mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmClaim_NotFound(t *testing.T) {
	ctrl := new(mocks.Controller)
	ctrl.On("GetClaim", mock.Anything, "c1").Return(nil, errors.Wrap(controller.ErrNotFound, "deposit claim c1"))

	w := get(setupRouter(ctrl), "/claims/c1/approve?token="+sign(t, adminlink.ActionApproveClaim, "c1", time.Hour))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestApproveLink_Credits(t *testing.T) {
	ctrl := new(mocks.Controller)
	ctrl.On("ApproveClaim", mock.Anything, "c1", linkActor, controller.ApproveOptions{}).
		Return(&controller.ApprovalResult{Claim: &model.DepositClaim{ID: "c1", UserID: "u1", ClaimedAmount: decimal.NewFromInt(25)}}, nil)

	w := post(setupRouter(ctrl), "/claims/c1/approve", url.Values{"token": {sign(t, adminlink.ActionApproveClaim, "c1", time.Hour)}})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "credited: 25 USDC")
}

func TestApproveLink_RejectsBadTokens(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not-a-jwt"},
		{"other claim", sign(t, adminlink.ActionApproveClaim, "c2", time.Hour)},
		{"reject token", sign(t, adminlink.ActionRejectClaim, "c1", time.Hour)},
		{"withdrawal token", sign(t, adminlink.ActionProcessWithdrawal, "c1", time.Hour)},
		{"expired", sign(t, adminlink.ActionApproveClaim, "c1", -time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := new(mocks.Controller)
			r := setupRouter(ctrl)

			assert.Equal(t, http.StatusForbidden, get(r, "/claims/c1/approve?token="+tt.token).Code)
			assert.Equal(t, http.StatusForbidden, post(r, "/claims/c1/approve", url.Values{"token": {tt.token}}).Code)
			ctrl.AssertNotCalled(t, "GetClaim", mock.Anything, mock.Anything)
			ctrl.AssertNotCalled(t, "ApproveClaim", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestApproveLink_TokenInQueryIsNotEnoughForPost(t *testing.T) {
	ctrl := new(mocks.Controller)

	w := post(setupRouter(ctrl), "/claims/c1/approve?token="+sign(t, adminlink.ActionApproveClaim, "c1", time.Hour), url.Values{})

	assert.Equal(t, http.StatusForbidden, w.Code)
	ctrl.AssertNotCalled(t, "ApproveClaim", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApproveLink_NotVerified(t *testing.T) {
	ctrl := new(mocks.Controller)
	ctrl.On("ApproveClaim", mock.Anything, "c1", linkActor, controller.ApproveOptions{}).
		Return(&controller.ApprovalResult{}, errors.Wrap(controller.ErrNotVerified, "not_found: transaction not found"))

	w := post(setupRouter(ctrl), "/claims/c1/approve", url.Values{"token": {sign(t, adminlink.ActionApproveClaim, "c1", time.Hour)}})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "not credited")
}

func TestRejectLink(t *testing.T) {
	ctrl := new(mocks.Controller)
	ctrl.On("RejectClaim", mock.Anything, "c1", linkActor).Return(&model.DepositClaim{ID: "c1"}, nil).Once()
	ctrl.On("RejectClaim", mock.Anything, "c1", linkActor).Return(nil, errors.Wrap(controller.ErrAlreadyProcessed, "claim is rejected"))
	r := setupRouter(ctrl)
	form := url.Values{"token": {sign(t, adminlink.ActionRejectClaim, "c1", time.Hour)}}

	assert.Equal(t, http.StatusOK, post(r, "/claims/c1/reject", form).Code)
	assert.Equal(t, http.StatusConflict, post(r, "/claims/c1/reject", form).Code)
}

func TestConfirmProcessWithdrawal_RendersFormOnly(t *testing.T) {
	ctrl := new(mocks.Controller)
	ctrl.On("GetWithdrawal", mock.Anything, "w1").Return(pendingWithdrawal(), nil)
	token := sign(t, adminlink.ActionProcessWithdrawal, "w1", time.Hour)

	w := get(setupRouter(ctrl), "/withdrawals/w1/process?token="+token)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `action="/withdrawals/w1/process"`)
	assert.Contains(t, body, `name="payout_tx_hash"`)
	assert.Contains(t, body, "Pay out 19.5 USDC on polygon")
	ctrl.AssertNotCalled(t, "MarkWithdrawalProcessed", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessWithdrawalLink(t *testing.T) {
	ctrl := new(mocks.Controller)
	processed := pendingWithdrawal()
	processed.State = model.WithdrawalStateProcessed
	ctrl.On("MarkWithdrawalProcessed", mock.Anything, "w1", "0xpayout", linkActor).Return(processed, nil).Once()
	ctrl.On("MarkWithdrawalProcessed", mock.Anything, "w1", "", linkActor).
		Return(processed, errors.Wrap(controller.ErrAlreadyProcessed, "withdrawal is processed")).Once()
	r := setupRouter(ctrl)
	token := sign(t, adminlink.ActionProcessWithdrawal, "w1", time.Hour)

	w := post(r, "/withdrawals/w1/process", url.Values{"token": {token}, "payout_tx_hash": {"0xpayout"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "processed: 19.5 USDC")

	w = post(r, "/withdrawals/w1/process", url.Values{"token": {token}})
	assert.Equal(t, http.StatusConflict, w.Code)
	ctrl.AssertExpectations(t)
}

func TestConfirmRejectWithdrawal_RendersFormOnly(t *testing.T) {
	ctrl := new(mocks.Controller)
	ctrl.On("GetWithdrawal", mock.Anything, "w1").Return(pendingWithdrawal(), nil)

	w := get(setupRouter(ctrl), "/withdrawals/w1/reject?token="+sign(t, adminlink.ActionRejectWithdrawal, "w1", time.Hour))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "refunded to the user")
	ctrl.AssertNotCalled(t, "RejectWithdrawal", mock.Anything, mock.Anything, mock.Anything)
}

func TestRejectWithdrawalLink(t *testing.T) {
	ctrl := new(mocks.Controller)
	ctrl.On("RejectWithdrawal", mock.Anything, "w1", linkActor).
		Return(&model.WithdrawalRequest{ID: "w1", State: model.WithdrawalStateRejected}, errors.Wrap(controller.ErrLedgerFailed, "ledger unavailable")).Once()
	ctrl.On("RejectWithdrawal", mock.Anything, "w1", linkActor).
		Return(&model.WithdrawalRequest{ID: "w1", State: model.WithdrawalStateRejected}, nil).Once()
	r := setupRouter(ctrl)
	form := url.Values{"token": {sign(t, adminlink.ActionRejectWithdrawal, "w1", time.Hour)}}

	assert.Equal(t, http.StatusBadGateway, post(r, "/withdrawals/w1/reject", form).Code)
	assert.Equal(t, http.StatusOK, post(r, "/withdrawals/w1/reject", form).Code)

	processToken := url.Values{"token": {sign(t, adminlink.ActionProcessWithdrawal, "w1", time.Hour)}}
	assert.Equal(t, http.StatusForbidden, post(r, "/withdrawals/w1/reject", processToken).Code)
	ctrl.AssertNumberOfCalls(t, "RejectWithdrawal", 2)
}
