package mocks

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/labomba/deposit-settlement/internal/controller"
	"github.com/labomba/deposit-settlement/internal/model"
)

// Controller is a testify mock of controller.IController for handler tests.
type Controller struct {
	mock.Mock
}

var _ controller.IController = (*Controller)(nil)

func (m *Controller) SubmitClaim(ctx context.Context, userID string, network model.Network, amount decimal.Decimal, txHash string) (*model.DepositClaim, error) {
	args := m.Called(ctx, userID, network, amount, txHash)
	return claimArg(args, 0), args.Error(1)
}

func (m *Controller) VerifyClaim(ctx context.Context, claimID string) (*controller.ClaimReview, error) {
	args := m.Called(ctx, claimID)
	review, _ := args.Get(0).(*controller.ClaimReview)
	return review, args.Error(1)
}

func (m *Controller) VerifyAndNotify(ctx context.Context, claimID string) (*controller.ClaimReview, error) {
	args := m.Called(ctx, claimID)
	review, _ := args.Get(0).(*controller.ClaimReview)
	return review, args.Error(1)
}

func (m *Controller) ApproveClaim(ctx context.Context, claimID, adminID string, opts controller.ApproveOptions) (*controller.ApprovalResult, error) {
	args := m.Called(ctx, claimID, adminID, opts)
	result, _ := args.Get(0).(*controller.ApprovalResult)
	return result, args.Error(1)
}

func (m *Controller) RejectClaim(ctx context.Context, claimID, adminID string) (*model.DepositClaim, error) {
	args := m.Called(ctx, claimID, adminID)
	return claimArg(args, 0), args.Error(1)
}

func (m *Controller) GetClaim(ctx context.Context, claimID string) (*model.DepositClaim, error) {
	args := m.Called(ctx, claimID)
	return claimArg(args, 0), args.Error(1)
}

func (m *Controller) ListClaims(ctx context.Context, filter model.DepositClaimFilter) ([]*model.DepositClaim, int64, error) {
	args := m.Called(ctx, filter)
	claims, _ := args.Get(0).([]*model.DepositClaim)
	return claims, args.Get(1).(int64), args.Error(2)
}

func (m *Controller) RequestWithdrawal(ctx context.Context, userID string, amount decimal.Decimal, network model.Network, destination string) (*model.WithdrawalRequest, error) {
	args := m.Called(ctx, userID, amount, network, destination)
	return withdrawalArg(args, 0), args.Error(1)
}

func (m *Controller) MarkWithdrawalProcessed(ctx context.Context, requestID, payoutTxHash, adminID string) (*model.WithdrawalRequest, error) {
	args := m.Called(ctx, requestID, payoutTxHash, adminID)
	return withdrawalArg(args, 0), args.Error(1)
}

func (m *Controller) RejectWithdrawal(ctx context.Context, requestID, adminID string) (*model.WithdrawalRequest, error) {
	args := m.Called(ctx, requestID, adminID)
	return withdrawalArg(args, 0), args.Error(1)
}

func (m *Controller) GetWithdrawal(ctx context.Context, requestID string) (*model.WithdrawalRequest, error) {
	args := m.Called(ctx, requestID)
	return withdrawalArg(args, 0), args.Error(1)
}

func (m *Controller) ListWithdrawals(ctx context.Context, filter model.WithdrawalFilter) ([]*model.WithdrawalRequest, int64, error) {
	args := m.Called(ctx, filter)
	reqs, _ := args.Get(0).([]*model.WithdrawalRequest)
	return reqs, args.Get(1).(int64), args.Error(2)
}

func (m *Controller) Wait(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func claimArg(args mock.Arguments, i int) *model.DepositClaim {
	claim, _ := args.Get(i).(*model.DepositClaim)
	return claim
}

func withdrawalArg(args mock.Arguments, i int) *model.WithdrawalRequest {
	req, _ := args.Get(i).(*model.WithdrawalRequest)
	return req
}
