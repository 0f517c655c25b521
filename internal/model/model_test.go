package model

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNetwork(t *testing.T) {
	n, err := ParseNetwork(" Base ")
	require.NoError(t, err)
	assert.Equal(t, NetworkBase, n)

	n, err = ParseNetwork("solana")
	require.NoError(t, err)
	assert.Equal(t, NetworkSolana, n)

	_, err = ParseNetwork("ethereum")
	assert.True(t, errors.Is(err, ErrUnsupportedNetwork))
}

func TestDepositState_CanTransitionTo(t *testing.T) {
	assert.True(t, DepositStatePending.CanTransitionTo(DepositStateCredited))
	assert.True(t, DepositStatePending.CanTransitionTo(DepositStateRejected))
	assert.False(t, DepositStatePending.CanTransitionTo(DepositStatePending))

	for _, from := range []DepositState{DepositStateCredited, DepositStateRejected} {
		for _, to := range []DepositState{DepositStatePending, DepositStateCredited, DepositStateRejected} {
			assert.False(t, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
		assert.True(t, from.Terminal())
	}
	assert.False(t, DepositStatePending.Terminal())
}

func TestWithdrawalState_CanTransitionTo(t *testing.T) {
	assert.True(t, WithdrawalStatePending.CanTransitionTo(WithdrawalStateProcessed))
	assert.True(t, WithdrawalStatePending.CanTransitionTo(WithdrawalStateRejected))
	assert.False(t, WithdrawalStateProcessed.CanTransitionTo(WithdrawalStateRejected))
	assert.False(t, WithdrawalStateRejected.CanTransitionTo(WithdrawalStatePending))
}

func TestDepositClaim_BeforeCreate(t *testing.T) {
	c := &DepositClaim{UserID: "u1"}
	require.NoError(t, c.BeforeCreate(nil))
	assert.Len(t, c.ID, 36)
	assert.Equal(t, DepositStatePending, c.State)

	now := time.Now()
	c.State = DepositStateCredited
	assert.True(t, c.LedgerGap())
	c.LedgerAppliedAt = &now
	assert.False(t, c.LedgerGap())
}

func TestWithdrawalRequest_BeforeCreate(t *testing.T) {
	w := &WithdrawalRequest{UserID: "u1"}
	require.NoError(t, w.BeforeCreate(nil))
	require.NotNil(t, w.PendingUserID)
	assert.Equal(t, "u1", *w.PendingUserID)
	assert.Equal(t, WithdrawalStatePending, w.State)
}

func TestVerificationVerdict_Creditable(t *testing.T) {
	amount := decimal.NewFromInt(25)
	v := VerificationVerdict{
		TransactionFound:                 true,
		Confirmed:                        true,
		DestinationMatchesCustodyAddress: true,
		DetectedAmount:                   &amount,
	}
	assert.True(t, v.Final())
	assert.True(t, v.Creditable())

	v.DestinationMatchesCustodyAddress = false
	assert.False(t, v.Creditable())

	v.Confirmed = false
	assert.False(t, v.Final())
}
