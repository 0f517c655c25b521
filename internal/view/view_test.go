package view

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	TxHash  string `json:"tx_hash" validate:"required"`
	Network string `json:"network,omitempty" validate:"required,oneof=solana base polygon"`
}

func TestCreateResponse_Success(t *testing.T) {
	resp := CreateResponse[any]("ok", nil, nil, "done")

	assert.Equal(t, "ok", resp.Data)
	assert.Equal(t, "done", resp.Message)
	assert.Empty(t, resp.Error)
	assert.Nil(t, resp.Errors)
}

func TestCreateResponse_PlainError(t *testing.T) {
	resp := CreateResponse[any](nil, errors.New("boom"), nil, "failed")

	assert.Nil(t, resp.Data)
	assert.Equal(t, "boom", resp.Error)
	assert.Equal(t, "failed", resp.Message)
}

func TestCreateResponse_ValidationErrorsUseJSONNames(t *testing.T) {
	req := sampleRequest{Network: "bitcoin"}
	err := validator.New().Struct(req)
	require.Error(t, err)

	resp := CreateResponse[any](nil, err, req, "invalid request")

	assert.Equal(t, "validation failed", resp.Error)
	assert.ElementsMatch(t, []FieldError{
		{Field: "tx_hash", Rule: "required"},
		{Field: "network", Rule: "oneof"},
	}, resp.Errors)
}

func TestCreateResponse_ValidationWithoutPayload(t *testing.T) {
	err := validator.New().Struct(sampleRequest{Network: "base"})
	require.Error(t, err)

	resp := CreateResponse[any](nil, err, nil, "")

	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "TxHash", resp.Errors[0].Field)
}

func TestCreatePaginatedResponse(t *testing.T) {
	resp := CreatePaginatedResponse([]string{"a"}, 12, 1, 3)

	require.NotNil(t, resp.Paging)
	assert.Equal(t, int64(12), resp.Paging.Total)
	assert.Equal(t, 1, resp.Paging.Limit)
	assert.Equal(t, 3, resp.Paging.Offset)
}
