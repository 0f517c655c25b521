package apierr

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labomba/deposit-settlement/internal/controller"
	"github.com/labomba/deposit-settlement/internal/model"
	"github.com/labomba/deposit-settlement/internal/utils/logger"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid format", errors.Wrap(controller.ErrInvalidFormat, "bad hash"), http.StatusBadRequest},
		{"unsupported network", model.ErrUnsupportedNetwork, http.StatusBadRequest},
		{"not found", errors.Wrap(controller.ErrNotFound, "claim"), http.StatusNotFound},
		{"already processed", errors.Wrap(controller.ErrAlreadyProcessed, "claim is credited"), http.StatusConflict},
		{"pending exists", controller.ErrPendingRequestExists, http.StatusConflict},
		{"below minimum", controller.ErrBelowMinimum, http.StatusUnprocessableEntity},
		{"above maximum", controller.ErrAboveMaximum, http.StatusUnprocessableEntity},
		{"insufficient balance", controller.ErrInsufficientBalance, http.StatusUnprocessableEntity},
		{"not verified", errors.Wrap(controller.ErrNotVerified, "not_found"), http.StatusUnprocessableEntity},
		{"ledger", errors.Wrap(controller.ErrLedgerFailed, "timeout"), http.StatusBadGateway},
		{"unknown", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := Status(tt.err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRespond(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Respond(c, logger.New("test"), "[Test]", errors.Wrap(controller.ErrAlreadyProcessed, "claim is rejected"), gin.H{"id": "c1"})

	assert.Equal(t, http.StatusConflict, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "already processed", body["message"])
	assert.Contains(t, body["error"], "claim is rejected")
	assert.Equal(t, map[string]any{"id": "c1"}, body["data"])
}
