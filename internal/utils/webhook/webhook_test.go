package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/labomba/deposit-settlement/internal/utils/logger"
)

func TestClient_CallUptimeWebhook(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(logger.New("test"))
	c.CallUptimeWebhook(context.Background(), server.URL)
	c.CallUptimeWebhook(context.Background(), "")

	assert.Equal(t, int32(1), hits.Load())
}

func TestClient_CallUptimeWebhook_ErrorsAreSwallowed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	server.Close()

	assert.NotPanics(t, func() {
		New(logger.New("test")).CallUptimeWebhook(context.Background(), server.URL)
	})
}
