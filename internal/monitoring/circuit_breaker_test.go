package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/labomba/deposit-settlement/internal/chain"
	"github.com/labomba/deposit-settlement/internal/model"
	"github.com/labomba/deposit-settlement/internal/utils/logger"
)

const testHash = "0x8f2c1d4e5a6b7c8d9e0f1a2b3c4d5e6f708192a3b4c5d6e7f8091a2b3c4d5e6f"

type MockAdapter struct {
	mock.Mock
	delay time.Duration
}

func (m *MockAdapter) Network() model.Network { return model.NetworkBase }
func (m *MockAdapter) AssetID() string        { return "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913" }

func (m *MockAdapter) ValidateTxHash(txHash string) error {
	if len(txHash) != 66 {
		return chain.ErrInvalidTxHash
	}
	return nil
}

func (m *MockAdapter) ValidateAddress(string) error           { return nil }
func (m *MockAdapter) NormalizeAddress(address string) string { return address }

func (m *MockAdapter) Fetch(ctx context.Context, txHash string) (chain.Receipt, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	args := m.Called(ctx, txHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(chain.Receipt), args.Error(1)
}

func (m *MockAdapter) Extract(ctx context.Context, receipt chain.Receipt, asset string) ([]chain.Transfer, error) {
	args := m.Called(ctx, receipt, asset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]chain.Transfer), args.Error(1)
}

func (m *MockAdapter) HealthCheck(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type stubReceipt struct{}

func (stubReceipt) Network() model.Network { return model.NetworkBase }
func (stubReceipt) TxHash() string         { return testHash }
func (stubReceipt) Confirmed() bool        { return true }

func setupTestLogger() *logger.Logger {
	return logger.New("test")
}

func testBreakerConfig(threshold int) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxRequests:                 1,
		Interval:                    30 * time.Second,
		Timeout:                     60 * time.Second,
		ConsecutiveFailureThreshold: threshold,
	}
}

func getLabelValue(labels []*dto.LabelPair, name string) string {
	for _, l := range labels {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

func gatherGauge(t *testing.T, registry *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestCircuitBreaker_InitialState(t *testing.T) {
	metrics := NewExternalAPIMetrics()
	registry := prometheus.NewRegistry()
	metrics.MustRegister(registry)

	cb := NewCircuitBreakerAdapter(&MockAdapter{}, testBreakerConfig(3), metrics, setupTestLogger())

	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.Equal(t, float64(gobreaker.StateClosed), gatherGauge(t, registry, "settlement_circuit_breaker_state"))
	assert.Equal(t, model.NetworkBase, cb.Network())
}

func TestCircuitBreaker_OpensOnUnreachable(t *testing.T) {
	metrics := NewExternalAPIMetrics()
	registry := prometheus.NewRegistry()
	metrics.MustRegister(registry)

	adapter := &MockAdapter{}
	adapter.On("Fetch", mock.Anything, testHash).
		Return(nil, chain.NewFetchError(chain.FetchRPCUnreachable, model.NetworkBase, errors.New("connection refused")))

	cb := NewCircuitBreakerAdapter(adapter, testBreakerConfig(3), metrics, setupTestLogger())

	for i := 0; i < 3; i++ {
		_, err := cb.Fetch(context.Background(), testHash)
		assert.Equal(t, chain.FetchRPCUnreachable, chain.FetchErrorKindOf(err))
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())
	assert.Equal(t, float64(gobreaker.StateOpen), gatherGauge(t, registry, "settlement_circuit_breaker_state"))

	// open breaker rejects without calling the node
	_, err := cb.Fetch(context.Background(), testHash)
	assert.Equal(t, chain.FetchRPCUnreachable, chain.FetchErrorKindOf(err))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	adapter.AssertNumberOfCalls(t, "Fetch", 3)

	families, err := registry.Gather()
	require.NoError(t, err)
	errorCountFound := false
	for _, mf := range families {
		if mf.GetName() != "settlement_external_api_calls_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if getLabelValue(metric.GetLabel(), "status") == "error" {
				errorCountFound = true
				assert.Equal(t, float64(3), metric.GetCounter().GetValue())
			}
		}
	}
	assert.True(t, errorCountFound)
}

func TestCircuitBreaker_NotFoundDoesNotTrip(t *testing.T) {
	adapter := &MockAdapter{}
	adapter.On("Fetch", mock.Anything, testHash).
		Return(nil, chain.NewFetchError(chain.FetchNotFound, model.NetworkBase, nil))

	cb := NewCircuitBreakerAdapter(adapter, testBreakerConfig(2), NewExternalAPIMetrics(), setupTestLogger())

	for i := 0; i < 5; i++ {
		_, err := cb.Fetch(context.Background(), testHash)
		assert.Equal(t, chain.FetchNotFound, chain.FetchErrorKindOf(err))
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_MalformedHashBypassesBreaker(t *testing.T) {
	adapter := &MockAdapter{}
	cb := NewCircuitBreakerAdapter(adapter, testBreakerConfig(1), NewExternalAPIMetrics(), setupTestLogger())

	_, err := cb.Fetch(context.Background(), "0x1234")
	assert.Equal(t, chain.FetchMalformedHash, chain.FetchErrorKindOf(err))
	adapter.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_Timeout(t *testing.T) {
	metrics := NewExternalAPIMetrics()
	registry := prometheus.NewRegistry()
	metrics.MustRegister(registry)

	adapter := &MockAdapter{delay: 200 * time.Millisecond}
	adapter.On("Fetch", mock.Anything, testHash).Return(stubReceipt{}, nil)

	cb := NewCircuitBreakerAdapterWithTimeout(adapter, testBreakerConfig(3), TimeoutConfig{
		RequestTimeout:     20 * time.Millisecond,
		HealthCheckTimeout: 20 * time.Millisecond,
	}, metrics, setupTestLogger())

	_, err := cb.Fetch(context.Background(), testHash)
	assert.Equal(t, chain.FetchRPCUnreachable, chain.FetchErrorKindOf(err))
	assert.Contains(t, err.Error(), "timeout")
}

func TestCircuitBreaker_SuccessfulExtract(t *testing.T) {
	adapter := &MockAdapter{}
	transfers := []chain.Transfer{{To: "0xabc"}}
	adapter.On("Fetch", mock.Anything, testHash).Return(stubReceipt{}, nil)
	adapter.On("Extract", mock.Anything, stubReceipt{}, adapter.AssetID()).Return(transfers, nil)

	cb := NewCircuitBreakerAdapter(adapter, testBreakerConfig(3), NewExternalAPIMetrics(), setupTestLogger())

	r, err := cb.Fetch(context.Background(), testHash)
	require.NoError(t, err)
	got, err := cb.Extract(context.Background(), r, cb.AssetID())
	require.NoError(t, err)
	assert.Equal(t, transfers, got)
}

func TestCircuitBreaker_ExtractDecodeErrorPassesThrough(t *testing.T) {
	adapter := &MockAdapter{}
	decodeErr := errors.New("unpack transfer data")
	adapter.On("Extract", mock.Anything, mock.Anything, mock.Anything).Return(nil, decodeErr)

	cb := NewCircuitBreakerAdapter(adapter, testBreakerConfig(1), NewExternalAPIMetrics(), setupTestLogger())

	_, err := cb.Extract(context.Background(), stubReceipt{}, cb.AssetID())
	assert.Equal(t, decodeErr, err)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_InvalidConfigFallsBack(t *testing.T) {
	cb := NewCircuitBreakerAdapter(&MockAdapter{}, CircuitBreakerConfig{}, NewExternalAPIMetrics(), setupTestLogger())
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedType APIErrorType
	}{
		{name: "timeout", err: errors.New("request timeout after 5s"), expectedType: ErrorTypeTimeout},
		{name: "deadline", err: context.DeadlineExceeded, expectedType: ErrorTypeTimeout},
		{name: "network", err: errors.New("network unreachable"), expectedType: ErrorTypeNetworkError},
		{name: "server", err: errors.New("status code 503"), expectedType: ErrorTypeServerError},
		{name: "rate limited", err: errors.New("status code 429"), expectedType: ErrorTypeClientError},
		{name: "unknown", err: errors.New("unexpected error occurred"), expectedType: ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedType, classifyError(tt.err))
		})
	}
	assert.Equal(t, APIErrorType(""), classifyError(nil))
}

func TestValidateCircuitBreakerConfig(t *testing.T) {
	assert.NoError(t, validateCircuitBreakerConfig(testBreakerConfig(1)))
	assert.Error(t, validateCircuitBreakerConfig(CircuitBreakerConfig{ConsecutiveFailureThreshold: 1}))
	assert.Error(t, validateCircuitBreakerConfig(CircuitBreakerConfig{MaxRequests: 1}))
	assert.Error(t, validateCircuitBreakerConfig(CircuitBreakerConfig{MaxRequests: 1, ConsecutiveFailureThreshold: 1, Timeout: -1}))
}
