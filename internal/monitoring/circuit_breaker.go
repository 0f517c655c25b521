package monitoring

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sony/gobreaker"

	"github.com/labomba/deposit-settlement/internal/chain"
	"github.com/labomba/deposit-settlement/internal/model"
	"github.com/labomba/deposit-settlement/internal/utils/logger"
)

// CircuitBreakerAdapter wraps a chain adapter's RPC calls with a circuit
// breaker, a hard timeout and metrics. Format checks bypass the breaker.
type CircuitBreakerAdapter struct {
	wrapped        chain.IAdapter
	name           string
	circuitBreaker *gobreaker.CircuitBreaker
	metrics        *ExternalAPIMetrics
	logger         *logger.Logger
	timeoutConfig  TimeoutConfig
}

func NewCircuitBreakerAdapter(wrapped chain.IAdapter, config CircuitBreakerConfig, metrics *ExternalAPIMetrics, logger *logger.Logger) *CircuitBreakerAdapter {
	return NewCircuitBreakerAdapterWithTimeout(wrapped, config, DefaultTimeoutConfig, metrics, logger)
}

func NewCircuitBreakerAdapterWithTimeout(wrapped chain.IAdapter, config CircuitBreakerConfig, timeoutConfig TimeoutConfig, metrics *ExternalAPIMetrics, logger *logger.Logger) *CircuitBreakerAdapter {
	name := wrapped.Network().String() + "_rpc"
	if err := validateCircuitBreakerConfig(config); err != nil {
		logger.Error("[NewCircuitBreakerAdapter] invalid config, using defaults", map[string]string{
			"service": name,
			"error":   err.Error(),
		})
		config = CircuitBreakerConfigs[model.NetworkBase]
	}

	cb := &CircuitBreakerAdapter{
		wrapped:       wrapped,
		name:          name,
		metrics:       metrics,
		logger:        logger,
		timeoutConfig: timeoutConfig,
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(config.ConsecutiveFailureThreshold)
		},
		IsSuccessful: func(err error) bool {
			return !isUnreachable(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state change", map[string]string{
				"service": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			metrics.UpdateCircuitBreakerState(name, to)
		},
	}

	cb.circuitBreaker = gobreaker.NewCircuitBreaker(settings)
	metrics.UpdateCircuitBreakerState(name, gobreaker.StateClosed)
	return cb
}

// isUnreachable reports whether err means the node could not be reached.
// Missing transactions and undecodable payloads are answers, not outages.
func isUnreachable(err error) bool {
	if err == nil {
		return false
	}
	var fe *chain.FetchError
	if errors.As(err, &fe) {
		return fe.Kind == chain.FetchRPCUnreachable
	}
	return classifyError(err) != ErrorTypeUnknown
}

// executeWithTimeout runs fn under a deadline and records call metrics. The
// deadline is enforced even if fn ignores its context.
func (cb *CircuitBreakerAdapter) executeWithTimeout(ctx context.Context, operation string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	start := time.Now()

	timeout := cb.timeoutConfig.RequestTimeout
	if operation == "health_check" {
		timeout = cb.timeoutConfig.HealthCheckTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result interface{}
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		result, err := fn(ctx)
		done <- outcome{result: result, err: err}
	}()

	select {
	case o := <-done:
		duration := time.Since(start).Seconds()
		status := "success"
		if o.err != nil {
			status = "error"
			cb.logError(operation, duration, o.err)
		}
		cb.metrics.RecordAPICall(cb.name, operation, status, duration)
		return o.result, o.err

	case <-ctx.Done():
		cb.metrics.RecordTimeout(cb.name, operation)
		cb.logError(operation, time.Since(start).Seconds(), ctx.Err())
		return nil, chain.NewFetchError(chain.FetchRPCUnreachable, cb.wrapped.Network(), fmt.Errorf("timeout: %v", ctx.Err()))
	}
}

func (cb *CircuitBreakerAdapter) Network() model.Network { return cb.wrapped.Network() }
func (cb *CircuitBreakerAdapter) AssetID() string        { return cb.wrapped.AssetID() }

func (cb *CircuitBreakerAdapter) ValidateTxHash(txHash string) error {
	return cb.wrapped.ValidateTxHash(txHash)
}

func (cb *CircuitBreakerAdapter) ValidateAddress(address string) error {
	return cb.wrapped.ValidateAddress(address)
}

func (cb *CircuitBreakerAdapter) NormalizeAddress(address string) string {
	return cb.wrapped.NormalizeAddress(address)
}

func (cb *CircuitBreakerAdapter) Fetch(ctx context.Context, txHash string) (chain.Receipt, error) {
	if err := cb.wrapped.ValidateTxHash(txHash); err != nil {
		return nil, chain.NewFetchError(chain.FetchMalformedHash, cb.wrapped.Network(), err)
	}

	result, err := cb.circuitBreaker.Execute(func() (interface{}, error) {
		return cb.executeWithTimeout(ctx, "fetch", func(ctx context.Context) (interface{}, error) {
			return cb.wrapped.Fetch(ctx, txHash)
		})
	})
	if err != nil {
		return nil, cb.toFetchError(err)
	}

	return result.(chain.Receipt), nil
}

func (cb *CircuitBreakerAdapter) Extract(ctx context.Context, receipt chain.Receipt, asset string) ([]chain.Transfer, error) {
	result, err := cb.circuitBreaker.Execute(func() (interface{}, error) {
		return cb.executeWithTimeout(ctx, "extract", func(ctx context.Context) (interface{}, error) {
			return cb.wrapped.Extract(ctx, receipt, asset)
		})
	})
	if err != nil {
		if isBreakerRejection(err) {
			return nil, cb.toFetchError(err)
		}
		return nil, err
	}

	return result.([]chain.Transfer), nil
}

func (cb *CircuitBreakerAdapter) HealthCheck(ctx context.Context) error {
	_, err := cb.executeWithTimeout(ctx, "health_check", func(ctx context.Context) (interface{}, error) {
		return nil, cb.wrapped.HealthCheck(ctx)
	})
	return err
}

// State exposes the breaker state for health reporting.
func (cb *CircuitBreakerAdapter) State() gobreaker.State {
	return cb.circuitBreaker.State()
}

func (cb *CircuitBreakerAdapter) toFetchError(err error) error {
	var fe *chain.FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return chain.NewFetchError(chain.FetchRPCUnreachable, cb.wrapped.Network(), err)
}

func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func (cb *CircuitBreakerAdapter) logError(operation string, duration float64, err error) {
	cb.logger.Error("External API call failed", map[string]string{
		"service":    cb.name,
		"operation":  operation,
		"duration":   strconv.FormatFloat(duration, 'f', 3, 64),
		"error":      err.Error(),
		"error_type": string(classifyError(err)),
		"cb_state":   cb.circuitBreaker.State().String(),
	})
}

// classifyError classifies errors into different types for metrics and logging
func classifyError(err error) APIErrorType {
	if err == nil {
		return ""
	}

	errMsg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errMsg, "timeout"),
		strings.Contains(errMsg, "deadline exceeded"),
		strings.Contains(errMsg, "context canceled"):
		return ErrorTypeTimeout
	case strings.Contains(errMsg, "network"),
		strings.Contains(errMsg, "connection"),
		strings.Contains(errMsg, "unreachable"),
		strings.Contains(errMsg, "dns"):
		return ErrorTypeNetworkError
	case strings.Contains(errMsg, "500"),
		strings.Contains(errMsg, "502"),
		strings.Contains(errMsg, "503"),
		strings.Contains(errMsg, "504"),
		strings.Contains(errMsg, "internal server error"),
		strings.Contains(errMsg, "bad gateway"),
		strings.Contains(errMsg, "service unavailable"):
		return ErrorTypeServerError
	case strings.Contains(errMsg, "429"),
		strings.Contains(errMsg, "rate limit"),
		strings.Contains(errMsg, "unauthorized"),
		strings.Contains(errMsg, "forbidden"):
		return ErrorTypeClientError
	}

	return ErrorTypeUnknown
}

func validateCircuitBreakerConfig(config CircuitBreakerConfig) error {
	if config.MaxRequests == 0 {
		return fmt.Errorf("max_requests must be greater than 0")
	}
	if config.ConsecutiveFailureThreshold <= 0 {
		return fmt.Errorf("consecutive_failure_threshold must be greater than 0")
	}
	if config.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}
	if config.Interval < 0 {
		return fmt.Errorf("interval must be non-negative")
	}
	return nil
}
