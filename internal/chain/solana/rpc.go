package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/labomba/deposit-settlement/internal/utils/logger"
)

var errRPCUnavailable = errors.New("solana rpc unavailable")

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// RPCError is an error object returned by the node. It is not retried.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcClient struct {
	http       *resty.Client
	endpoint   string
	logger     *logger.Logger
	maxRetries int
	backoff    time.Duration
	nextID     atomic.Uint64
}

func newRPCClient(endpoint string, logger *logger.Logger) *rpcClient {
	return &rpcClient{
		http:       resty.New().SetHeader("Content-Type", "application/json"),
		endpoint:   endpoint,
		logger:     logger,
		maxRetries: 3,
		backoff:    time.Second,
	}
}

// call posts a JSON-RPC request and decodes result into out. Rate limits,
// 5xx responses and transport errors are retried with a linear backoff.
func (c *rpcClient) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return errors.Wrap(errRPCUnavailable, ctx.Err().Error())
			case <-time.After(time.Duration(attempt-1) * c.backoff):
			}
		}

		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(req).
			Post(c.endpoint)
		if err != nil {
			lastErr = errors.Wrapf(errRPCUnavailable, "%s: %v", method, err)
			c.logger.Error("[solana.call][Post]", map[string]string{
				"method":  method,
				"error":   err.Error(),
				"attempt": strconv.Itoa(attempt),
			})
			if ctx.Err() != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
			lastErr = errors.Wrapf(errRPCUnavailable, "%s: status code %d", method, status)
			c.logger.Error("[solana.call] retryable status", map[string]string{
				"method":     method,
				"statusCode": strconv.Itoa(status),
				"attempt":    strconv.Itoa(attempt),
			})
			continue
		}
		if status != http.StatusOK {
			return errors.Wrapf(errRPCUnavailable, "%s: status code %d: %s", method, status, resp.String())
		}

		var body rpcResponse
		if err := json.Unmarshal(resp.Body(), &body); err != nil {
			return errors.Wrapf(err, "decode %s response", method)
		}
		if body.Error != nil {
			return body.Error
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(body.Result, out); err != nil {
			return errors.Wrapf(err, "decode %s result", method)
		}
		return nil
	}

	return lastErr
}
