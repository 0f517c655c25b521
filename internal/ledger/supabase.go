package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/labomba/deposit-settlement/internal/utils/config"
	"github.com/labomba/deposit-settlement/internal/utils/logger"
)

const (
	rpcCredit  = "ledger_credit"
	rpcDebit   = "ledger_debit"
	rpcRefund  = "ledger_refund"
	rpcBalance = "ledger_balance"

	codeInsufficientBalance = "insufficient_balance"
	codeUserNotFound        = "user_not_found"
	codeDebitNotFound       = "debit_not_found"
)

// SupabaseLedger calls ledger functions exposed through PostgREST
// (/rest/v1/rpc/<fn>) with the service role key.
type SupabaseLedger struct {
	http   *resty.Client
	logger *logger.Logger
}

type entryPayload struct {
	IdempotencyKey string          `json:"p_idempotency_key"`
	UserID         string          `json:"p_user_id"`
	Amount         decimal.Decimal `json:"p_amount"`
	Network        string          `json:"p_network"`
	Memo           string          `json:"p_memo,omitempty"`
	Reverses       string          `json:"p_reverses,omitempty"`
}

type entryResult struct {
	Reference string `json:"reference"`
}

type rpcError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint"`
}

func NewSupabase(cfg config.LedgerConfig, timeout time.Duration, logger *logger.Logger) *SupabaseLedger {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("apikey", cfg.ServiceKey).
		SetAuthToken(cfg.ServiceKey).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	return &SupabaseLedger{
		http:   client,
		logger: logger,
	}
}

func (l *SupabaseLedger) Credit(ctx context.Context, entry Entry) (string, error) {
	return l.apply(ctx, rpcCredit, entry)
}

func (l *SupabaseLedger) Debit(ctx context.Context, entry Entry) (string, error) {
	return l.apply(ctx, rpcDebit, entry)
}

func (l *SupabaseLedger) Refund(ctx context.Context, entry Entry) (string, error) {
	if entry.Reverses == "" {
		return "", errors.New("refund requires the debit key it reverses")
	}
	return l.apply(ctx, rpcRefund, entry)
}

func (l *SupabaseLedger) apply(ctx context.Context, fn string, entry Entry) (string, error) {
	if entry.IdempotencyKey == "" {
		return "", errors.New("ledger entry requires an idempotency key")
	}
	if !entry.Amount.IsPositive() {
		return "", errors.Errorf("ledger amount must be positive, got %s", entry.Amount)
	}

	body, err := l.rpc(ctx, fn, entryPayload{
		IdempotencyKey: entry.IdempotencyKey,
		UserID:         entry.UserID,
		Amount:         entry.Amount,
		Network:        entry.Network.String(),
		Memo:           entry.Memo,
		Reverses:       entry.Reverses,
	})
	if err != nil {
		return "", err
	}

	var result entryResult
	if err := json.Unmarshal(body, &result); err != nil {
		return "", errors.Wrapf(err, "decode %s response", fn)
	}

	l.logger.Info("[SupabaseLedger] entry applied", map[string]string{
		"fn":        fn,
		"key":       entry.IdempotencyKey,
		"user_id":   entry.UserID,
		"amount":    entry.Amount.String(),
		"reference": result.Reference,
	})
	return result.Reference, nil
}

func (l *SupabaseLedger) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	body, err := l.rpc(ctx, rpcBalance, map[string]string{"p_user_id": userID})
	if err != nil {
		return decimal.Zero, err
	}

	var balance decimal.NullDecimal
	if err := json.Unmarshal(body, &balance); err != nil {
		return decimal.Zero, errors.Wrap(err, "decode balance")
	}
	if !balance.Valid {
		return decimal.Zero, ErrUserNotFound
	}
	return balance.Decimal, nil
}

func (l *SupabaseLedger) UserEmail(ctx context.Context, userID string) (string, error) {
	resp, err := l.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"select": "email",
			"id":     "eq." + userID,
		}).
		Get("/rest/v1/profiles")
	if err != nil {
		return "", errors.Wrap(ErrUnavailable, err.Error())
	}
	if resp.IsError() {
		return "", l.statusError("profiles", resp)
	}

	var rows []struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return "", errors.Wrap(err, "decode profile")
	}
	if len(rows) == 0 || rows[0].Email == "" {
		return "", ErrUserNotFound
	}
	return rows[0].Email, nil
}

func (l *SupabaseLedger) rpc(ctx context.Context, fn string, payload interface{}) ([]byte, error) {
	resp, err := l.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post(fmt.Sprintf("/rest/v1/rpc/%s", fn))
	if err != nil {
		l.logger.Error("[SupabaseLedger][rpc]", map[string]string{
			"fn":    fn,
			"error": err.Error(),
		})
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	}
	if resp.IsError() {
		return nil, l.statusError(fn, resp)
	}
	return resp.Body(), nil
}

func (l *SupabaseLedger) statusError(fn string, resp *resty.Response) error {
	var rerr rpcError
	_ = json.Unmarshal(resp.Body(), &rerr)

	switch {
	case strings.Contains(rerr.Message, codeInsufficientBalance) || rerr.Hint == codeInsufficientBalance:
		return ErrInsufficientBalance
	case strings.Contains(rerr.Message, codeUserNotFound) || rerr.Hint == codeUserNotFound:
		return ErrUserNotFound
	case strings.Contains(rerr.Message, codeDebitNotFound) || rerr.Hint == codeDebitNotFound:
		return ErrDebitNotFound
	}

	l.logger.Error("[SupabaseLedger] unexpected status", map[string]string{
		"fn":          fn,
		"status_code": strconv.Itoa(resp.StatusCode()),
		"body":        string(resp.Body()),
	})
	if resp.StatusCode() >= http.StatusInternalServerError {
		return errors.Wrapf(ErrUnavailable, "%s returned %d", fn, resp.StatusCode())
	}
	return errors.Errorf("%s returned %d: %s", fn, resp.StatusCode(), rerr.Message)
}
