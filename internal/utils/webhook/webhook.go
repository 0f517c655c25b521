package webhook

import (
	"context"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/labomba/deposit-settlement/internal/utils/logger"
)

// Client pings uptime monitors after background jobs complete.
type Client struct {
	http   *resty.Client
	logger *logger.Logger
}

func New(logger *logger.Logger) *Client {
	return &Client{
		http:   resty.New().SetTimeout(10 * time.Second),
		logger: logger,
	}
}

// CallUptimeWebhook makes a GET request to webhookURL. Failures are logged only.
func (c *Client) CallUptimeWebhook(ctx context.Context, webhookURL string) {
	if webhookURL == "" {
		return
	}

	resp, err := c.http.R().SetContext(ctx).Get(webhookURL)
	if err != nil {
		c.logger.Error("[CallUptimeWebhook][Get]", map[string]string{
			"url":   webhookURL,
			"error": err.Error(),
		})
		return
	}
	if resp.IsError() {
		c.logger.Error("[CallUptimeWebhook] unexpected status", map[string]string{
			"url":         webhookURL,
			"status_code": strconv.Itoa(resp.StatusCode()),
		})
		return
	}

	c.logger.Debug("[CallUptimeWebhook] ok", map[string]string{
		"url":         webhookURL,
		"status_code": strconv.Itoa(resp.StatusCode()),
	})
}
