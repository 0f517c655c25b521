package notifier

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/labomba/deposit-settlement/internal/utils/config"
	"github.com/labomba/deposit-settlement/internal/utils/logger"
)

const resendAPI = "https://api.resend.com"

// Email sends user-facing receipts through Resend.
type Email struct {
	http   *resty.Client
	from   string
	lookup EmailLookup
	logger *logger.Logger
}

type resendEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func NewEmail(cfg config.EmailConfig, lookup EmailLookup, logger *logger.Logger) *Email {
	return &Email{
		http: resty.New().
			SetBaseURL(resendAPI).
			SetAuthToken(cfg.ResendAPIKey).
			SetTimeout(10 * time.Second),
		from:   cfg.From,
		lookup: lookup,
		logger: logger,
	}
}

func (e *Email) Notify(ctx context.Context, event Event) error {
	subject, body := formatUserEmail(event)
	if subject == "" {
		return nil
	}

	to, err := e.lookup.UserEmail(ctx, event.UserID)
	if err != nil {
		return errors.Wrapf(err, "lookup email for %s", event.UserID)
	}

	resp, err := e.http.R().
		SetContext(ctx).
		SetBody(resendEmail{
			From:    e.from,
			To:      []string{to},
			Subject: subject,
			HTML:    body,
		}).
		Post("/emails")
	if err != nil {
		return errors.Wrap(err, "resend send")
	}
	if resp.IsError() {
		e.logger.Error("[Email][Notify] resend rejected", map[string]string{
			"kind":   string(event.Kind),
			"status": resp.Status(),
			"body":   string(resp.Body()),
		})
		return errors.Errorf("resend send: %s", resp.Status())
	}
	return nil
}

func formatUserEmail(event Event) (string, string) {
	switch event.Kind {
	case EventClaimCredited:
		return "Your deposit was credited",
			fmt.Sprintf("<p>Your %s USDC deposit on %s was credited to your balance.</p>%s",
				event.Amount.String(), event.Network, explorerParagraph(event.ExplorerURL))
	case EventWithdrawalProcessed:
		amount := event.Amount
		if event.PayoutAmount != nil {
			amount = *event.PayoutAmount
		}
		return "Your withdrawal was sent",
			fmt.Sprintf("<p>We sent %s USDC on %s to <code>%s</code>.</p>%s",
				amount.String(), event.Network, html.EscapeString(event.Destination), explorerParagraph(event.ExplorerURL))
	}
	return "", ""
}

func explorerParagraph(url string) string {
	if url == "" {
		return ""
	}
	return fmt.Sprintf(`<p><a href="%s">View transaction</a></p>`, html.EscapeString(url))
}
