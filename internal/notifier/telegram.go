package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/labomba/deposit-settlement/internal/utils/config"
	"github.com/labomba/deposit-settlement/internal/utils/logger"
)

const telegramAPI = "https://api.telegram.org"

// Telegram sends admin alerts to a single chat.
type Telegram struct {
	http   *resty.Client
	token  string
	chatID string
	logger *logger.Logger
}

type telegramMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func NewTelegram(cfg config.TelegramConfig, logger *logger.Logger) *Telegram {
	return &Telegram{
		http:   resty.New().SetBaseURL(telegramAPI).SetTimeout(10 * time.Second),
		token:  cfg.BotToken,
		chatID: cfg.AdminChatID,
		logger: logger,
	}
}

func (t *Telegram) Notify(ctx context.Context, event Event) error {
	text := formatAdminMessage(event)
	if text == "" {
		return nil
	}

	resp, err := t.http.R().
		SetContext(ctx).
		SetBody(telegramMessage{
			ChatID:                t.chatID,
			Text:                  text,
			ParseMode:             "HTML",
			DisableWebPagePreview: true,
		}).
		Post(fmt.Sprintf("/bot%s/sendMessage", t.token))
	if err != nil {
		return errors.Wrap(err, "telegram sendMessage")
	}

	var result telegramResponse
	_ = json.Unmarshal(resp.Body(), &result)
	if resp.IsError() || !result.OK {
		t.logger.Error("[Telegram][Notify] sendMessage rejected", map[string]string{
			"kind":        string(event.Kind),
			"status":      resp.Status(),
			"description": result.Description,
		})
		return errors.Errorf("telegram sendMessage: %s %s", resp.Status(), result.Description)
	}
	return nil
}

func formatAdminMessage(e Event) string {
	var b strings.Builder
	switch e.Kind {
	case EventClaimSubmitted:
		fmt.Fprintf(&b, "<b>New deposit claim</b>\n")
		fmt.Fprintf(&b, "User: <code>%s</code>\nNetwork: %s\nDeclared: %s USDC\nTx: <code>%s</code>\n",
			html.EscapeString(e.UserID), e.Network, e.Amount.String(), html.EscapeString(e.TxHash))
		writeLink(&b, "Explorer", e.ExplorerURL)
	case EventClaimReview:
		writeReview(&b, e)
	case EventWithdrawalRequested:
		fmt.Fprintf(&b, "<b>New withdrawal request</b> <code>%s</code>\n", html.EscapeString(e.EntityID))
		fmt.Fprintf(&b, "User: <code>%s</code>\nNetwork: %s\nAmount: %s USDC\n",
			html.EscapeString(e.UserID), e.Network, e.Amount.String())
		if e.PayoutAmount != nil {
			fmt.Fprintf(&b, "Pay out: %s USDC\n", e.PayoutAmount.String())
		}
		fmt.Fprintf(&b, "To: <code>%s</code>\n", html.EscapeString(e.Destination))
		writeLink(&b, "Mark processed", e.ApproveURL)
		writeLink(&b, "Reject and refund", e.RejectURL)
	default:
		return ""
	}
	return b.String()
}

func writeReview(b *strings.Builder, e Event) {
	fmt.Fprintf(b, "<b>Deposit claim review</b> <code>%s</code>\n", html.EscapeString(e.EntityID))
	fmt.Fprintf(b, "User: <code>%s</code>\nNetwork: %s\nDeclared: %s USDC\n",
		html.EscapeString(e.UserID), e.Network, e.Amount.String())

	v := e.Verdict
	switch {
	case v == nil:
		b.WriteString("Verdict: unavailable\n")
	case v.ErrorCode != "":
		fmt.Fprintf(b, "Verdict: %s (%s)\n", v.ErrorCode, html.EscapeString(v.ErrorReason))
	case !v.Confirmed:
		b.WriteString("Verdict: transaction failed on chain\n")
	case v.DestinationMatchesCustodyAddress && v.DetectedAmount != nil:
		fmt.Fprintf(b, "Verdict: received %s USDC at custody\n", v.DetectedAmount.String())
		if !v.DetectedAmount.Equal(e.Amount) {
			b.WriteString("Amount differs from the declared amount\n")
		}
	case v.NoAssetTransfer:
		b.WriteString("Verdict: no USDC transfer in this transaction\n")
	default:
		fmt.Fprintf(b, "Verdict: USDC sent to <code>%s</code>, not custody\n", html.EscapeString(v.ObservedWrongDestination))
	}

	if e.PriorCredits > 0 {
		fmt.Fprintf(b, "Warning: this transaction already credited %d claim(s)\n", e.PriorCredits)
	}
	writeLink(b, "Explorer", e.ExplorerURL)
	writeLink(b, "Approve", e.ApproveURL)
	writeLink(b, "Reject", e.RejectURL)
}

func writeLink(b *strings.Builder, label, url string) {
	if url == "" {
		return
	}
	fmt.Fprintf(b, "<a href=\"%s\">%s</a>\n", html.EscapeString(url), label)
}
