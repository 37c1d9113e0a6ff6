// Package notify is a thin, optional outbound notifier for
// TradeOutcome snapshots. The Manager's actual outbound channel is
// unspecified transport (spec.md §9); this is one pluggable
// implementation of it, grounded on the teacher's Telegram bot
// (internal/bot/telegram.go), not a requirement the core depends on.
package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/praxis-trading/core/internal/domain"
)

// TelegramNotifier pushes a formatted message per TradeOutcome to a
// single configured chat. It never blocks command processing on
// delivery failure — Notify logs and returns the error, the caller
// decides whether that's fatal.
type TelegramNotifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier dials the Telegram Bot API with token and binds
// delivery to chatID.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramNotifier{api: api, chatID: chatID}, nil
}

// Notify renders a TradeOutcome as a Markdown message and sends it.
func (n *TelegramNotifier) Notify(ctx context.Context, outcome *domain.TradeOutcome) error {
	emoji := statusEmoji(outcome.Status)
	reason := ""
	if outcome.Reason != nil {
		reason = fmt.Sprintf("\n*Reason:* %s", escapeMarkdown(*outcome.Reason))
	}
	avgPrice := "—"
	if outcome.AvgFillPrice != nil {
		avgPrice = outcome.AvgFillPrice.String()
	}

	text := fmt.Sprintf(`%s *Trade %s*

*Command:* %s
*Trade:* %s
*Filled:* %s / %s
*Avg Price:* %s
*Slices:* %d/%d%s`,
		emoji, outcome.Status,
		outcome.CommandID,
		outcome.TradeID,
		outcome.FilledQty.String(), outcome.TargetQty.String(),
		avgPrice,
		outcome.SlicesCompleted, outcome.SlicesTotal,
		reason,
	)

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = "Markdown"
	msg.DisableWebPagePreview = true

	if _, err := n.api.Send(msg); err != nil {
		zerolog.Ctx(ctx).Warn().
			Str("command_id", outcome.CommandID).
			Err(err).
			Msg("trade outcome notification failed")
		return fmt.Errorf("send telegram notification: %w", err)
	}
	return nil
}

func statusEmoji(status domain.TradeStatus) string {
	switch status {
	case domain.TradeStatusFilled:
		return "✅"
	case domain.TradeStatusRejected, domain.TradeStatusExpired:
		return "❌"
	case domain.TradeStatusCanceled:
		return "🚫"
	case domain.TradeStatusPartial, domain.TradeStatusPaused:
		return "⏳"
	default:
		return "ℹ️"
	}
}

func escapeMarkdown(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '_', '*', '[', ']', '`':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
