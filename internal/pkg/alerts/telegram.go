package alerts

import (
	"fmt"
	"html"
	"net/http"
	"sort"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var severityIcons = map[Severity]string{
	SeverityInfo:     "ℹ️",
	SeverityWarning:  "⚠️",
	SeverityCritical: "🚨",
}

var kindTitles = map[Kind]string{
	KindSelectorExhausted: "Selector exhausted",
	KindRestriction:       "Restriction detected",
	KindQuotaReached:      "Daily quota reached",
	KindCycleFailed:       "Cycle failed",
	KindStoreDegraded:     "Store degraded",
}

// Telegram delivers events to the operator's chat, HTML formatted.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{
		Timeout: 15 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing telegram bot: %w", err)
	}

	return &Telegram{bot: bot, chatID: chatID}, nil
}

func (t *Telegram) Notify(ev Event) error {
	msg := tgbotapi.NewMessage(t.chatID, formatHTML(ev))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	_, err := t.bot.Send(msg)
	return err
}

func formatHTML(ev Event) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s <b>%s</b>\n", severityIcons[ev.Severity], kindTitles[ev.Kind])
	if ev.Message != "" {
		fmt.Fprintf(&b, "%s\n", html.EscapeString(ev.Message))
	}

	for _, k := range sortedFieldKeys(ev.Fields) {
		fmt.Fprintf(&b, "<b>%s</b>: %s\n", html.EscapeString(k), html.EscapeString(ev.Fields[k]))
	}

	return strings.TrimRight(b.String(), "\n")
}

func sortedFieldKeys(fields map[string]string) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}
