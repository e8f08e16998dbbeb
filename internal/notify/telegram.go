package notify

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"sniperctl/internal/config"
	"sniperctl/internal/models"
)

// TelegramNotifier шлёт события сделок через Bot API.
// Сбои доставки только логируются: уведомления не должны влиять
// на цикл опроса
type TelegramNotifier struct {
	botToken string
	chatID   string
	client   *http.Client
}

// NewTelegramNotifier создаёт нотификатор из конфигурации
func NewTelegramNotifier(cfg config.TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *TelegramNotifier) Notify(event models.Event) {
	msg := n.format(event)
	if msg == "" {
		return
	}
	if err := n.sendMessage(msg); err != nil {
		log.Printf("telegram: failed to deliver notification: %v", err)
	}
}

func (n *TelegramNotifier) format(event models.Event) string {
	trade := event.Trade
	switch event.Type {
	case models.EventTradeOpened:
		if trade == nil {
			return "📈 <b>Позиция открыта</b>"
		}
		msg := "📈 <b>Позиция открыта</b>\n\n"
		msg += fmt.Sprintf("Пара: <b>%s</b>\n", trade.Symbol)
		msg += fmt.Sprintf("Вход: <code>$%.4f</code>\n", trade.EntryPrice)
		if trade.InvestedValue > 0 {
			msg += fmt.Sprintf("Объём: <code>$%.2f</code>", trade.InvestedValue)
		}
		return msg
	case models.EventTradeClosedWin:
		return closeMessage("✅", trade)
	case models.EventTradeClosedLoss:
		return closeMessage("❌", trade)
	}
	return ""
}

func closeMessage(emoji string, trade *models.Trade) string {
	if trade == nil {
		return fmt.Sprintf("%s <b>Позиция закрыта</b>", emoji)
	}
	msg := fmt.Sprintf("%s <b>Позиция закрыта</b>\n\n", emoji)
	msg += fmt.Sprintf("Пара: <b>%s</b>\n", trade.Symbol)
	msg += fmt.Sprintf("PnL: <b>%+.2f USDT (%+.2f%%)</b>", trade.ProfitUsd, trade.ProfitPct)
	return msg
}

func (n *TelegramNotifier) sendMessage(message string) error {
	apiURL := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.botToken)

	data := url.Values{}
	data.Set("chat_id", n.chatID)
	data.Set("text", message)
	data.Set("parse_mode", "HTML")
	data.Set("disable_web_page_preview", "true")

	resp, err := n.client.PostForm(apiURL, data)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram API returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
