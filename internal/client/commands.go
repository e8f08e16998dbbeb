package client

import (
	"context"
	"fmt"

	"sniperctl/internal/models"
)

// Одноразовые команды управления ботом. Клиентские предпроверки живут
// в command.Dispatcher; здесь только wire-вызовы

// Start запускает автоторговлю
func (c *Client) Start(ctx context.Context) error {
	_, err := c.command(ctx, "start", "/start", nil)
	return err
}

// Stop останавливает автоторговлю
func (c *Client) Stop(ctx context.Context) error {
	_, err := c.command(ctx, "stop", "/stop", nil)
	return err
}

// ManualTrade отправляет ручной ордер. side: BUY или SELL
func (c *Client) ManualTrade(ctx context.Context, side string) error {
	_, err := c.command(ctx, "manual_trade", "/manual_trade", map[string]string{"side": side})
	return err
}

// SetSymbol переключает торгуемую пару
func (c *Client) SetSymbol(ctx context.Context, symbol string) error {
	_, err := c.command(ctx, "set_symbol", "/set_symbol", map[string]string{"symbol": symbol})
	return err
}

// SwitchMode переключает окружение (testnet=true - симулятор).
// Возвращает баланс нового окружения, полученный ОТ СЕРВЕРА: клиент
// его не пересчитывает
func (c *Client) SwitchMode(ctx context.Context, testnet bool) (float64, string, error) {
	cr, err := c.command(ctx, "switch_mode", "/switch_mode", map[string]bool{"testnet": testnet})
	if err != nil {
		return 0, "", err
	}
	if cr.NewBalance == nil {
		return 0, cr.Message, &models.CommandRejectedError{
			Command: "switch_mode",
			Message: "server did not return the new balance",
		}
	}
	return *cr.NewBalance, cr.Message, nil
}

// SetRiskConfig проталкивает процент риска на сделку
func (c *Client) SetRiskConfig(ctx context.Context, pct int) error {
	_, err := c.command(ctx, "config", "/config", map[string]int{"risk_percentage": pct})
	return err
}

// Reset сбрасывает paper-банк. Возвращает новый баланс
func (c *Client) Reset(ctx context.Context) (float64, string, error) {
	cr, err := c.command(ctx, "reset", "/reset", nil)
	if err != nil {
		return 0, "", err
	}
	balance := 0.0
	if cr.NewBalance != nil {
		balance = *cr.NewBalance
	}
	return balance, cr.Message, nil
}

// Liquidate закрывает текущую позицию по рынку
func (c *Client) Liquidate(ctx context.Context) error {
	_, err := c.command(ctx, "liquidate", "/liquidate", nil)
	return err
}

// Panic экстренно продаёт всё
func (c *Client) Panic(ctx context.Context) error {
	_, err := c.command(ctx, "panic", "/panic", nil)
	return err
}

// TestTelegram отправляет тестовое сообщение в настроенный Telegram
func (c *Client) TestTelegram(ctx context.Context) (string, error) {
	cr, err := c.command(ctx, "test_telegram", "/test_telegram", nil)
	if err != nil {
		return "", err
	}
	return cr.Message, nil
}

// Logout уведомляет сервер о завершении сессии (best effort)
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.command(ctx, "logout", "/logout", nil)
	if err != nil {
		return fmt.Errorf("logout notification failed: %w", err)
	}
	return nil
}
