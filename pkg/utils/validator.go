package utils

import (
	"fmt"
	"regexp"
	"strings"
)

// Клиентские предпроверки. Нарушение любой из них - ValidationError
// ДО сетевого вызова: сервер дублирует эти же правила, но гонять
// заведомо невалидный запрос по сети незачем

var (
	symbolRe = regexp.MustCompile(`^[A-Z0-9]{2,10}/[A-Z0-9]{2,10}$`)
	emailRe  = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)
	lowerRe  = regexp.MustCompile(`[a-z]`)
	upperRe  = regexp.MustCompile(`[A-Z]`)
	digitRe  = regexp.MustCompile(`[0-9]`)
)

// ValidateSymbol проверяет формат торговой пары (BTC/USDT)
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol is empty")
	}
	if !symbolRe.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %q (expected BASE/QUOTE)", symbol)
	}
	return nil
}

// ValidatePasswordStrength повторяет серверное правило: минимум 8 символов,
// строчная и заглавная буквы, цифра
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password too short (min 8)")
	}
	if !lowerRe.MatchString(password) {
		return fmt.Errorf("password needs a lowercase letter")
	}
	if !upperRe.MatchString(password) {
		return fmt.Errorf("password needs an uppercase letter")
	}
	if !digitRe.MatchString(password) {
		return fmt.Errorf("password needs a digit")
	}
	return nil
}

// ValidateEmail - базовая проверка формата email
func ValidateEmail(email string) error {
	if !emailRe.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidateRiskPct проверяет процент риска на сделку
func ValidateRiskPct(pct int) error {
	if pct < 1 || pct > 100 {
		return fmt.Errorf("risk percentage must be between 1 and 100, got %d", pct)
	}
	return nil
}

// DeleteConfirmPhrase возвращает фразу, которую пользователь обязан
// ввести для удаления аккаунта
func DeleteConfirmPhrase(username string) string {
	return "DELETE " + strings.ToUpper(username)
}

// ValidateConfirmPhrase сверяет введённую фразу подтверждения удаления.
// Сравнение регистронезависимое, как на сервере
func ValidateConfirmPhrase(phrase, username string) error {
	if strings.ToUpper(strings.TrimSpace(phrase)) != DeleteConfirmPhrase(username) {
		return fmt.Errorf("confirmation phrase mismatch (expected %q)", DeleteConfirmPhrase(username))
	}
	return nil
}

// ValidateBacktestDays проверяет горизонт backtest-симуляции
func ValidateBacktestDays(days int) error {
	if days < 1 || days > 365 {
		return fmt.Errorf("backtest period must be between 1 and 365 days, got %d", days)
	}
	return nil
}
