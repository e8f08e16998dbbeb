package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config содержит всю конфигурацию демона.
//
// Базовые значения читаются из YAML файла (если указан), переменные
// окружения имеют приоритет над файлом
type Config struct {
	API      APIConfig      `yaml:"api"`
	Poll     PollConfig     `yaml:"poll"`
	Immunity ImmunityConfig `yaml:"immunity"`
	Cache    CacheConfig    `yaml:"cache"`
	Server   ServerConfig   `yaml:"server"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// APIConfig - настройки подключения к backend сервису бота
type APIConfig struct {
	BaseURL string `yaml:"base_url"`

	// Учётные данные для bootstrap-логина, используются только когда
	// в локальном кэше нет валидного токена
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Таймаут одного HTTP запроса
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Token Bucket лимит исходящих запросов
	RateLimit      float64 `yaml:"rate_limit"`
	RateLimitBurst float64 `yaml:"rate_limit_burst"`

	// Дефолтный процент риска, проталкивается в /config при старте
	DefaultRiskPct int `yaml:"default_risk_pct"`
}

// PollConfig - интервалы опроса
type PollConfig struct {
	// MarketInterval - пауза между тиками опроса /market.
	// Следующий тик планируется ПОСЛЕ завершения предыдущего
	MarketInterval time.Duration `yaml:"market_interval"`

	// JobInterval - период тикера опроса /backtest/status
	JobInterval time.Duration `yaml:"job_interval"`
}

// ImmunityConfig - длительности окон иммунитета по видам команд.
// Пока окно активно, свежий снапшот не перетирает поля, которые
// команда должна изменить (защита от визуального "отскока")
type ImmunityConfig struct {
	Toggle      time.Duration `yaml:"toggle"`      // start/stop -> флаг running
	Symbol      time.Duration `yaml:"symbol"`      // set_symbol -> символ
	ManualOrder time.Duration `yaml:"manual"`      // manual_trade -> позиция
	Environment time.Duration `yaml:"environment"` // switch_mode -> балансы
	Risk        time.Duration `yaml:"risk"`        // config -> риск
}

// CacheConfig - локальный durable кэш (последний снапшот + токен сессии)
type CacheConfig struct {
	// Driver: "sqlite" (встроенный, по умолчанию) или "postgres"
	Driver string `yaml:"driver"`

	// DSN: путь к файлу для sqlite, строка подключения для postgres
	DSN string `yaml:"dsn"`

	// Secret - секрет шифрования токена на диске (обязателен)
	Secret string `yaml:"secret"`
}

// ServerConfig - локальный HTTP/WebSocket сервер для UI-клиентов
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// TelegramConfig - опциональные уведомления о событиях сделок
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// Load загружает конфигурацию: YAML файл (опционально) + переменные
// окружения поверх + валидация
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "http://127.0.0.1:5000",
			RequestTimeout: 10 * time.Second,
			RateLimit:      10,
			RateLimitBurst: 20,
			DefaultRiskPct: 10,
		},
		Poll: PollConfig{
			MarketInterval: 2 * time.Second,
			JobInterval:    1 * time.Second,
		},
		Immunity: ImmunityConfig{
			Toggle:      5 * time.Second,
			Symbol:      2 * time.Second,
			ManualOrder: 1500 * time.Millisecond,
			Environment: 2 * time.Second,
			Risk:        2 * time.Second,
		},
		Cache: CacheConfig{
			Driver: "sqlite",
			DSN:    "sniperctl.db",
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8844,
		},
	}
}

func (c *Config) applyEnv() {
	c.API.BaseURL = getEnv("SNIPER_API_URL", c.API.BaseURL)
	c.API.Username = getEnv("SNIPER_USERNAME", c.API.Username)
	c.API.Password = getEnv("SNIPER_PASSWORD", c.API.Password)
	c.API.RequestTimeout = getEnvAsDuration("SNIPER_REQUEST_TIMEOUT", c.API.RequestTimeout)
	c.API.RateLimit = getEnvAsFloat("SNIPER_RATE_LIMIT", c.API.RateLimit)
	c.API.RateLimitBurst = getEnvAsFloat("SNIPER_RATE_LIMIT_BURST", c.API.RateLimitBurst)
	c.API.DefaultRiskPct = getEnvAsInt("SNIPER_DEFAULT_RISK_PCT", c.API.DefaultRiskPct)

	c.Poll.MarketInterval = getEnvAsDuration("SNIPER_MARKET_INTERVAL", c.Poll.MarketInterval)
	c.Poll.JobInterval = getEnvAsDuration("SNIPER_JOB_INTERVAL", c.Poll.JobInterval)

	c.Cache.Driver = getEnv("SNIPER_CACHE_DRIVER", c.Cache.Driver)
	c.Cache.DSN = getEnv("SNIPER_CACHE_DSN", c.Cache.DSN)
	c.Cache.Secret = getEnv("SNIPER_CACHE_SECRET", c.Cache.Secret)

	c.Server.Host = getEnv("SNIPER_SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsInt("SNIPER_SERVER_PORT", c.Server.Port)

	c.Telegram.Enabled = getEnvAsBool("SNIPER_TELEGRAM_ENABLED", c.Telegram.Enabled)
	c.Telegram.BotToken = getEnv("SNIPER_TELEGRAM_TOKEN", c.Telegram.BotToken)
	c.Telegram.ChatID = getEnv("SNIPER_TELEGRAM_CHAT_ID", c.Telegram.ChatID)
}

func (c *Config) validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("SNIPER_API_URL is required")
	}

	if c.Cache.Secret == "" {
		return fmt.Errorf("SNIPER_CACHE_SECRET is required for encrypting the session token at rest")
	}
	if len(c.Cache.Secret) < 16 {
		return fmt.Errorf("SNIPER_CACHE_SECRET must be at least 16 characters")
	}

	switch c.Cache.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("SNIPER_CACHE_DRIVER must be sqlite or postgres, got %q", c.Cache.Driver)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SNIPER_SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Poll.MarketInterval <= 0 {
		return fmt.Errorf("SNIPER_MARKET_INTERVAL must be positive, got %v", c.Poll.MarketInterval)
	}
	if c.Poll.JobInterval <= 0 {
		return fmt.Errorf("SNIPER_JOB_INTERVAL must be positive, got %v", c.Poll.JobInterval)
	}

	if c.API.DefaultRiskPct < 1 || c.API.DefaultRiskPct > 100 {
		return fmt.Errorf("SNIPER_DEFAULT_RISK_PCT must be between 1 and 100, got %d", c.API.DefaultRiskPct)
	}

	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram notifications enabled but SNIPER_TELEGRAM_TOKEN or SNIPER_TELEGRAM_CHAT_ID is missing")
	}

	return nil
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
