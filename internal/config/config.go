package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/joonhyoung1/crypto-trading-bot/internal/exchange"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Venues   VenuesConfig
	Trading  TradingConfig
	Notifier NotifierConfig
	Audit    AuditConfig
	Security SecurityConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port int
	Host string
}

// VenueConfig - учётные данные и параметры одной биржи.
// Биржа без ключей не регистрируется в системе.
type VenueConfig struct {
	APIKey     string
	APISecret  string
	Passphrase string // только Bitget
}

// Configured сообщает заданы ли ключи биржи
func (v VenueConfig) Configured() bool {
	return v.APIKey != "" && v.APISecret != ""
}

// VenuesConfig - учётные данные всех бирж
type VenuesConfig struct {
	Mexc   VenueConfig
	Gate   VenueConfig
	Bitget VenueConfig
}

// Get возвращает конфигурацию биржи по идентификатору
func (vc VenuesConfig) Get(venue exchange.Venue) VenueConfig {
	switch venue {
	case exchange.VenueMexc:
		return vc.Mexc
	case exchange.VenueGate:
		return vc.Gate
	case exchange.VenueBitget:
		return vc.Bitget
	default:
		return VenueConfig{}
	}
}

// TradingConfig - торговые параметры мониторинга и исполнения
type TradingConfig struct {
	// Symbols - белый список канонических символов
	Symbols []string

	// Пороги входа в процентах: гэп >= EntryLong открывает short на A /
	// long на B (A переоценена), гэп <= EntryShort - зеркально
	EntryLongPct  float64
	EntryShortPct float64

	// MonitorInterval - период опроса стаканов
	MonitorInterval time.Duration

	// DedupWindow - окно подавления повторных алертов
	DedupWindow time.Duration

	// SafetyFactor - множитель размера относительно худшего уровня стакана
	SafetyFactor float64

	// MaxNotional - верхний предел размера сделки в USDT (0 = без лимита)
	MaxNotional float64

	// UsdtToKrw - фиксированный курс для отображения сумм в KRW
	UsdtToKrw float64
}

// NotifierConfig - настройки Telegram уведомлений.
// Без токена или chat id нотификатор работает в отключённом режиме.
type NotifierConfig struct {
	Token  string
	ChatID int64
}

// Enabled сообщает заданы ли учётные данные нотификатора
func (n NotifierConfig) Enabled() bool {
	return n.Token != "" && n.ChatID != 0
}

// AuditConfig - настройки журнала гэпов в Postgres.
// Пустой DSN отключает журналирование.
type AuditConfig struct {
	DSN string
}

// Enabled сообщает включён ли аудит
func (a AuditConfig) Enabled() bool {
	return a.DSN != ""
}

// SecurityConfig - настройки защиты управляющих эндпоинтов.
// SessionSecretHash - bcrypt хеш секрета; пустое значение отключает
// проверку (режим разработки).
type SecurityConfig struct {
	SessionSecretHash string
}

// Load загружает конфигурацию из .env файла и переменных окружения.
// Переменные окружения имеют приоритет над .env.
func Load() (*Config, error) {
	// .env опционален: в контейнере переменные приходят из окружения
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvAsInt("SERVER_PORT", 8080),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Venues: VenuesConfig{
			Mexc: VenueConfig{
				APIKey:    getEnv("M_API_KEY", ""),
				APISecret: getEnv("M_API_SECRET", ""),
			},
			Gate: VenueConfig{
				APIKey:    getEnv("G_API_KEY", ""),
				APISecret: getEnv("G_API_SECRET", ""),
			},
			Bitget: VenueConfig{
				APIKey:     getEnv("B_API_KEY", ""),
				APISecret:  getEnv("B_API_SECRET", ""),
				Passphrase: getEnv("B_PASSPHRASE", ""),
			},
		},
		Trading: TradingConfig{
			Symbols:         []string{"XRP/USDT", "DOGE/USDT"},
			EntryLongPct:    getEnvAsFloat("ENTRY_LONG_PCT", 0.05),
			EntryShortPct:   getEnvAsFloat("ENTRY_SHORT_PCT", -0.06),
			MonitorInterval: getEnvAsDuration("MONITOR_INTERVAL", 1*time.Second),
			DedupWindow:     getEnvAsDuration("DEDUP_WINDOW", 300*time.Second),
			SafetyFactor:    getEnvAsFloat("SAFETY_FACTOR", 0.95),
			MaxNotional:     getEnvAsFloat("MAX_NOTIONAL", 0),
			UsdtToKrw:       getEnvAsFloat("USDT_TO_KRW", 1300),
		},
		Notifier: NotifierConfig{
			Token:  getEnv("NOTIFIER_TOKEN", ""),
			ChatID: getEnvAsInt64("NOTIFIER_CHAT_ID", 0),
		},
		Audit: AuditConfig{
			DSN: getEnv("AUDIT_DB_DSN", ""),
		},
		Security: SecurityConfig{
			SessionSecretHash: getEnv("SESSION_SECRET", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate проверяет числовые диапазоны и согласованность параметров
func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Trading.EntryLongPct <= 0 {
		return fmt.Errorf("ENTRY_LONG_PCT must be positive, got %v", c.Trading.EntryLongPct)
	}

	if c.Trading.EntryShortPct >= 0 {
		return fmt.Errorf("ENTRY_SHORT_PCT must be negative, got %v", c.Trading.EntryShortPct)
	}

	if c.Trading.MonitorInterval <= 0 {
		return fmt.Errorf("MONITOR_INTERVAL must be positive, got %v", c.Trading.MonitorInterval)
	}

	if c.Trading.DedupWindow <= 0 {
		return fmt.Errorf("DEDUP_WINDOW must be positive, got %v", c.Trading.DedupWindow)
	}

	if c.Trading.SafetyFactor <= 0 || c.Trading.SafetyFactor > 1 {
		return fmt.Errorf("SAFETY_FACTOR must be in (0, 1], got %v", c.Trading.SafetyFactor)
	}

	if c.Trading.MaxNotional < 0 {
		return fmt.Errorf("MAX_NOTIONAL cannot be negative, got %v", c.Trading.MaxNotional)
	}

	if c.Trading.UsdtToKrw <= 0 {
		return fmt.Errorf("USDT_TO_KRW must be positive, got %v", c.Trading.UsdtToKrw)
	}

	if len(c.Trading.Symbols) == 0 {
		return fmt.Errorf("trading symbols whitelist cannot be empty")
	}

	return nil
}

// ConfiguredVenues возвращает список бирж с заданными ключами
func (c *Config) ConfiguredVenues() []exchange.Venue {
	venues := make([]exchange.Venue, 0, len(exchange.Venues))
	for _, v := range exchange.Venues {
		if c.Venues.Get(v).Configured() {
			venues = append(venues, v)
		}
	}
	return venues
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

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
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
