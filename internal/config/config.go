// Package config loads the service configuration from environment variables.
// envconfig maps variables onto the struct fields below.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Storage drivers
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds ALL service settings.
type Config struct {
	// --- HTTP ---
	HTTPAddr            string        `envconfig:"HTTP_ADDR" default:":8080"`
	HTTPShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"30s"`
	CORSOriginsRaw      string        `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:5173"`
	CORSAllowedOrigins  []string      `envconfig:"-"` // filled from CORSOriginsRaw

	// --- Storage ---
	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"postgres"`

	// --- Database ---
	// Inside docker-compose the host is the service name; override DB_HOST=localhost locally.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"credits"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"credits"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Application ---
	AppEnv       string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel  string `envconfig:"APP_LOG_LEVEL" default:"info"`
	AppLogFormat string `envconfig:"APP_LOG_FORMAT" default:"text"`
	AppTimezone  string `envconfig:"APP_TIMEZONE" default:"UTC"`

	// --- Access ---
	// Argon2id hash of the admin key, see scripts/generate_hash.go
	AdminKeyHash string `envconfig:"ADMIN_KEY_HASH"`
	// Shared secret the payment provider sends in X-Webhook-Secret
	WebhookSecret string `envconfig:"WEBHOOK_SECRET"`

	// --- Awards ---
	FirstPurchaseBonus      int64 `envconfig:"FIRST_PURCHASE_BONUS" default:"10"`
	ReferralReferrerCredits int64 `envconfig:"REFERRAL_REFERRER_CREDITS" default:"20"`
	ReferralReferredCredits int64 `envconfig:"REFERRAL_REFERRED_CREDITS" default:"10"`

	// --- Tool costs ---
	ToolCostsFile    string        `envconfig:"TOOL_COSTS_FILE"`
	ToolCostsRefresh time.Duration `envconfig:"TOOL_COSTS_REFRESH" default:"5m"`

	// --- Ledger queries ---
	TransactionsMaxLimit int `envconfig:"TRANSACTIONS_MAX_LIMIT" default:"100"`

	// --- Realtime ---
	// Events buffered per subscriber before new ones are dropped
	RealtimeBuffer int `envconfig:"REALTIME_BUFFER" default:"16"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"60"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
	AdminMaxFailures  int           `envconfig:"ADMIN_MAX_FAILURES" default:"3"`

	// --- Telegram admin alerts (optional) ---
	TelegramBotToken    string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramAlertChatID int64  `envconfig:"TELEGRAM_ALERT_CHAT_ID"`

	// --- Jobs ---
	JobsStreakSchedule    string `envconfig:"JOBS_STREAK_SCHEDULE" default:"5 0 * * *"`
	JobsReconcileSchedule string `envconfig:"JOBS_RECONCILE_SCHEDULE" default:"30 3 * * *"`
}

// DatabaseDSN returns the PostgreSQL connection string.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// TelegramAlertsEnabled reports whether admin alerts should be sent.
func (c *Config) TelegramAlertsEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramAlertChatID != 0
}

func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StoragePostgres:
		if c.DBPassword == "" {
			return fmt.Errorf("DB_PASSWORD is required for the postgres driver")
		}
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("invalid DB_MIN_CONNS/DB_MAX_CONNS")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.AppEnv == "production" && (c.AdminKeyHash == "" || c.WebhookSecret == "") {
		return fmt.Errorf("ADMIN_KEY_HASH and WEBHOOK_SECRET are required in production")
	}
	if c.FirstPurchaseBonus < 0 || c.ReferralReferrerCredits < 0 || c.ReferralReferredCredits < 0 {
		return fmt.Errorf("award amounts must not be negative")
	}
	if c.TransactionsMaxLimit <= 0 {
		return fmt.Errorf("TRANSACTIONS_MAX_LIMIT must be > 0")
	}
	if c.RealtimeBuffer <= 0 {
		return fmt.Errorf("REALTIME_BUFFER must be > 0")
	}
	if c.ToolCostsRefresh <= 0 {
		return fmt.Errorf("TOOL_COSTS_REFRESH must be > 0")
	}
	return nil
}

// Load reads environment variables into Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	cfg.CORSAllowedOrigins = parseCSV(cfg.CORSOriginsRaw)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseCSV(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseInt64CSV parses "1, 2,3" into []int64.
func ParseInt64CSV(s string) ([]int64, error) {
	parts := parseCSV(s)
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
