package config

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Environment
	Env string `env:"ENV" envDefault:"production"` // "development", "production", etc.

	// Bot API
	BotToken            string `env:"BOT_TOKEN,required,notEmpty"`
	TelegramAPIEndpoint string `env:"TELEGRAM_API_ENDPOINT"` // e.g. "https://api.telegram.org/bot%s/%s"

	// Chats
	PrimaryChatID   int64 `env:"PRIMARY_CHAT_ID,required"`
	ModeratorChatID int64 `env:"MODERATOR_CHAT_ID,required"`
	ChannelID       int64 `env:"CHANNEL_ID"` // 0 disables the channel relay

	// Session storage
	SessionBackend string `env:"SESSION_BACKEND"` // memory, sqlite, redis, postgres
	StoragePath    string `env:"STORAGE_PATH"`
	RedisURL       string `env:"REDIS_URL"`
	DatabaseURL    string `env:"DATABASE_URL"`

	// Server
	ServerAddr    string `env:"SERVER_ADDR" envDefault:":8080"`
	WebhookURL    string `env:"WEBHOOK_URL"` // long polling when empty
	WebhookSecret string `env:"WEBHOOK_SECRET"`
	Workers       int    `env:"WORKERS" envDefault:"16"`

	// Countersign
	CountersignURL               string        `env:"COUNTERSIGN_URL" envDefault:"https://countersign.chat/api/scammer_ids.json"`
	CountersignFreshness         time.Duration `env:"COUNTERSIGN_FRESHNESS" envDefault:"15m"`
	CountersignTimeout           time.Duration `env:"COUNTERSIGN_TIMEOUT" envDefault:"5s"`
	CountersignExtendNotModified bool          `env:"COUNTERSIGN_EXTEND_ON_NOT_MODIFIED"`
	// 0 disables the background refresh job.
	CountersignRefreshInterval   time.Duration `env:"COUNTERSIGN_REFRESH_INTERVAL"`
	ScammerAutoBlock             bool          `env:"SCAMMER_AUTO_BLOCK"`

	// Moderation
	InviteTTL       time.Duration `env:"INVITE_TTL" envDefault:"24h"`
	ModeratorLocale string        `env:"MODERATOR_LOCALE" envDefault:"en"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"` // json or text
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", withEnvKeys(err))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// withEnvKeys rewrites value parse errors to name the variable instead of the struct field.
func withEnvKeys(err error) error {
	var agg env.AggregateError
	if !errors.As(err, &agg) {
		return err
	}
	errs := make([]error, 0, len(agg.Errors))
	for _, e := range agg.Errors {
		var pe env.ParseError
		if errors.As(e, &pe) {
			e = fmt.Errorf("%s: invalid %s value: %w", envKey(pe.Name), pe.Type, pe.Err)
		}
		errs = append(errs, e)
	}
	return errors.Join(errs...)
}

func envKey(field string) string {
	f, ok := reflect.TypeOf(Config{}).FieldByName(field)
	if !ok {
		return field
	}
	key, _, _ := strings.Cut(f.Tag.Get("env"), ",")
	return key
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	var errs []error
	if c.PrimaryChatID == 0 {
		errs = append(errs, errors.New("PRIMARY_CHAT_ID must not be zero"))
	}
	if c.ModeratorChatID == 0 {
		errs = append(errs, errors.New("MODERATOR_CHAT_ID must not be zero"))
	}
	if c.Workers < 1 {
		errs = append(errs, errors.New("WORKERS must be at least 1"))
	}
	if c.WebhookURL != "" && c.WebhookSecret == "" {
		errs = append(errs, errors.New("WEBHOOK_SECRET is required with WEBHOOK_URL"))
	}
	if c.CountersignTimeout <= 0 {
		errs = append(errs, errors.New("COUNTERSIGN_TIMEOUT must be positive"))
	}
	if c.InviteTTL <= 0 {
		errs = append(errs, errors.New("INVITE_TTL must be positive"))
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q must be json or text", c.LogFormat))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}

// IsDev returns true if the environment is set to development.
func (c *Config) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}

// UseWebhook reports whether updates arrive through the webhook instead of long polling.
func (c *Config) UseWebhook() bool {
	return c.WebhookURL != ""
}
