package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token       string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminChatID int64  `yaml:"admin_chat_id" envconfig:"TELEGRAM_ADMIN_CHAT_ID"`
	RunMode     string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
	// ProviderToken is the payment provider token used for gateway invoices.
	ProviderToken string `yaml:"provider_token" envconfig:"PAYMENT_PROVIDER_TOKEN"`
	// Currency is the ISO 4217 code used on invoices.
	Currency string `yaml:"currency" envconfig:"PAYMENT_CURRENCY"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// ChannelConfig identifies the managed paid channel.
type ChannelConfig struct {
	// ID is the channel identifier as configured: @username or a numeric id.
	ID string `yaml:"id" envconfig:"CHANNEL_ID"`
	// InviteLink is shown to members after a confirmed payment.
	InviteLink string `yaml:"invite_link" envconfig:"CHANNEL_INVITE_LINK"`
	// WelcomeImageURL decorates /start; empty disables the photo.
	WelcomeImageURL string `yaml:"welcome_image_url" envconfig:"CHANNEL_WELCOME_IMAGE_URL"`
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// PlanConfig describes one purchasable subscription tier.
type PlanConfig struct {
	Days   int   `yaml:"days"`
	Amount int64 `yaml:"amount"`
}

// PlansConfig maps plan tags to durations and prices.
type PlansConfig struct {
	// Default names the tag used when a reference carries an unknown tag.
	Default string                `yaml:"default" envconfig:"PLANS_DEFAULT"`
	Tiers   map[string]PlanConfig `yaml:"tiers"`
}

// BankingConfig carries the manual-transfer payment details shown to users.
type BankingConfig struct {
	CardNumber   string `yaml:"card_number" envconfig:"BANKING_CARD_NUMBER"`
	Holder       string `yaml:"holder" envconfig:"BANKING_HOLDER"`
	Instructions string `yaml:"instructions"`
}

// SweepConfig controls the expiry reconciliation loop.
type SweepConfig struct {
	Enabled         bool `yaml:"enabled" envconfig:"SWEEP_ENABLED"`
	IntervalMinutes int  `yaml:"interval_minutes" envconfig:"SWEEP_INTERVAL_MINUTES"`
}

// Interval returns the sweep period as a duration.
func (s SweepConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"METRICS_ENABLED"`
	Listen  string `yaml:"listen" envconfig:"METRICS_LISTEN"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	Dir     string `yaml:"dir"`
	BotFile string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

// RateLimitConfig holds settings for rate limiting.
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
)

// Config aggregates the full bot configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Channel   ChannelConfig   `yaml:"channel"`
	Database  DatabaseConfig  `yaml:"database"`
	Plans     PlansConfig     `yaml:"plans"`
	Banking   BankingConfig   `yaml:"banking"`
	Sweep     SweepConfig     `yaml:"sweep"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultPlans returns the built-in plan table used when the config omits tiers.
func DefaultPlans() map[string]PlanConfig {
	return map[string]PlanConfig{
		"month":   {Days: 30, Amount: 555},
		"quarter": {Days: 90, Amount: 1555},
		"year":    {Days: 365, Amount: 6130},
	}
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if strings.TrimSpace(cfg.Channel.ID) == "" {
		return fmt.Errorf("channel.id is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	if cfg.Telegram.Currency == "" {
		cfg.Telegram.Currency = "RUB"
	}

	if len(cfg.Plans.Tiers) == 0 {
		cfg.Plans.Tiers = DefaultPlans()
	}
	for tag, plan := range cfg.Plans.Tiers {
		if plan.Days <= 0 {
			return fmt.Errorf("plans.tiers.%s.days must be > 0", tag)
		}
		if plan.Amount <= 0 {
			return fmt.Errorf("plans.tiers.%s.amount must be > 0", tag)
		}
	}
	if cfg.Plans.Default == "" {
		cfg.Plans.Default = "month"
	}
	if _, ok := cfg.Plans.Tiers[cfg.Plans.Default]; !ok {
		return fmt.Errorf("plans.default %q is not a configured tier", cfg.Plans.Default)
	}

	if cfg.Sweep.IntervalMinutes <= 0 {
		cfg.Sweep.IntervalMinutes = 60
	}

	if cfg.Metrics.Enabled && strings.TrimSpace(cfg.Metrics.Listen) == "" {
		cfg.Metrics.Listen = ":9090"
	}

	allowed := map[string]struct{}{
		UpdateCallback: {},
		UpdateMessage:  {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}
	return nil
}
