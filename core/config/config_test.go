package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{Token: "123:abc"},
		Channel:  ChannelConfig{ID: "-1001234567890"},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, Normalize(cfg))

	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, "RUB", cfg.Telegram.Currency)
	assert.Equal(t, "month", cfg.Plans.Default)
	assert.Equal(t, 60, cfg.Sweep.IntervalMinutes)
	assert.Equal(t, time.Hour, cfg.Sweep.Interval())

	// Built-in tiers fill in when none are configured.
	require.Len(t, cfg.Plans.Tiers, 3)
	assert.Equal(t, 30, cfg.Plans.Tiers["month"].Days)
	assert.Equal(t, int64(555), cfg.Plans.Tiers["month"].Amount)
	assert.Equal(t, 90, cfg.Plans.Tiers["quarter"].Days)
	assert.Equal(t, 365, cfg.Plans.Tiers["year"].Days)
}

func TestNormalizeRequiresTokenAndChannel(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.Token = ""
	assert.Error(t, Normalize(cfg))

	cfg = validConfig()
	cfg.Channel.ID = "  "
	assert.Error(t, Normalize(cfg))
}

func TestNormalizeRunMode(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.RunMode = "polling"
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)

	cfg = validConfig()
	cfg.Telegram.RunMode = "carrier-pigeon"
	assert.Error(t, Normalize(cfg))
}

func TestNormalizeWebhookRequirements(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.RunMode = RunModeWebhook
	assert.Error(t, Normalize(cfg))

	cfg.Webhook = WebhookConfig{URL: "https://bot.example.com", Listen: "0.0.0.0", Port: 8443}
	assert.NoError(t, Normalize(cfg))
}

func TestNormalizePlanValidation(t *testing.T) {
	cfg := validConfig()
	cfg.Plans.Tiers = map[string]PlanConfig{"month": {Days: 0, Amount: 555}}
	assert.Error(t, Normalize(cfg))

	cfg = validConfig()
	cfg.Plans.Tiers = map[string]PlanConfig{"month": {Days: 30, Amount: -1}}
	assert.Error(t, Normalize(cfg))

	cfg = validConfig()
	cfg.Plans.Tiers = map[string]PlanConfig{"week": {Days: 7, Amount: 200}}
	cfg.Plans.Default = "month"
	assert.Error(t, Normalize(cfg), "default must name a configured tier")
}

func TestNormalizeRateLimitExclusions(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit.ExcludeUpdates = []string{" Callback ", "message"}
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, []string{"callback", "message"}, cfg.RateLimit.ExcludeUpdates)

	cfg = validConfig()
	cfg.RateLimit.ExcludeUpdates = []string{"inline_query"}
	assert.Error(t, Normalize(cfg))
}

func TestNormalizeMetricsListenDefault(t *testing.T) {
	cfg := validConfig()
	cfg.Metrics.Enabled = true
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, ":9090", cfg.Metrics.Listen)
}
