// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token         string  `yaml:"token"`
	Mode          string  `yaml:"mode"` // polling | webhook (future)
	Workers       int     `yaml:"workers"`
	AdminIDs      []int64 `yaml:"admin_ids"`
	SupportHandle string  `yaml:"support_handle"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // dialog scratch-state lifetime
}

// ChannelsConfig maps provisioned products to Telegram channel ids.
type ChannelsConfig struct {
	Personal     int64            `yaml:"personal"`
	YogaPersonal int64            `yaml:"yoga_personal"` // 0 = not configured
	Yoga         map[string]int64 `yaml:"yoga"`          // product code -> channel id
}

// PaymentConfig carries the static instruction blocks shown to the user
// after a payment method is chosen. All transfers are manual.
type PaymentConfig struct {
	CardDetails     string `yaml:"card_details"`
	CardOwner       string `yaml:"card_owner"`
	InstantKey      string `yaml:"instant_key"`
	InstantReceiver string `yaml:"instant_receiver"`
	CryptoNetwork   string `yaml:"crypto_network"`
	CryptoWallet    string `yaml:"crypto_wallet"`
}

type SubscriptionConfig struct {
	PeriodDays       int           `yaml:"period_days"`
	InviteLinkExpiry time.Duration `yaml:"invite_link_expiry"`
}

type JobConfig struct {
	Hour   int `yaml:"hour"`
	Minute int `yaml:"minute"`
}

type SchedulerConfig struct {
	Timezone          string    `yaml:"timezone"`
	Sweeper           JobConfig `yaml:"sweeper"`
	Feedback          JobConfig `yaml:"feedback"`
	FeedbackLookahead int       `yaml:"feedback_lookahead_days"`
}

type OpsConfig struct {
	Port int `yaml:"port"`
}

type Config struct {
	Bot          BotConfig          `yaml:"bot"`
	Log          LogConfig          `yaml:"log"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Prices       map[string]int64   `yaml:"prices"` // product code -> whole RUB
	Channels     ChannelsConfig     `yaml:"channels"`
	Payment      PaymentConfig      `yaml:"payment"`
	Subscription SubscriptionConfig `yaml:"subscription"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	Ops          OpsConfig          `yaml:"ops"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Bot.Mode == "" {
		cfg.Bot.Mode = "polling"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = 15 * time.Minute
	}
	if cfg.Subscription.PeriodDays <= 0 {
		cfg.Subscription.PeriodDays = 30
	}
	if cfg.Subscription.InviteLinkExpiry <= 0 {
		cfg.Subscription.InviteLinkExpiry = 48 * time.Hour
	}
	if cfg.Scheduler.Timezone == "" {
		cfg.Scheduler.Timezone = "America/Sao_Paulo"
	}
	if cfg.Scheduler.Sweeper.Hour == 0 && cfg.Scheduler.Sweeper.Minute == 0 {
		cfg.Scheduler.Sweeper.Hour = 9
	}
	if cfg.Scheduler.Feedback.Hour == 0 && cfg.Scheduler.Feedback.Minute == 0 {
		cfg.Scheduler.Feedback.Hour = 10
	}
	if cfg.Scheduler.FeedbackLookahead <= 0 {
		cfg.Scheduler.FeedbackLookahead = 1
	}
	if cfg.Ops.Port == 0 {
		cfg.Ops.Port = 8081
	}

	// Minimal validation
	if cfg.Bot.Token == "" {
		return nil, errors.New("bot.token is required")
	}
	if len(cfg.Bot.AdminIDs) == 0 {
		return nil, errors.New("bot.admin_ids is required")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if len(cfg.Prices) == 0 {
		return nil, errors.New("prices is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// Price returns the configured whole-unit price for a product code,
// 0 if the product is not priced.
func (c *Config) Price(product string) int64 {
	return c.Prices[product]
}

// YogaChannel returns the channel id for a yoga product, 0 if none is
// configured (the individual plan has no group channel).
func (c *Config) YogaChannel(product string) int64 {
	return c.Channels.Yoga[product]
}

// IsAdmin reports whether a Telegram user id is in the admin allowlist.
func (c *Config) IsAdmin(tgID int64) bool {
	for _, id := range c.Bot.AdminIDs {
		if id == tgID {
			return true
		}
	}
	return false
}
