package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config materialises application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Redis     RedisConfig     `mapstructure:"redis"`
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	EdgeLocation    string        `mapstructure:"edge_location"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// WindowConfig parameterises one sliding-window limiter purpose.
type WindowConfig struct {
	Window      time.Duration `mapstructure:"window"`
	MaxRequests int           `mapstructure:"max_requests"`
}

// RateLimitConfig holds per-purpose window limits.
type RateLimitConfig struct {
	Payment WindowConfig `mapstructure:"payment"`
	Quote   WindowConfig `mapstructure:"quote"`
}

// PricingConfig drives the locale pricing engine. Multipliers are keyed by
// ISO alpha-2 country code; unknown countries fall back to DefaultMultiplier,
// which is deliberately below 1.0 (purchasing-power-parity discount).
type PricingConfig struct {
	Multipliers       map[string]float64 `mapstructure:"multipliers"`
	DefaultMultiplier float64            `mapstructure:"default_multiplier"`
}

// RiskConfig drives the fraud scorer.
type RiskConfig struct {
	FlaggedIPWeight    float64            `mapstructure:"flagged_ip_weight"`
	AmountTierOne      int64              `mapstructure:"amount_tier_one"`
	AmountTierOneRisk  float64            `mapstructure:"amount_tier_one_risk"`
	AmountTierTwo      int64              `mapstructure:"amount_tier_two"`
	AmountTierTwoRisk  float64            `mapstructure:"amount_tier_two_risk"`
	DefaultUserRisk    float64            `mapstructure:"default_user_risk"`
	HighRiskCountries  []string           `mapstructure:"high_risk_countries"`
	HighRiskWeight     float64            `mapstructure:"high_risk_weight"`
	RejectThreshold    float64            `mapstructure:"reject_threshold"`
	LookupTimeout      time.Duration      `mapstructure:"lookup_timeout"`
	BreakerCooldown    time.Duration      `mapstructure:"breaker_cooldown"`
	DenySetKey         string             `mapstructure:"deny_set_key"`
	FlaggedIPs         []string           `mapstructure:"flagged_ips"`
	SeedUserRisk       map[string]float64 `mapstructure:"seed_user_risk"`
}

// ProviderConfig points at the external payment capture provider.
type ProviderConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DispatchConfig wires the analytics and error sinks.
type DispatchConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	KafkaSeeds  []string      `mapstructure:"kafka_seeds"`
	KafkaTopic  string        `mapstructure:"kafka_topic"`
	WebhookURL  string        `mapstructure:"webhook_url"`
	ErrorURL    string        `mapstructure:"error_url"`
	SinkTimeout time.Duration `mapstructure:"sink_timeout"`
}

// RedisConfig covers the optional Redis-backed IP reputation store.
type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("EDGEPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.edge_location", "local")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")

	v.SetDefault("rate_limit.payment.window", "60s")
	v.SetDefault("rate_limit.payment.max_requests", 5)
	v.SetDefault("rate_limit.quote.window", "10s")
	v.SetDefault("rate_limit.quote.max_requests", 50)

	v.SetDefault("pricing.multipliers", map[string]float64{
		"US": 1.0,
		"CA": 1.0,
		"GB": 1.1,
		"JP": 1.2,
		"IN": 0.3,
		"BR": 0.4,
		"MX": 0.5,
	})
	v.SetDefault("pricing.default_multiplier", 0.8)

	v.SetDefault("risk.flagged_ip_weight", 0.3)
	v.SetDefault("risk.amount_tier_one", int64(1000))
	v.SetDefault("risk.amount_tier_one_risk", 0.2)
	v.SetDefault("risk.amount_tier_two", int64(5000))
	v.SetDefault("risk.amount_tier_two_risk", 0.4)
	v.SetDefault("risk.default_user_risk", 0.1)
	v.SetDefault("risk.high_risk_countries", []string{"XX"})
	v.SetDefault("risk.high_risk_weight", 0.3)
	v.SetDefault("risk.reject_threshold", 0.8)
	v.SetDefault("risk.lookup_timeout", "500ms")
	v.SetDefault("risk.breaker_cooldown", "30s")
	v.SetDefault("risk.deny_set_key", "edgepay:ip_denylist")

	v.SetDefault("provider.base_url", "https://api.stripe.com")
	v.SetDefault("provider.request_timeout", "10s")

	v.SetDefault("dispatch.timeout", "2s")
	v.SetDefault("dispatch.sink_timeout", "1500ms")
	v.SetDefault("dispatch.kafka_topic", "edgepay.conversions")

	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.RateLimit.Payment.Window <= 0 || c.RateLimit.Payment.MaxRequests <= 0 {
		return fmt.Errorf("rate_limit.payment window and max_requests must be greater than zero")
	}
	if c.RateLimit.Quote.Window <= 0 || c.RateLimit.Quote.MaxRequests <= 0 {
		return fmt.Errorf("rate_limit.quote window and max_requests must be greater than zero")
	}
	if c.Pricing.DefaultMultiplier <= 0 {
		return fmt.Errorf("pricing.default_multiplier must be greater than zero")
	}
	for code, m := range c.Pricing.Multipliers {
		if m <= 0 {
			return fmt.Errorf("pricing.multipliers[%s] must be greater than zero", code)
		}
	}
	if c.Risk.RejectThreshold <= 0 || c.Risk.RejectThreshold > 1 {
		return fmt.Errorf("risk.reject_threshold must be in (0, 1]")
	}
	if c.Risk.LookupTimeout <= 0 {
		return fmt.Errorf("risk.lookup_timeout must be greater than zero")
	}
	if c.Dispatch.Timeout <= 0 {
		return fmt.Errorf("dispatch.timeout must be greater than zero")
	}
	return nil
}
