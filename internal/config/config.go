package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration required by the API process.
// Values come from the environment (optionally seeded from a .env file).
// No business logic should depend on raw environment variables.
type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Kafka    KafkaConfig
	LiveKit  LiveKitConfig
	Razorpay RazorpayConfig
	Billing  BillingConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string

	MaxOpenConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	MaxRetryCount int
	RelayInterval time.Duration
	RelayBatch    int
}

type LiveKitConfig struct {
	URL       string
	APIKey    string
	APISecret string
	TokenTTL  time.Duration
}

type RazorpayConfig struct {
	KeyID     string
	KeySecret string
}

// BillingConfig carries the call tariff and host revenue-share parameters.
// Coins are integers; currency amounts are minor units (paise).
type BillingConfig struct {
	AudioRatePerMinute     int64
	VideoRatePerMinute     int64
	PremiumDiscountPercent int64

	CoinToMinorRate   int64
	VideoSharePercent int64
	AudioSharePercent int64

	HighRatingThreshold  float64
	HighRatingBonusMinor int64
	HighRatingWindow     time.Duration

	Milestones []MilestoneBonus

	MinWithdrawalMinor int64
}

type MilestoneBonus struct {
	Calls       int64
	AmountMinor int64
}

// DefaultBilling returns the production tariff.
func DefaultBilling() BillingConfig {
	return BillingConfig{
		AudioRatePerMinute:     10,
		VideoRatePerMinute:     60,
		PremiumDiscountPercent: 50,
		CoinToMinorRate:        10,
		VideoSharePercent:      30,
		AudioSharePercent:      15,
		HighRatingThreshold:    4.5,
		HighRatingBonusMinor:   10000,
		HighRatingWindow:       30 * 24 * time.Hour,
		Milestones: []MilestoneBonus{
			{Calls: 50, AmountMinor: 50000},
			{Calls: 100, AmountMinor: 100000},
		},
		MinWithdrawalMinor: 50000,
	}
}

func Load() (Config, error) {
	// .env is optional; real deployments inject env directly.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(v.GetString("APP_ENV"))
	c.App.Port, parseErrs = requiredInt(v, "APP_PORT", parseErrs)

	c.DB.Host = strings.TrimSpace(v.GetString("DB_HOST"))
	c.DB.Port, parseErrs = requiredInt(v, "DB_PORT", parseErrs)
	c.DB.User = strings.TrimSpace(v.GetString("DB_USER"))
	c.DB.Password = v.GetString("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(v.GetString("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(v.GetString("DB_SSLMODE"))
	c.DB.MaxOpenConns = v.GetInt("DB_MAX_OPEN_CONNS")
	c.DB.AutoMigrate = v.GetBool("DB_AUTO_MIGRATE")

	c.Redis.Host = strings.TrimSpace(v.GetString("REDIS_HOST"))
	c.Redis.Port, parseErrs = requiredInt(v, "REDIS_PORT", parseErrs)
	c.Redis.Password = v.GetString("REDIS_PASSWORD")
	c.Redis.DB = v.GetInt("REDIS_DB")

	c.Auth.JWTSecret = v.GetString("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(v.GetString("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(v.GetString("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL = optionalDuration(v, "JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = optionalDuration(v, "JWT_REFRESH_TTL")

	c.Kafka.Enabled = v.GetBool("KAFKA_ENABLED")
	c.Kafka.Brokers = splitList(v.GetString("KAFKA_BROKERS"))
	c.Kafka.MaxRetryCount = v.GetInt("KAFKA_MAX_RETRY")
	c.Kafka.RelayInterval = optionalDuration(v, "KAFKA_RELAY_INTERVAL")
	c.Kafka.RelayBatch = v.GetInt("KAFKA_RELAY_BATCH")

	c.LiveKit.URL = strings.TrimSpace(v.GetString("LIVEKIT_URL"))
	c.LiveKit.APIKey = strings.TrimSpace(v.GetString("LIVEKIT_API_KEY"))
	c.LiveKit.APISecret = v.GetString("LIVEKIT_API_SECRET")
	c.LiveKit.TokenTTL = optionalDuration(v, "LIVEKIT_TOKEN_TTL")

	c.Razorpay.KeyID = strings.TrimSpace(v.GetString("RAZORPAY_KEY_ID"))
	c.Razorpay.KeySecret = v.GetString("RAZORPAY_KEY_SECRET")

	c.Billing = DefaultBilling()
	c.Billing.AudioRatePerMinute = v.GetInt64("BILLING_AUDIO_RATE")
	c.Billing.VideoRatePerMinute = v.GetInt64("BILLING_VIDEO_RATE")
	c.Billing.PremiumDiscountPercent = v.GetInt64("BILLING_PREMIUM_DISCOUNT_PERCENT")
	c.Billing.CoinToMinorRate = v.GetInt64("BILLING_COIN_TO_MINOR_RATE")
	c.Billing.MinWithdrawalMinor = v.GetInt64("BILLING_MIN_WITHDRAWAL_MINOR")

	if len(parseErrs) > 0 {
		return Config{}, joinErrors(parseErrs)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	def := DefaultBilling()
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("KAFKA_ENABLED", false)
	v.SetDefault("KAFKA_MAX_RETRY", 5)
	v.SetDefault("KAFKA_RELAY_BATCH", 100)
	v.SetDefault("BILLING_AUDIO_RATE", def.AudioRatePerMinute)
	v.SetDefault("BILLING_VIDEO_RATE", def.VideoRatePerMinute)
	v.SetDefault("BILLING_PREMIUM_DISCOUNT_PERCENT", def.PremiumDiscountPercent)
	v.SetDefault("BILLING_COIN_TO_MINOR_RATE", def.CoinToMinorRate)
	v.SetDefault("BILLING_MIN_WITHDRAWAL_MINOR", def.MinWithdrawalMinor)
}

// Validate checks the configuration and fills env-dependent defaults.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
		if c.Razorpay.KeySecret == "" {
			errs = append(errs, errors.New("RAZORPAY_KEY_SECRET is required in production"))
		}
		if c.LiveKit.APIKey == "" || c.LiveKit.APISecret == "" {
			errs = append(errs, errors.New("LIVEKIT_API_KEY and LIVEKIT_API_SECRET are required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is set"))
	}
	if c.Kafka.RelayInterval <= 0 {
		c.Kafka.RelayInterval = time.Second
	}
	if c.LiveKit.TokenTTL <= 0 {
		c.LiveKit.TokenTTL = 2 * time.Hour
	}

	errs = append(errs, c.Billing.validate()...)

	return joinErrors(errs)
}

func (b BillingConfig) validate() []error {
	var errs []error
	if b.AudioRatePerMinute <= 0 || b.VideoRatePerMinute <= 0 {
		errs = append(errs, errors.New("BILLING_AUDIO_RATE and BILLING_VIDEO_RATE must be > 0"))
	}
	if b.PremiumDiscountPercent < 0 || b.PremiumDiscountPercent > 100 {
		errs = append(errs, fmt.Errorf("BILLING_PREMIUM_DISCOUNT_PERCENT must be within 0..100, got %d", b.PremiumDiscountPercent))
	}
	if b.CoinToMinorRate <= 0 {
		errs = append(errs, errors.New("BILLING_COIN_TO_MINOR_RATE must be > 0"))
	}
	if b.VideoSharePercent < 0 || b.VideoSharePercent > 100 || b.AudioSharePercent < 0 || b.AudioSharePercent > 100 {
		errs = append(errs, errors.New("host share percentages must be within 0..100"))
	}
	if b.MinWithdrawalMinor < 0 {
		errs = append(errs, errors.New("BILLING_MIN_WITHDRAWAL_MINOR must be >= 0"))
	}
	return errs
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

// DevTokensEnabled reports whether the credential-less token endpoint may be
// mounted. Only developer machines and the shared dev stack get it.
func (c Config) DevTokensEnabled() bool {
	return c.App.Env == "local" || c.App.Env == "dev"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func requiredInt(v *viper.Viper, key string, errs []error) (int, []error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, append(errs, fmt.Errorf("%s is required", key))
	}
	var n int
	if _, err := fmt.Sscanf(raw, "%d", &n); err != nil || fmt.Sprint(n) != raw {
		return 0, append(errs, fmt.Errorf("%s must be an integer, got %q", key, raw))
	}
	return n, errs
}

func optionalDuration(v *viper.Viper, key string) time.Duration {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
