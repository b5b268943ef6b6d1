package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validLocal() Config {
	return Config{
		App:     AppConfig{Env: "local", Port: 8080},
		DB:      DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "chatcall"},
		Redis:   RedisConfig{Host: "localhost", Port: 6379},
		Auth:    AuthConfig{JWTSecret: "secret"},
		Billing: DefaultBilling(),
	}
}

func TestLoad_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "chatcall"
	c.Auth.JWTAudience = "chatcall-api"
	c.Razorpay.KeySecret = "rzp"
	c.LiveKit = LiveKitConfig{APIKey: "k", APISecret: "s"}

	err := c.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "DB_SSLMODE")
}

func TestValidate_LocalDefaultsSSLMode(t *testing.T) {
	c := validLocal()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	require.Equal(t, 15*time.Minute, c.Auth.AccessTokenTTL)
	require.Equal(t, 2*time.Hour, c.LiveKit.TokenTTL)
}

func TestValidate_KafkaNeedsBrokers(t *testing.T) {
	c := validLocal()
	c.Kafka.Enabled = true
	err := c.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "KAFKA_BROKERS")
}

func TestValidate_RejectsBadBilling(t *testing.T) {
	c := validLocal()
	c.Billing.PremiumDiscountPercent = 120
	c.Billing.CoinToMinorRate = 0
	err := c.Validate()
	require.Error(t, err)
	require.True(t, strings.HasPrefix(err.Error(), "config errors:"), err.Error())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_NAME", "chatcall")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("BILLING_VIDEO_RATE", "80")

	c, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", c.HTTPAddr())
	require.Equal(t, "cache:6379", c.RedisAddr())
	require.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	require.Equal(t, int64(80), c.Billing.VideoRatePerMinute)
	require.Equal(t, int64(10), c.Billing.AudioRatePerMinute)
	require.Len(t, c.Billing.Milestones, 2)
}

func TestLoad_RejectsNonNumericPort(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "80a")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("REDIS_PORT", "6379")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "APP_PORT must be an integer")
}

func TestDevTokensEnabled_OnlyLocalAndDev(t *testing.T) {
	cases := []struct {
		env  string
		want bool
	}{
		{"local", true},
		{"dev", true},
		{"staging", false},
		{"production", false},
	}
	for _, tc := range cases {
		c := validLocal()
		c.App.Env = tc.env
		if got := c.DevTokensEnabled(); got != tc.want {
			t.Fatalf("env %q: expected %v, got %v", tc.env, tc.want, got)
		}
	}
}
