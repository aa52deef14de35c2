package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Gateway   GatewayConfig
	GeoIP     GeoIPConfig
	Referral  ReferralConfig
	Log       LogConfig
	Scheduler SchedulerConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	Issuer        string
}

// GatewayConfig holds the payment gateway credentials. KeySecret signs
// payment signatures; WebhookSecret signs webhook bodies.
type GatewayConfig struct {
	BaseURL       string
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Timeout       time.Duration
}

type GeoIPConfig struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

type ReferralConfig struct {
	MaxInviteEmails int
	CodeAttempts    int
}

type LogConfig struct {
	Level  string
	Format string // console or json
}

type SchedulerConfig struct {
	Enabled bool
	// Cron spec for the daily reconciliation sweep (resets, commission
	// rollover, referral expiry).
	DailySpec string
}

// Load builds the config once at startup. Values come from environment
// variables (POSTPILOT_ prefix, e.g. POSTPILOT_DATABASE_DSN) layered over
// the defaults below; the result is passed into constructors explicitly.
func Load() *Config {
	v := viper.New()
	v.SetEnvPrefix("postpilot")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)

	v.SetDefault("database.dsn", "postpilot:postpilot@tcp(localhost:3306)/postpilot?charset=utf8mb4&parseTime=True&loc=Local")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("jwt.access_secret", "change-me-in-production")
	v.SetDefault("jwt.refresh_secret", "change-me-refresh")
	v.SetDefault("jwt.access_expiry", 15*time.Minute)
	v.SetDefault("jwt.refresh_expiry", 168*time.Hour)
	v.SetDefault("jwt.issuer", "postpilot")

	v.SetDefault("gateway.base_url", "https://api.razorpay.com")
	v.SetDefault("gateway.key_id", "")
	v.SetDefault("gateway.key_secret", "")
	v.SetDefault("gateway.webhook_secret", "")
	v.SetDefault("gateway.timeout", 30*time.Second)

	v.SetDefault("geoip.base_url", "http://ip-api.com")
	v.SetDefault("geoip.timeout", 2*time.Second)
	v.SetDefault("geoip.cache_ttl", 24*time.Hour)

	v.SetDefault("referral.max_invite_emails", 10)
	v.SetDefault("referral.code_attempts", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.daily_spec", "30 2 * * *")

	return &Config{
		Server: ServerConfig{
			Port:         v.GetString("server.port"),
			Env:          v.GetString("server.env"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
		},
		Database: DatabaseConfig{
			DSN:             v.GetString("database.dsn"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		JWT: JWTConfig{
			AccessSecret:  v.GetString("jwt.access_secret"),
			RefreshSecret: v.GetString("jwt.refresh_secret"),
			AccessExpiry:  v.GetDuration("jwt.access_expiry"),
			RefreshExpiry: v.GetDuration("jwt.refresh_expiry"),
			Issuer:        v.GetString("jwt.issuer"),
		},
		Gateway: GatewayConfig{
			BaseURL:       v.GetString("gateway.base_url"),
			KeyID:         v.GetString("gateway.key_id"),
			KeySecret:     v.GetString("gateway.key_secret"),
			WebhookSecret: v.GetString("gateway.webhook_secret"),
			Timeout:       v.GetDuration("gateway.timeout"),
		},
		GeoIP: GeoIPConfig{
			BaseURL:  v.GetString("geoip.base_url"),
			Timeout:  v.GetDuration("geoip.timeout"),
			CacheTTL: v.GetDuration("geoip.cache_ttl"),
		},
		Referral: ReferralConfig{
			MaxInviteEmails: v.GetInt("referral.max_invite_emails"),
			CodeAttempts:    v.GetInt("referral.code_attempts"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Scheduler: SchedulerConfig{
			Enabled:   v.GetBool("scheduler.enabled"),
			DailySpec: v.GetString("scheduler.daily_spec"),
		},
	}
}
