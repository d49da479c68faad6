// Package config provides configuration loading for the back-office API.
package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Identity IdentityConfig `mapstructure:"identity"`
	Session  SessionConfig  `mapstructure:"session"`
	Payment  PaymentConfig  `mapstructure:"payment"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"` // dev, staging, prod
	AdminOrigin  string        `mapstructure:"admin_origin"`
}

// IsProduction reports whether the server runs with production settings.
// Controls cookie Secure attributes among other things.
func (c ServerConfig) IsProduction() bool {
	return c.Environment == "prod"
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IdentityConfig holds the remote auth service configuration.
type IdentityConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
}

// SessionConfig holds session and cookie configuration.
type SessionConfig struct {
	// Timeout is the idle timeout: maximum elapsed time since last
	// authorized activity before a session is treated as expired.
	Timeout       time.Duration `mapstructure:"timeout"`
	LoginPath     string        `mapstructure:"login_path"`
	ForbiddenPath string        `mapstructure:"forbidden_path"`
}

// PaymentConfig holds gateway configuration for hosted checkout.
type PaymentConfig struct {
	MerchantID     string `mapstructure:"merchant_id"`
	MerchantSecret string `mapstructure:"merchant_secret"`
	BaseURL        string `mapstructure:"base_url"`
	ReturnPath     string `mapstructure:"return_path"`
	CancelPath     string `mapstructure:"cancel_path"`
	NotifyPath     string `mapstructure:"notify_path"`
}

// Load reads configuration from files and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/backoffice")

	// Enable environment variable override
	v.SetEnvPrefix("BACKOFFICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Explicitly bind secret-bearing environment variables (nested struct
	// issue with viper)
	v.BindEnv("database.password", "BACKOFFICE_DATABASE_PASSWORD")
	v.BindEnv("identity.base_url", "BACKOFFICE_IDENTITY_BASE_URL")
	v.BindEnv("identity.api_key", "BACKOFFICE_IDENTITY_API_KEY")
	v.BindEnv("payment.merchant_id", "BACKOFFICE_PAYMENT_MERCHANT_ID")
	v.BindEnv("payment.merchant_secret", "BACKOFFICE_PAYMENT_MERCHANT_SECRET")
	v.BindEnv("session.timeout", "SESSION_TIMEOUT")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we use defaults and env vars
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		millisecondDurationHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// millisecondDurationHook decodes bare integer duration values as
// millisecond counts. SESSION_TIMEOUT is documented as milliseconds
// (1800000 for 30 minutes); without this hook the standard duration
// parser rejects unit-less values and startup fails. Duration strings
// ("30m") keep working through the standard hook composed after it.
func millisecondDurationHook() mapstructure.DecodeHookFunc {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if t != durationType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
				return time.Duration(ms) * time.Millisecond, nil
			}
		case int:
			return time.Duration(v) * time.Millisecond, nil
		case int64:
			return time.Duration(v) * time.Millisecond, nil
		}
		return data, nil
	}
}

// setDefaults configures default values for all settings.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.environment", "dev")
	v.SetDefault("server.admin_origin", "http://localhost:3000")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "backoffice")
	v.SetDefault("database.password", "backoffice")
	v.SetDefault("database.database", "backoffice")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Identity provider defaults
	v.SetDefault("identity.base_url", "http://localhost:9999")
	v.SetDefault("identity.http_timeout", "10s")

	// Session defaults: 30 minute idle timeout
	v.SetDefault("session.timeout", "30m")
	v.SetDefault("session.login_path", "/admin/login")
	v.SetDefault("session.forbidden_path", "/admin/forbidden")

	// Payment gateway defaults
	v.SetDefault("payment.base_url", "http://localhost:8080")
	v.SetDefault("payment.return_path", "/checkout/return")
	v.SetDefault("payment.cancel_path", "/checkout/cancel")
	v.SetDefault("payment.notify_path", "/api/payments/notify")
}
