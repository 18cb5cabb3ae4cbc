package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Push provider names.
const (
	PushProviderLog  = "log"
	PushProviderFCM  = "fcm"
	PushProviderExpo = "expo"
)

type Config struct {
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	DatabaseURL   string        `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32         `mapstructure:"DB_MIN_CONNS"`
	StoreTimeout  time.Duration `mapstructure:"STORE_TIMEOUT"`
	MigrationsDir string        `mapstructure:"MIGRATIONS_DIR"`

	RedisURL         string        `mapstructure:"REDIS_URL"`
	SettingsCacheTTL time.Duration `mapstructure:"SETTINGS_CACHE_TTL"`
	EventsStream     string        `mapstructure:"EVENTS_STREAM"`

	SosDefaultRadiusKm float64 `mapstructure:"SOS_DEFAULT_RADIUS_KM"`

	PushProvider            string        `mapstructure:"PUSH_PROVIDER"`
	FirebaseCredentialsFile string        `mapstructure:"FIREBASE_CREDENTIALS_FILE"`
	FirebaseProjectID       string        `mapstructure:"FIREBASE_PROJECT_ID"`
	ExpoAccessToken         string        `mapstructure:"EXPO_ACCESS_TOKEN"`
	ExpoBaseURL             string        `mapstructure:"EXPO_BASE_URL"`
	PushMaxConcurrency      int           `mapstructure:"PUSH_MAX_CONCURRENCY"`
	PushSendTimeout         time.Duration `mapstructure:"PUSH_SEND_TIMEOUT"`

	PushgatewayURL string `mapstructure:"PUSHGATEWAY_URL"`
}

var keys = []string{
	"ENV", "LOG_LEVEL",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "STORE_TIMEOUT", "MIGRATIONS_DIR",
	"REDIS_URL", "SETTINGS_CACHE_TTL", "EVENTS_STREAM",
	"SOS_DEFAULT_RADIUS_KM",
	"PUSH_PROVIDER", "FIREBASE_CREDENTIALS_FILE", "FIREBASE_PROJECT_ID",
	"EXPO_ACCESS_TOKEN", "EXPO_BASE_URL", "PUSH_MAX_CONCURRENCY", "PUSH_SEND_TIMEOUT",
	"PUSHGATEWAY_URL",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("STORE_TIMEOUT", "5s")
	v.SetDefault("SETTINGS_CACHE_TTL", "1m")
	v.SetDefault("EVENTS_STREAM", "rescue:events")
	v.SetDefault("SOS_DEFAULT_RADIUS_KM", 10)
	v.SetDefault("PUSH_PROVIDER", PushProviderLog)
	v.SetDefault("PUSH_MAX_CONCURRENCY", 16)
	v.SetDefault("PUSH_SEND_TIMEOUT", "10s")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.SosDefaultRadiusKm <= 0 {
		return fmt.Errorf("SOS_DEFAULT_RADIUS_KM must be positive, got %v", c.SosDefaultRadiusKm)
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive, got %s", c.StoreTimeout)
	}
	if c.PushMaxConcurrency <= 0 {
		return fmt.Errorf("PUSH_MAX_CONCURRENCY must be positive, got %d", c.PushMaxConcurrency)
	}
	if c.PushSendTimeout < 5*time.Second || c.PushSendTimeout > 30*time.Second {
		return fmt.Errorf("PUSH_SEND_TIMEOUT must be between 5s and 30s, got %s", c.PushSendTimeout)
	}

	switch c.PushProvider {
	case PushProviderLog:
	case PushProviderFCM:
		if c.FirebaseCredentialsFile == "" && c.FirebaseProjectID == "" {
			return fmt.Errorf("FIREBASE_CREDENTIALS_FILE or FIREBASE_PROJECT_ID is required when PUSH_PROVIDER is %q", PushProviderFCM)
		}
	case PushProviderExpo:
	default:
		return fmt.Errorf("PUSH_PROVIDER must be %q, %q, or %q, got %q",
			PushProviderLog, PushProviderFCM, PushProviderExpo, c.PushProvider)
	}

	if !c.IsDev() && c.PushProvider == PushProviderLog {
		return fmt.Errorf("PUSH_PROVIDER %q is only allowed when ENV=development", PushProviderLog)
	}
	return nil
}
