package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config carries everything the API server needs at startup. Values come from
// optional config files (accessdesk.yaml in the working directory or /etc/accessdesk)
// and are overridable through ACCESSDESK_* environment variables, e.g.
// ACCESSDESK_PG_DSN or ACCESSDESK_AUTH_ACCESS_SECRET.
type Config struct {
	ListenAddr string
	PGDSN      string

	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	RateBurst  int
	RatePerSec int

	MaxBodyBytes int64
}

// Load reads configuration with defaults, an optional config file and
// environment overrides, in that order of precedence (env wins).
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("pg.dsn", "")
	v.SetDefault("auth.access_secret", "")
	v.SetDefault("auth.refresh_secret", "")
	v.SetDefault("auth.access_ttl", "1h")
	v.SetDefault("auth.refresh_ttl", "168h")
	v.SetDefault("rate.burst", 20)
	v.SetDefault("rate.per_sec", 10)
	v.SetDefault("max_body_bytes", 1<<20)

	v.SetConfigName("accessdesk")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/accessdesk")

	v.SetEnvPrefix("ACCESSDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Missing config file is fine; env and defaults carry the rest.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	c := Config{
		ListenAddr:    v.GetString("listen_addr"),
		PGDSN:         v.GetString("pg.dsn"),
		AccessSecret:  v.GetString("auth.access_secret"),
		RefreshSecret: v.GetString("auth.refresh_secret"),
		AccessTTL:     v.GetDuration("auth.access_ttl"),
		RefreshTTL:    v.GetDuration("auth.refresh_ttl"),
		RateBurst:     v.GetInt("rate.burst"),
		RatePerSec:    v.GetInt("rate.per_sec"),
		MaxBodyBytes:  v.GetInt64("max_body_bytes"),
	}
	return c, nil
}
