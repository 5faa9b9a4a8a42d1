package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from an optional YAML file, with environment
// variables (dots replaced by underscores, e.g. AUTH_SECRET) taking
// precedence over file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		_ = v.ReadInConfig()
	}

	v.SetDefault("app.name", "waypost-api")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.version", "0.1.0")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.graceful_timeout", "10s")

	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", "30m")

	// Registered with an empty default so AutomaticEnv can see the key.
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "waypost")
	v.SetDefault("auth.cookie_domain", "")
	v.SetDefault("auth.access_ttl", "15m")
	v.SetDefault("auth.refresh_ttl", "336h") // 14 days
	v.SetDefault("auth.cookie_name", "refresh_token")
	v.SetDefault("auth.cookie_path", "/v1/auth")
	v.SetDefault("auth.cookie_secure", false)

	v.SetDefault("cache.retry_attempts", 3)
	v.SetDefault("cache.retry_base", "100ms")
	v.SetDefault("cache.retry_max", "2s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Auth.Secret) == "" {
		return nil, ErrMissingSecret
	}
	return &cfg, nil
}
