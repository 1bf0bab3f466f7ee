package config

import (
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/weiawesome/sync-party/pkg/config"
)

// ClientConfig configures the terminal client.
type ClientConfig struct {
	ServerURL string        `mapstructure:"server_url"`
	Username  string        `mapstructure:"username"`
	PartyID   string        `mapstructure:"party_id"`
	HideAfter time.Duration `mapstructure:"hide_after"`
	History   int           `mapstructure:"history"`
	// LogFile receives client logs; the terminal belongs to the UI.
	LogFile  string `mapstructure:"log_file"`
	LogLevel string `mapstructure:"log_level"`
}

// LoadClient reads client.yaml and SYNCPARTY_CLIENT_* overrides.
func LoadClient(path string) (*ClientConfig, error) {
	v, err := pkgconfig.Load(pkgconfig.Options{
		Path:      path,
		Name:      "client",
		EnvPrefix: EnvPrefix + "_CLIENT",
	})
	if err != nil {
		return nil, err
	}

	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("username", "")
	v.SetDefault("party_id", "")
	v.SetDefault("hide_after", "12s")
	v.SetDefault("history", 500)
	v.SetDefault("log_file", "party-client.log")
	v.SetDefault("log_level", "info")

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode client config: %w", err)
	}

	u, err := url.Parse(cfg.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid server_url %q", cfg.ServerURL)
	}
	return &cfg, nil
}
