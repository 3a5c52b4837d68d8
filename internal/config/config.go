// Package config はアプリケーション設定の読み込みを行う。
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
// koanfタグは環境変数名を小文字化したキーに対応する（YAMLファイルでも同じキーを使う）。
type Config struct {
	// Database
	DatabaseURL string `koanf:"database_url"`

	// OAuth (Twitch)
	TwitchClientID     string `koanf:"twitch_client_id"`
	TwitchClientSecret string `koanf:"twitch_client_secret"`
	TwitchRedirectURL  string `koanf:"twitch_redirect_url"`

	// Session
	SessionMaxAge          int           `koanf:"session_max_age"`
	SessionCleanupInterval time.Duration `koanf:"session_cleanup_interval"`

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral int `koanf:"rate_limit_general"`
	RateLimitAsk     int `koanf:"rate_limit_ask"`

	// Page
	PageQueryTimeout time.Duration `koanf:"page_query_timeout"`

	// Realtime（空の場合は単一インスタンス構成）
	RedisURL string `koanf:"redis_url"`

	// Server
	ServerPort string `koanf:"server_port"`
	BaseURL    string `koanf:"base_url"`

	// Cookie
	CookieSecure bool   `koanf:"-"`
	CookieDomain string `koanf:"cookie_domain"`

	// CORS
	CORSAllowedOrigin string `koanf:"cors_allowed_origin"`

	// Logging
	LogLevel string `koanf:"log_level"`
}

// knownKeys は環境変数から取り込むキーの集合。
// 無関係な環境変数（PATHなど）をkoanfに読み込まないために使う。
var knownKeys = map[string]bool{
	"database_url":             true,
	"twitch_client_id":         true,
	"twitch_client_secret":     true,
	"twitch_redirect_url":      true,
	"session_max_age":          true,
	"session_cleanup_interval": true,
	"rate_limit_general":       true,
	"rate_limit_ask":           true,
	"page_query_timeout":       true,
	"redis_url":                true,
	"server_port":              true,
	"base_url":                 true,
	"cookie_domain":            true,
	"cors_allowed_origin":      true,
	"log_level":                true,
}

// Default はデフォルト値を設定したConfigを返す。
func Default() *Config {
	return &Config{
		SessionMaxAge:          2592000,
		SessionCleanupInterval: time.Hour,
		RateLimitGeneral:       120,
		RateLimitAsk:           10,
		PageQueryTimeout:       2 * time.Second,
		ServerPort:             "8080",
		LogLevel:               "info",
	}
}

// Load は設定を読み込む。
// pathが空でなくファイルが存在する場合はYAMLを読み込み、その上に環境変数を上書きする。
// 必須項目が未設定の場合はエラーを返す。
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	// DATABASE_URL -> database_url。空値は未設定として扱う。
	if err := k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, interface{}) {
		key = strings.ToLower(key)
		if !knownKeys[key] || value == "" {
			return "", nil
		}
		return key, value
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	if cfg.CORSAllowedOrigin == "" {
		cfg.CORSAllowedOrigin = strings.TrimRight(cfg.BaseURL, "/")
	}

	return cfg, nil
}

// Validate は必須項目と数値項目の範囲を検証する。
func (c *Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.TwitchClientID == "" {
		missing = append(missing, "TWITCH_CLIENT_ID")
	}
	if c.TwitchClientSecret == "" {
		missing = append(missing, "TWITCH_CLIENT_SECRET")
	}
	if c.TwitchRedirectURL == "" {
		missing = append(missing, "TWITCH_REDIRECT_URL")
	}
	if c.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("session_max_age must be positive")
	}
	if c.RateLimitGeneral <= 0 || c.RateLimitAsk <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	if c.PageQueryTimeout <= 0 {
		return fmt.Errorf("page_query_timeout must be positive")
	}
	if c.SessionCleanupInterval <= 0 {
		return fmt.Errorf("session_cleanup_interval must be positive")
	}
	return nil
}
