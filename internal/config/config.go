// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultRosterSourceURL は入会フォーム回答CSVの公開URL。
const DefaultRosterSourceURL = "https://hebbkx1anhila5yf.public.blob.vercel-storage.com/IRIS_%20Photography%20Society%20%28Responses%29-T6bYw5rCgQ0m1fqtqteHo0V4FmZW8A.csv"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Session
	SessionMaxAge          int
	SessionCleanupInterval time.Duration

	// Roster
	RosterSourceURL    string
	RosterBatchSize    int
	RosterFetchTimeout time.Duration
	RosterMaxSize      int64
	RosterSyncInterval time.Duration

	// Admin
	AdminAPIToken string

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitSignIn  int

	// Logging
	LogLevel string

	// Tracing
	OTLPEndpoint string
	OTLPInsecure bool

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	if cfg.GoogleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}

	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	if cfg.GoogleClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}

	cfg.BaseURL = strings.TrimRight(os.Getenv("BASE_URL"), "/")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.GoogleRedirectURL = getEnvString("GOOGLE_REDIRECT_URL", cfg.BaseURL+"/auth/callback")
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 604800)
	cfg.SessionCleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", time.Hour)
	cfg.RosterSourceURL = getEnvString("ROSTER_SOURCE_URL", DefaultRosterSourceURL)
	cfg.RosterBatchSize = getEnvInt("ROSTER_BATCH_SIZE", 100)
	cfg.RosterFetchTimeout = getEnvDuration("ROSTER_FETCH_TIMEOUT", 30*time.Second)
	cfg.RosterMaxSize = getEnvInt64("ROSTER_MAX_SIZE", 5242880)
	cfg.RosterSyncInterval = getEnvDuration("ROSTER_SYNC_INTERVAL", 0)
	cfg.AdminAPIToken = os.Getenv("ADMIN_API_TOKEN")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSignIn = getEnvInt("RATE_LIMIT_SIGNIN", 30)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.OTLPInsecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", cfg.BaseURL)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate は実行時にパニックや全拒否を起こす値を起動時に弾く。
func (c *Config) validate() error {
	if c.RosterBatchSize <= 0 {
		return fmt.Errorf("ROSTER_BATCH_SIZE must be positive: %d", c.RosterBatchSize)
	}
	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("SESSION_MAX_AGE must be positive: %d", c.SessionMaxAge)
	}
	if c.SessionCleanupInterval <= 0 {
		return fmt.Errorf("SESSION_CLEANUP_INTERVAL must be positive: %s", c.SessionCleanupInterval)
	}
	if c.RosterSyncInterval < 0 {
		return fmt.Errorf("ROSTER_SYNC_INTERVAL must not be negative: %s", c.RosterSyncInterval)
	}
	if c.RosterFetchTimeout <= 0 {
		return fmt.Errorf("ROSTER_FETCH_TIMEOUT must be positive: %s", c.RosterFetchTimeout)
	}
	if c.RosterMaxSize <= 0 {
		return fmt.Errorf("ROSTER_MAX_SIZE must be positive: %d", c.RosterMaxSize)
	}
	if c.RateLimitGeneral <= 0 {
		return fmt.Errorf("RATE_LIMIT_GENERAL must be positive: %d", c.RateLimitGeneral)
	}
	if c.RateLimitSignIn <= 0 {
		return fmt.Errorf("RATE_LIMIT_SIGNIN must be positive: %d", c.RateLimitSignIn)
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
