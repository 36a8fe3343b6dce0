package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Feed data source（DATABASE_URLとFEED_URLのどちらかが必須）
	DatabaseURL         string
	FeedURL             string
	FeedViewerID        string
	FeedLimit           int
	FeedTimeout         time.Duration
	FeedMaxSize         int64
	FeedRefreshInterval time.Duration

	// Submission
	SubmitURL        string
	SubmitTimeout    time.Duration
	SubmitRatePerMin int

	// Media
	MediaBaseURL string
	MediaTimeout time.Duration
	MediaMaxSize int64

	// Card
	TextTruncateThreshold       int
	FlagImplicitDismissConfirms bool

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitPublish int

	// Logging
	LogLevel string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.SubmitURL = os.Getenv("SUBMIT_URL")
	if cfg.SubmitURL == "" {
		missing = append(missing, "SUBMIT_URL")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.FeedURL = os.Getenv("FEED_URL")
	if cfg.DatabaseURL == "" && cfg.FeedURL == "" {
		missing = append(missing, "DATABASE_URL or FEED_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if !strings.HasPrefix(cfg.SubmitURL, "http://") && !strings.HasPrefix(cfg.SubmitURL, "https://") {
		return nil, fmt.Errorf("SUBMIT_URL must be an http(s) URL: %q", cfg.SubmitURL)
	}

	// Optional fields with defaults
	cfg.FeedViewerID = getEnvString("FEED_VIEWER_ID", "")
	cfg.FeedLimit = getEnvInt("FEED_LIMIT", 50)
	cfg.FeedTimeout = getEnvDuration("FEED_TIMEOUT", 10*time.Second)
	cfg.FeedMaxSize = getEnvInt64("FEED_MAX_SIZE", 5242880)
	cfg.FeedRefreshInterval = getEnvDuration("FEED_REFRESH_INTERVAL", 0)
	cfg.SubmitTimeout = getEnvDuration("SUBMIT_TIMEOUT", 10*time.Second)
	cfg.SubmitRatePerMin = getEnvInt("SUBMIT_RATE_PER_MIN", 30)
	cfg.MediaBaseURL = getEnvString("MEDIA_BASE_URL", "")
	cfg.MediaTimeout = getEnvDuration("MEDIA_TIMEOUT", 5*time.Second)
	cfg.MediaMaxSize = getEnvInt64("MEDIA_MAX_SIZE", 52428800)
	cfg.TextTruncateThreshold = getEnvInt("TEXT_TRUNCATE_THRESHOLD", 150)
	cfg.FlagImplicitDismissConfirms = getEnvBool("FLAG_IMPLICIT_DISMISS_CONFIRMS", true)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 600)
	cfg.RateLimitPublish = getEnvInt("RATE_LIMIT_PUBLISH", 10)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// UsesDatabase はフィードデータソースとしてPostgreSQLを使うかを返す。
// DATABASE_URLが設定されていればFEED_URLより優先する。
func (c *Config) UsesDatabase() bool {
	return c.DatabaseURL != ""
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

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
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
