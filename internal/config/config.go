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

// DefaultDotEnvPath は起動時に読み込む.envファイルのパス。
const DefaultDotEnvPath = ".env"

// minJWTSecretLength はHS256署名鍵の最小バイト数。
const minJWTSecretLength = 32

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Token
	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitBooking int

	// Trader
	FeedbackPreviewLimit int

	// Metrics
	MetricsEnabled bool

	// Logging
	LogLevel string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は.envファイルと環境変数からConfigを読み込む。
// .envファイルが存在しない場合は環境変数のみを使う。
func Load() (*Config, error) {
	return LoadFrom(DefaultDotEnvPath)
}

// LoadFrom は指定パスの.envファイルと環境変数からConfigを読み込む。
// 同じキーが両方にある場合は環境変数を優先する。プロセスの環境変数は変更しない。
// 必須環境変数が未設定の場合はエラーを返す。
func LoadFrom(dotEnvPath string) (*Config, error) {
	fileVars, err := readDotEnv(dotEnvPath)
	if err != nil {
		return nil, err
	}
	env := envSource{file: fileVars}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = env.get("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = env.get("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if len(cfg.JWTSecret) < minJWTSecretLength {
		return nil, fmt.Errorf("JWT_SECRET must be at least %d bytes", minJWTSecretLength)
	}

	// Optional fields with defaults
	cfg.JWTIssuer = env.getString("JWT_ISSUER", "")
	cfg.TokenTTL = env.getDuration("TOKEN_TTL", 24*time.Hour)
	cfg.RateLimitGeneral = env.getPositiveInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitBooking = env.getPositiveInt("RATE_LIMIT_BOOKING", 10)
	cfg.FeedbackPreviewLimit = env.getPositiveInt("FEEDBACK_PREVIEW_LIMIT", 5)
	cfg.MetricsEnabled = env.getBool("METRICS_ENABLED", true)
	cfg.LogLevel = strings.ToLower(env.getString("LOG_LEVEL", "info"))
	cfg.ServerPort = env.getString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = env.getString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// readDotEnv は.envファイルを読み込む。ファイルが存在しない場合は空のmapを返す。
func readDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf(".envファイルの読み込みに失敗しました: %w", err)
	}
	return vars, nil
}

// envSource は環境変数、次に.envファイルの順で値を引く。
// 空文字列の環境変数は未設定として扱う。
type envSource struct {
	file map[string]string
}

func (e envSource) get(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return e.file[key]
}

func (e envSource) getString(key, defaultVal string) string {
	if v := e.get(key); v != "" {
		return v
	}
	return defaultVal
}

func (e envSource) getPositiveInt(key string, defaultVal int) int {
	v := e.get(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func (e envSource) getBool(key string, defaultVal bool) bool {
	v := e.get(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func (e envSource) getDuration(key string, defaultVal time.Duration) time.Duration {
	v := e.get(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
