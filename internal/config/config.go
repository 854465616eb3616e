// Package config は環境変数ベースのアプリケーション設定を提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL  string
	MaxOpenConns int

	// Redis（未設定の場合はSMS認証機能を無効化する）
	RedisURL string

	// JWT
	JWTSecret string
	JWTExpiry time.Duration

	// Listing
	ListingLifetime time.Duration

	// Rate Limit（ウィンドウあたりの許可リクエスト数）
	RateLimitGeneral int
	RateLimitAuth    int
	RateLimitOTP     int

	// OTP
	OTPTTL         time.Duration
	OTPMaxAttempts int

	// SMS
	SMSAccountSID string
	SMSAuthToken  string
	SMSFrom       string
	SMSMockMode   bool

	// Blob Storage
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	PlaceholderImageURL string

	// Worker
	ExpireInterval time.Duration

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// .envファイルが存在する場合は先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	// .envはローカル開発用。存在しなくてもエラーにしない。
	_ = godotenv.Load()

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 20)
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.JWTExpiry = getEnvDuration("JWT_EXPIRY", 720*time.Hour)
	cfg.ListingLifetime = getEnvDuration("LISTING_LIFETIME", 30*24*time.Hour)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 100)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 20)
	cfg.RateLimitOTP = getEnvInt("RATE_LIMIT_OTP", 3)
	cfg.OTPTTL = getEnvDuration("OTP_TTL", 10*time.Minute)
	cfg.OTPMaxAttempts = getEnvInt("OTP_MAX_ATTEMPTS", 3)
	cfg.SMSAccountSID = getEnvString("SMS_ACCOUNT_SID", "")
	cfg.SMSAuthToken = getEnvString("SMS_AUTH_TOKEN", "")
	cfg.SMSFrom = getEnvString("SMS_FROM", "")
	cfg.SMSMockMode = getEnvBool("SMS_MOCK_MODE", cfg.SMSAccountSID == "")
	cfg.CloudinaryCloudName = getEnvString("CLOUDINARY_CLOUD_NAME", "")
	cfg.CloudinaryAPIKey = getEnvString("CLOUDINARY_API_KEY", "")
	cfg.CloudinaryAPISecret = getEnvString("CLOUDINARY_API_SECRET", "")
	cfg.PlaceholderImageURL = getEnvString("PLACEHOLDER_IMAGE_URL", "https://placehold.co/600x400?text=No+Image")
	cfg.ExpireInterval = getEnvDuration("EXPIRE_INTERVAL", 1*time.Hour)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
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
