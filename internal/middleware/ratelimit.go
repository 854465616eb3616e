package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // API全般のレート（req/sec）。100/900 ≒ 0.111 req/sec
	GeneralBurst    int           // API全般のバーストサイズ
	AuthRate        rate.Limit    // 認証エンドポイントのレート（req/sec）。20/900
	AuthBurst       int           // 認証エンドポイントのバーストサイズ
	OTPRate         rate.Limit    // OTP送信のレート（req/sec）。3/60
	OTPBurst        int           // OTP送信のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 100 req/15min、認証 20 req/15min、OTP送信 3 req/min（クライアントIPごと）。
func DefaultRateLimiterConfig(generalPerWindow, authPerWindow, otpPerMinute int) RateLimiterConfig {
	const window = 15 * 60 // 15分（秒）
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(generalPerWindow) / window),
		GeneralBurst:    generalPerWindow,
		AuthRate:        rate.Limit(float64(authPerWindow) / window),
		AuthBurst:       authPerWindow,
		OTPRate:         rate.Limit(float64(otpPerMinute) / 60.0),
		OTPBurst:        otpPerMinute,
		CleanupInterval: 5 * time.Minute,
	}
}

// clientLimiter はクライアントごとのレートリミッターとアクセス時刻を保持する。
type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterClass は1種類のレート制限クラスを管理する。
type limiterClass struct {
	name  string
	rate  rate.Limit
	burst int

	mu       sync.RWMutex
	limiters map[string]*clientLimiter
}

func newLimiterClass(name string, r rate.Limit, burst int) *limiterClass {
	return &limiterClass{
		name:     name,
		rate:     r,
		burst:    burst,
		limiters: make(map[string]*clientLimiter),
	}
}

// getOrCreate はクライアントのリミッターを取得または作成する。
func (lc *limiterClass) getOrCreate(clientKey string) *rate.Limiter {
	lc.mu.RLock()
	cl, exists := lc.limiters[clientKey]
	lc.mu.RUnlock()

	if exists {
		lc.mu.Lock()
		cl.lastAccess = time.Now()
		lc.mu.Unlock()
		return cl.limiter
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()

	// ダブルチェック
	if cl, exists := lc.limiters[clientKey]; exists {
		cl.lastAccess = time.Now()
		return cl.limiter
	}

	limiter := rate.NewLimiter(lc.rate, lc.burst)
	lc.limiters[clientKey] = &clientLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

func (lc *limiterClass) count() int {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	return len(lc.limiters)
}

func (lc *limiterClass) cleanup(now time.Time, ttl time.Duration) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	for key, cl := range lc.limiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(lc.limiters, key)
		}
	}
}

// RateLimiter はクライアントIPごとのレート制限を管理する。
// API全般、認証、OTP送信の3クラスを独立に提供する。
type RateLimiter struct {
	config  RateLimiterConfig
	general *limiterClass
	auth    *limiterClass
	otp     *limiterClass
	stopCh  chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		general: newLimiterClass("general", config.GeneralRate, config.GeneralBurst),
		auth:    newLimiterClass("auth", config.AuthRate, config.AuthBurst),
		otp:     newLimiterClass("otp", config.OTPRate, config.OTPBurst),
		stopCh:  make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.general)
}

// AuthMiddleware は認証エンドポイント専用のレート制限ミドルウェアを返す。
// API全般のレート制限とは独立に動作する。
func (rl *RateLimiter) AuthMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.auth)
}

// OTPMiddleware はOTP送信専用のレート制限ミドルウェアを返す。
// SMS送信コストを抑えるため最も厳しい制限を適用する。
func (rl *RateLimiter) OTPMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.otp)
}

func (rl *RateLimiter) middleware(class *limiterClass) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := clientIP(r)
			limiter := class.getOrCreate(clientKey)

			if !limiter.Allow() {
				writeRateLimitResponse(w, class.rate)
				slog.Warn("rate limit exceeded",
					slog.String("client_ip", clientKey),
					slog.String("limit_type", class.name),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GeneralLimiterCount は現在管理されているAPI全般リミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) GeneralLimiterCount() int {
	return rl.general.count()
}

// AuthLimiterCount は現在管理されている認証リミッターのエントリ数を返す。
func (rl *RateLimiter) AuthLimiterCount() int {
	return rl.auth.count()
}

// OTPLimiterCount は現在管理されているOTPリミッターのエントリ数を返す。
func (rl *RateLimiter) OTPLimiterCount() int {
	return rl.otp.count()
}

// clientIP はレート制限のキーとなるクライアントIPを決定する。
// リバースプロキシ経由の場合はX-Forwarded-Forの先頭を使用する。
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2
	now := time.Now()

	rl.general.cleanup(now, ttl)
	rl.auth.cleanup(now, ttl)
	rl.otp.cleanup(now, ttl)
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	// Retry-Afterの算出: 1トークンが補充されるまでの秒数
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	json.NewEncoder(w).Encode(map[string]string{
		"code":     "RATE_LIMIT_EXCEEDED",
		"message":  "リクエストが多すぎます。しばらく待ってから再度お試しください。",
		"category": "system",
		"action":   "指定された時間の経過後に再度お試しください。",
	})
}
