package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	MemberRate      rate.Limit    // メンバーAPIのレート（req/sec、メンバー単位）
	MemberBurst     int           // メンバーAPIのバーストサイズ
	SignInRate      rate.Limit    // サインイン・取り込みのレート（req/sec、クライアントIP単位）
	SignInBurst     int           // サインイン・取り込みのバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// メンバーAPI 120 req/min、サインイン 30 req/min。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return NewRateLimiterConfig(120, 30)
}

// NewRateLimiterConfig は1分あたりのリクエスト数からレート制限設定を生成する。
func NewRateLimiterConfig(memberPerMinute, signInPerMinute int) RateLimiterConfig {
	return RateLimiterConfig{
		MemberRate:      rate.Limit(float64(memberPerMinute) / 60.0),
		MemberBurst:     memberPerMinute,
		SignInRate:      rate.Limit(float64(signInPerMinute) / 60.0),
		SignInBurst:     signInPerMinute,
		CleanupInterval: 5 * time.Minute,
	}
}

// keyedEntry はキーごとのリミッターと最終アクセス時刻を保持する。
type keyedEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// keyedLimiters はキー（メンバーIDやIP）ごとのトークンバケットの集合。
type keyedLimiters struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	entries map[string]*keyedEntry
}

func newKeyedLimiters(limit rate.Limit, burst int) *keyedLimiters {
	return &keyedLimiters{
		limit:   limit,
		burst:   burst,
		entries: make(map[string]*keyedEntry),
	}
}

func (k *keyedLimiters) allow(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.entries[key]
	if !ok {
		e = &keyedEntry{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.entries[key] = e
	}
	e.lastAccess = time.Now()
	return e.limiter.Allow()
}

func (k *keyedLimiters) len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

func (k *keyedLimiters) evictOlderThan(cutoff time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for key, e := range k.entries {
		if e.lastAccess.Before(cutoff) {
			delete(k.entries, key)
		}
	}
}

// RateLimiter はメンバー単位とクライアントIP単位のレート制限を管理する。
type RateLimiter struct {
	config RateLimiterConfig
	member *keyedLimiters
	signIn *keyedLimiters
	stopCh chan struct{}
	once   sync.Once
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config: config,
		member: newKeyedLimiters(config.MemberRate, config.MemberBurst),
		signIn: newKeyedLimiters(config.SignInRate, config.SignInBurst),
		stopCh: make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stopCh) })
}

// MemberMiddleware はメンバーAPIのレート制限ミドルウェアを返す。
// セッションがあればsubject id、なければクライアントIPをキーにする。
func (rl *RateLimiter) MemberMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.member, rl.config.MemberRate, "member", func(r *http.Request) string {
		if id := MemberIDFromContext(r.Context()); id != "" {
			return "member:" + id
		}
		return "ip:" + ClientIP(r)
	})
}

// SignInMiddleware はサインインと管理用エンドポイントのレート制限ミドルウェアを返す。
// クライアントIPをキーにする。
func (rl *RateLimiter) SignInMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.signIn, rl.config.SignInRate, "signin", ClientIP)
}

func (rl *RateLimiter) middleware(
	limiters *keyedLimiters,
	limit rate.Limit,
	limitType string,
	keyFn func(*http.Request) string,
) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			if !limiters.allow(key) {
				writeRateLimitResponse(w, limit)
				slog.Warn("rate limit exceeded",
					slog.String("key", key),
					slog.String("limit_type", limitType),
				)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MemberLimiterCount は管理中のメンバーAPIリミッター数を返す。
func (rl *RateLimiter) MemberLimiterCount() int { return rl.member.len() }

// SignInLimiterCount は管理中のサインインリミッター数を返す。
func (rl *RateLimiter) SignInLimiterCount() int { return rl.signIn.len() }

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

// cleanup は最終アクセスからCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	cutoff := time.Now().Add(-2 * rl.config.CleanupInterval)
	rl.member.evictOlderThan(cutoff)
	rl.signIn.evictOlderThan(cutoff)
}

// ClientIP はリクエスト元のIPアドレスを返す。
// chiのRealIPミドルウェアの後に配置すると、プロキシヘッダーの値が使われる。
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := 1
	if r > 0 {
		retryAfterSec = int(math.Ceil(1.0 / float64(r)))
	}
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     "RATE_LIMIT_EXCEEDED",
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	})
}
