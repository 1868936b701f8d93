package api

import (
	"net/http"
	"sync"
	"time"

	"saludables/internal/logger"
)

// 文档注释：令牌桶（每秒补满）
// 约束：不排队，令牌耗尽直接拒绝；now 可注入便于测试。
type TokenBucket struct {
	capacity int
	tokens   int
	lastSec  int64
	now      func() time.Time
	mu       sync.Mutex
}

func NewTokenBucket(qps int) *TokenBucket {
	if qps <= 0 {
		qps = 1
	}
	return &TokenBucket{capacity: qps, tokens: qps, lastSec: time.Now().Unix(), now: time.Now}
}

// Allow：取一个令牌
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	nowSec := tb.now().Unix()
	if tb.lastSec != nowSec {
		tb.lastSec = nowSec
		tb.tokens = tb.capacity
	}
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Gate：令牌耗尽时返回 429
func Gate(tb *TokenBucket, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !tb.Allow() {
			logger.L().Warn("refresh_throttled", "path", r.URL.Path)
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many refresh requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
