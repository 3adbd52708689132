package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// KeyFunc 限流维度
type KeyFunc func(c *gin.Context) string

// ByClientIP 按客户端 IP 限流
func ByClientIP(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// ByUserID 按登录用户限流，未登录时退回 IP
func ByUserID(c *gin.Context) string {
	if id := GetCurrentUserID(c); id != 0 {
		return fmt.Sprintf("user:%d", id)
	}
	return ByClientIP(c)
}

// slidingWindow 滑动窗口计数
type slidingWindow struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	store  map[string][]time.Time
}

func newSlidingWindow(max int, window time.Duration) *slidingWindow {
	return &slidingWindow{max: max, window: window, store: make(map[string][]time.Time)}
}

func (w *slidingWindow) prune(ts []time.Time, cutoff time.Time) []time.Time {
	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// allow 记录一次请求，窗口内已达上限时返回 false
func (w *slidingWindow) allow(key string, now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	ts := w.prune(w.store[key], now.Add(-w.window))
	if len(ts) >= w.max {
		w.store[key] = ts
		return false
	}
	w.store[key] = append(ts, now)
	return true
}

// sweep 清理过期的 key
func (w *slidingWindow) sweep(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-w.window)
	for key, ts := range w.store {
		if ts = w.prune(ts, cutoff); len(ts) == 0 {
			delete(w.store, key)
		} else {
			w.store[key] = ts
		}
	}
}

// RateLimit 限流中间件
// 同一 key 在 window 内最多 maxRequests 次，超过则返回 429
func RateLimit(maxRequests int, window time.Duration, key KeyFunc, message string) gin.HandlerFunc {
	limiter := newSlidingWindow(maxRequests, window)
	// 定期清理过期数据
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for now := range ticker.C {
			limiter.sweep(now)
		}
	}()

	return func(c *gin.Context) {
		if !limiter.allow(key(c), time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    http.StatusTooManyRequests,
				"message": message,
			})
			return
		}
		c.Next()
	}
}
