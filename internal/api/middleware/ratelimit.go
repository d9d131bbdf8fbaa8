package middleware

import (
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimitConfig 限流配置（令牌桶）
type RateLimitConfig struct {
	Enabled bool
	RPS     float64 // 每秒稳定速率
	Burst   int     // 突发容量
}

// RateLimiter 基于 Token Bucket 的全局请求限流器
type RateLimiter struct {
	limiter       *rate.Limiter
	allowedCount  atomic.Int64
	rejectedCount atomic.Int64
}

// NewRateLimiter 创建限流器
// rps<=0 时默认每秒 50 个请求，burst<=0 时默认为稳定速率的 2 倍
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		rps = 50
	}
	if burst <= 0 {
		burst = int(rps * 2)
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Allow 检查是否允许请求（非阻塞）
func (l *RateLimiter) Allow() bool {
	if l.limiter.Allow() {
		l.allowedCount.Add(1)
		return true
	}
	l.rejectedCount.Add(1)
	return false
}

// AllowedCount 允许的请求数（累计）
func (l *RateLimiter) AllowedCount() int64 { return l.allowedCount.Load() }

// RejectedCount 被拒绝的请求数（累计）
func (l *RateLimiter) RejectedCount() int64 { return l.rejectedCount.Load() }

// RateLimit 限流中间件，超限返回 429
func RateLimit(cfg RateLimitConfig, logger *zap.Logger) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	l := NewRateLimiter(cfg.RPS, cfg.Burst)
	return func(c *gin.Context) {
		if !l.Allow() {
			logger.Warn("api rate limited",
				zap.String("path", c.Request.URL.Path),
				zap.String("remote_addr", c.ClientIP()),
				zap.Int64("rejected_total", l.RejectedCount()),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "too_many_requests",
				"message": "请求过于频繁，请稍后重试",
			})
			return
		}
		c.Next()
	}
}
