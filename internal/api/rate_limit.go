package api

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/mautops/integration-monitor/internal/config"
	"golang.org/x/time/rate"
)

// 超过该数量的客户端时清空重建，避免内存无限增长
const maxTrackedClients = 10000

// 运维端点不参与限流与追踪，访问日志降为 debug
var opsPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// RateLimiter 按客户端 IP 的令牌桶限流，参数可在运行时更新
type RateLimiter struct {
	mu      sync.Mutex
	enabled bool
	limit   rate.Limit
	burst   int
	clients map[string]*rate.Limiter
}

// NewRateLimiter 创建限流器
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	l := &RateLimiter{}
	l.Update(cfg)
	return l
}

// Update 更新限流参数，已有客户端的令牌桶会被重置
func (l *RateLimiter) Update(cfg config.RateLimitConfig) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.enabled = cfg.Enabled && cfg.RPS > 0
	l.limit = rate.Limit(cfg.RPS)
	l.burst = cfg.Burst
	if l.burst <= 0 {
		l.burst = 1
	}
	l.clients = make(map[string]*rate.Limiter)
}

// Allow 判断客户端的请求是否放行
func (l *RateLimiter) Allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return true
	}

	limiter, ok := l.clients[client]
	if !ok {
		if len(l.clients) >= maxTrackedClients {
			l.clients = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.clients[client] = limiter
	}
	return limiter.Allow()
}

// Middleware 限流中间件
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if opsPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		if !l.Allow(c.ClientIP()) {
			Error(c, http.StatusTooManyRequests, "Too many requests")
			c.Abort()
			return
		}
		c.Next()
	}
}
