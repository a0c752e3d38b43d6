package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anoixa/cat-catalog/api/common"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nano
}

// IPRateLimiter 按客户端 IP 限流
type IPRateLimiter struct {
	rps        float64       // 每秒请求数
	burst      int           // 令牌桶的容量
	expireTime time.Duration // 过期时间
	limiterMap sync.Map
	stopOnce   sync.Once
	stopChan   chan struct{}
}

// NewIPRateLimiter 创建限流器，rps <= 0 时不限流
func NewIPRateLimiter(rps float64, burst int, expireTime time.Duration) *IPRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if expireTime <= 0 {
		expireTime = 10 * time.Minute
	}
	limiter := &IPRateLimiter{
		rps:        rps,
		burst:      burst,
		expireTime: expireTime,
		stopChan:   make(chan struct{}),
	}

	if rps > 0 {
		go limiter.cleanupStaleClients()
	}

	return limiter
}

// Middleware 返回 Gin 中间件
func (rl *IPRateLimiter) Middleware() gin.HandlerFunc {
	if rl.rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	retryAfter := strconv.Itoa(int(1/rl.rps) + 1)
	return func(c *gin.Context) {
		client := rl.get(c.ClientIP())
		client.lastSeen.Store(time.Now().UnixNano())

		if !client.limiter.Allow() {
			c.Header("Retry-After", retryAfter)
			common.RespondErrorAbort(c, http.StatusTooManyRequests, "Too many requests")
			return
		}

		c.Next()
	}
}

func (rl *IPRateLimiter) get(ip string) *clientLimiter {
	if val, ok := rl.limiterMap.Load(ip); ok {
		return val.(*clientLimiter)
	}
	client := &clientLimiter{limiter: rate.NewLimiter(rate.Limit(rl.rps), rl.burst)}
	val, _ := rl.limiterMap.LoadOrStore(ip, client)
	return val.(*clientLimiter)
}

// StopCleanup 停止后台清理，可重复调用
func (rl *IPRateLimiter) StopCleanup() {
	rl.stopOnce.Do(func() { close(rl.stopChan) })
}

func (rl *IPRateLimiter) cleanupStaleClients() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evict(time.Now())
		case <-rl.stopChan:
			return
		}
	}
}

// evict 删除超过 expireTime 未出现的客户端
func (rl *IPRateLimiter) evict(now time.Time) {
	rl.limiterMap.Range(func(key, value interface{}) bool {
		client := value.(*clientLimiter)
		if now.Sub(time.Unix(0, client.lastSeen.Load())) > rl.expireTime {
			rl.limiterMap.Delete(key)
		}
		return true
	})
}
