package middleware

import (
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

// Metrics 基础请求指标
type Metrics struct {
	requestCount    atomic.Int64
	requestDuration atomic.Int64 // 毫秒
	inFlight        atomic.Int64
	clientErrors    atomic.Int64
	serverErrors    atomic.Int64
}

// NewMetrics 创建指标收集器
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Middleware 记录请求数、耗时与 4xx/5xx 数量
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		m.inFlight.Add(1)
		defer m.inFlight.Add(-1)

		c.Next()

		m.requestDuration.Add(time.Since(startTime).Milliseconds())
		m.requestCount.Add(1)
		switch status := c.Writer.Status(); {
		case status >= 500:
			m.serverErrors.Add(1)
		case status >= 400:
			m.clientErrors.Add(1)
		}
	}
}

// Snapshot 获取当前指标
func (m *Metrics) Snapshot() map[string]interface{} {
	count := m.requestCount.Load()
	duration := m.requestDuration.Load()
	avg := 0.0
	if count > 0 {
		avg = float64(duration) / float64(count)
	}
	return map[string]interface{}{
		"request_count":       count,
		"request_duration_ms": duration,
		"avg_duration_ms":     avg,
		"in_flight":           m.inFlight.Load(),
		"client_errors":       m.clientErrors.Load(),
		"server_errors":       m.serverErrors.Load(),
	}
}
