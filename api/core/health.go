package core

import (
	"context"
	"net/http"
	"time"

	"github.com/anoixa/cat-catalog/cache"
	"github.com/anoixa/cat-catalog/config"
	"github.com/anoixa/cat-catalog/database"
	"github.com/anoixa/cat-catalog/storage"
	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// HealthHandler /health 处理器
type HealthHandler struct {
	deps *ServerDependencies
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(deps *ServerDependencies) *HealthHandler {
	return &HealthHandler{deps: deps}
}

// Handle 任一检查项不是 ok 时返回 503
func (h *HealthHandler) Handle(context *gin.Context) {
	ctx := context.Request.Context()

	checks := gin.H{
		"database": checkDatabaseHealth(ctx, h.deps.Pool),
		"storage":  checkStorageHealth(ctx, h.deps.Storage),
	}
	health := gin.H{
		"status":  "ok",
		"uptime":  time.Since(startTime).Round(time.Second).String(),
		"version": config.Version,
		"checks":  checks,
		"cache":   checkCacheHealth(h.deps.CacheFactory),
	}
	if h.deps.Pool != nil {
		health["pool"] = h.deps.Pool.Stats()
	}
	if h.deps.Workers != nil {
		health["workers"] = h.deps.Workers.Stats()
	}

	httpStatus := http.StatusOK
	for _, checkResult := range checks {
		if result, ok := checkResult.(string); ok && result != "ok" {
			httpStatus = http.StatusServiceUnavailable
			health["status"] = "degraded"
			break
		}
	}
	context.JSON(httpStatus, health)
}

// checkDatabaseHealth 通过连接池检查，连接全部被占用时视为不可用
func checkDatabaseHealth(ctx context.Context, pool *database.Pool) string {
	if pool == nil {
		return "not initialized"
	}

	pingCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		return "unavailable: " + err.Error()
	}
	return "ok"
}

// checkCacheHealth 缓存是可选的，不参与整体状态判断
func checkCacheHealth(cacheFactory *cache.Factory) string {
	if cacheFactory == nil || !cacheFactory.Enabled() {
		return "disabled"
	}
	return cacheFactory.GetProvider().Name()
}

func checkStorageHealth(ctx context.Context, provider storage.Provider) string {
	if provider == nil {
		return "not initialized"
	}
	if err := provider.Health(ctx); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}
