package core

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/anoixa/cat-catalog/api/middleware"
	"github.com/anoixa/cat-catalog/cache"
	"github.com/anoixa/cat-catalog/config"
	"github.com/anoixa/cat-catalog/database"
	catsRepo "github.com/anoixa/cat-catalog/database/repo/cats"
	"github.com/anoixa/cat-catalog/internal/upload"
	"github.com/anoixa/cat-catalog/internal/worker"
	"github.com/anoixa/cat-catalog/storage"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var startTime = time.Now()

// ServerDependencies 服务器依赖项
type ServerDependencies struct {
	Config       *config.Config
	Pool         *database.Pool
	CacheFactory *cache.Factory
	Workers      *worker.WorkerPool
	Storage      storage.Provider
	Ingestor     *upload.Ingestor
	CatsRepo     catsRepo.Repository
}

// 启动gin
func setupRouter(deps *ServerDependencies) (*gin.Engine, func()) {
	cfg := deps.Config
	router := gin.New()

	// 全局中间件
	// 仅在开发版本时启用 gin 日志
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else if gin.Mode() != gin.TestMode {
		router.Use(gin.Logger())
	}
	router.Use(gin.Recovery())

	if len(cfg.CorsAllowOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CorsAllowOrigins,
			AllowMethods: []string{"GET", "POST", "HEAD", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Length", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}

	_ = router.SetTrustedProxies(nil)

	// 超出部分写入临时文件
	router.MaxMultipartMemory = cfg.UploadMaxBytes()

	// 基础监控指标
	metrics := middleware.NewMetrics()
	router.Use(metrics.Middleware())

	// 速率限制
	apiRateLimiter := middleware.NewIPRateLimiter(cfg.RateLimitApiRPS, cfg.RateLimitApiBurst, cfg.RateLimitExpireTime)
	cleanup := func() {
		apiRateLimiter.StopCleanup()
	}

	RegisterRoutes(router, &RouterDependencies{
		Server:         deps,
		Metrics:        metrics,
		APIRateLimiter: apiRateLimiter,
	})

	return router, cleanup
}

// StartServer 创建 http.Server
// 配置了 TLS 时在这里加载证书，证书无效直接返回错误，调用方应退出进程。
func StartServer(deps *ServerDependencies) (*http.Server, func(), error) {
	cfg := deps.Config

	tlsConfig, err := loadTLSConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	router, clean := setupRouter(deps)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
		TLSConfig:    tlsConfig,
	}

	return srv, clean, nil
}

// loadTLSConfig 未启用 TLS 时返回 nil
func loadTLSConfig(cfg *config.Config) (*tls.Config, error) {
	if !cfg.TLSEnabled() {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate %s: %w", cfg.TLSCertFile, err)
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}, nil
}
