package core

import (
	"net/http"
	"path/filepath"

	"github.com/anoixa/cat-catalog/api/common"
	handlerCats "github.com/anoixa/cat-catalog/api/handler/cats"
	"github.com/anoixa/cat-catalog/api/middleware"
	"github.com/anoixa/cat-catalog/config"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// RouterDependencies 路由注册依赖
type RouterDependencies struct {
	Server         *ServerDependencies
	Metrics        *middleware.Metrics
	APIRateLimiter *middleware.IPRateLimiter
}

// RegisterRoutes 注册所有路由
func RegisterRoutes(router *gin.Engine, deps *RouterDependencies) {
	// 基础路由
	registerBasicRoutes(router, deps)

	// 静态文件
	registerStaticRoutes(router, deps.Server.Config)

	// API 路由
	registerAPIRoutes(router, deps)
}

// registerBasicRoutes 注册基础路由
func registerBasicRoutes(router *gin.Engine, deps *RouterDependencies) {
	healthHandler := NewHealthHandler(deps.Server)
	router.GET("/health", healthHandler.Handle)

	router.GET("/version", func(context *gin.Context) {
		common.RespondSuccess(context, gin.H{
			"version": config.Version,
			"commit":  config.CommitHash,
		})
	})

	router.GET("/metrics", func(context *gin.Context) {
		context.JSON(http.StatusOK, deps.Metrics.Snapshot())
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// registerStaticRoutes 首页、静态资源与已上传的图片，目录开启列表
func registerStaticRoutes(router *gin.Engine, cfg *config.Config) {
	index := filepath.Join(cfg.StaticDir, "index.html")
	router.GET("/", func(context *gin.Context) {
		context.File(index)
	})

	router.StaticFS("/static", gin.Dir(cfg.StaticDir, true))
	router.StaticFS("/image", gin.Dir(cfg.UploadDir, true))
}

// registerAPIRoutes 注册 API 路由
func registerAPIRoutes(router *gin.Engine, deps *RouterDependencies) {
	srv := deps.Server
	cfg := srv.Config

	catHandler := handlerCats.NewHandler(
		srv.CatsRepo,
		srv.Pool,
		srv.Workers,
		srv.Ingestor,
		cfg.ListLimit,
		cfg.UploadMaxBytes(),
	)

	apiGroup := router.Group("/api")
	apiGroup.Use(middleware.NoStore()) // 所有API禁止缓存
	apiGroup.Use(deps.APIRateLimiter.Middleware())
	{
		catHandler.RegisterRoutes(apiGroup) // GET /api/cats, GET /api/cat/{id}, POST /api/add_cat
	}
}
