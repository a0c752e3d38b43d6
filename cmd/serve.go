package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anoixa/cat-catalog/api/core"
	"github.com/anoixa/cat-catalog/config"
	"github.com/anoixa/cat-catalog/internal/app"
	"github.com/anoixa/cat-catalog/utils"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start API server",
	Run: func(cmd *cobra.Command, args []string) {
		RunServer()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// mustLoadConfig 加载并校验配置，缺少 DATABASE_URL 等必需项时直接退出
func mustLoadConfig() *config.Config {
	config.InitConfig()
	cfg := config.Get()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

func RunServer() {
	cfg := mustLoadConfig()

	container := app.NewContainer(cfg)
	if err := container.InitDatabase(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	InitDatabase(container)

	if err := container.InitServices(); err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	if err := os.MkdirAll(cfg.StaticDir, os.ModePerm); err != nil {
		log.Fatalf("Failed to create static directory: %v", err)
	}

	// 创建服务器依赖
	deps := &core.ServerDependencies{
		Config:       cfg,
		Pool:         container.GetPool(),
		CacheFactory: container.GetCacheFactory(),
		Workers:      container.GetWorkers(),
		Storage:      container.GetStorage(),
		Ingestor:     container.GetIngestor(),
		CatsRepo:     container.GetCatsRepository(),
	}

	// 启动gin
	server, cleanup, err := core.StartServer(deps)
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	utils.SafeGo(func() {
		var err error
		if server.TLSConfig != nil {
			log.Printf("Server started on https://%s", server.Addr)
			err = server.ListenAndServeTLS("", "")
		} else {
			log.Printf("Server started on http://%s", server.Addr)
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	})

	// 处理退出signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if cleanup != nil {
		cleanup()
		log.Println("Cleanup tasks finished.")
	}

	// 关闭 DI 容器
	if err := container.Close(); err != nil {
		log.Printf("Error closing container: %v", err)
	}

	log.Println("Server exited successfully")
}

// InitDatabase 自动建表
func InitDatabase(container *app.Container) {
	factory := container.GetDatabaseFactory()
	log.Printf("Initializing database, database type: %s", factory.GetProvider().Name())

	// 自动DDL
	if err := factory.AutoMigrate(); err != nil {
		log.Fatalf("Failed to auto migrate database: %v", err)
	}

	log.Println("Database initialized successfully")
}
