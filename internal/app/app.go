package app

import (
	"fmt"
	"log"

	"github.com/anoixa/cat-catalog/cache"
	"github.com/anoixa/cat-catalog/config"
	"github.com/anoixa/cat-catalog/database"
	catsRepo "github.com/anoixa/cat-catalog/database/repo/cats"
	"github.com/anoixa/cat-catalog/internal/upload"
	"github.com/anoixa/cat-catalog/internal/worker"
	"github.com/anoixa/cat-catalog/storage"
)

// ImagePrefix 上传图片对外暴露的 URL 前缀
const ImagePrefix = "/image"

// Container 依赖注入容器 - 管理所有服务的生命周期
type Container struct {
	config          *config.Config
	databaseFactory *database.Factory
	cacheFactory    *cache.Factory
	workers         *worker.WorkerPool
	storage         *storage.LocalStorage
	ingestor        *upload.Ingestor
	catsRepo        catsRepo.Repository
}

// NewContainer 创建新的依赖注入容器
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config: cfg,
	}
}

// InitDatabase 只初始化数据库，供 migrate/clean 等命令使用
func (c *Container) InitDatabase() error {
	if c.databaseFactory != nil {
		return nil
	}
	factory, err := database.NewFactory(c.config)
	if err != nil {
		return fmt.Errorf("failed to initialize database factory: %w", err)
	}
	c.databaseFactory = factory
	return nil
}

// InitServices 初始化缓存、工作池、存储与仓库
func (c *Container) InitServices() error {
	cacheFactory, err := cache.NewFactory(c.config)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	c.cacheFactory = cacheFactory

	local, err := storage.NewLocalStorage(c.config.UploadDir)
	if err != nil {
		return fmt.Errorf("failed to initialize upload storage: %w", err)
	}
	c.storage = local

	c.workers = worker.NewWorkerPool(c.config.WorkerCount, c.config.WorkerQueueSize)
	c.workers.Start()

	c.ingestor = upload.NewIngestor(c.storage, c.workers, ImagePrefix)

	var repo catsRepo.Repository = catsRepo.NewRepository()
	if provider := cacheFactory.GetProvider(); provider != nil {
		repo = catsRepo.NewCachedRepository(repo, provider, cacheFactory.TTL())
		log.Printf("[Container] Record cache enabled (%s)", provider.Name())
	}
	c.catsRepo = repo

	return nil
}

// GetDatabaseFactory 获取数据库工厂
func (c *Container) GetDatabaseFactory() *database.Factory {
	return c.databaseFactory
}

// GetDatabaseProvider 获取数据库提供者
func (c *Container) GetDatabaseProvider() database.Provider {
	if c.databaseFactory == nil {
		return nil
	}
	return c.databaseFactory.GetProvider()
}

// GetPool 获取数据库连接池
func (c *Container) GetPool() *database.Pool {
	if c.databaseFactory == nil {
		return nil
	}
	return c.databaseFactory.GetPool()
}

// GetCacheFactory 获取缓存工厂
func (c *Container) GetCacheFactory() *cache.Factory {
	return c.cacheFactory
}

// GetWorkers 获取阻塞任务工作池
func (c *Container) GetWorkers() *worker.WorkerPool {
	return c.workers
}

// GetStorage 获取上传目录存储
func (c *Container) GetStorage() *storage.LocalStorage {
	return c.storage
}

// GetIngestor 获取上传文件落盘器
func (c *Container) GetIngestor() *upload.Ingestor {
	return c.ingestor
}

// GetCatsRepository 获取猫咪仓库
func (c *Container) GetCatsRepository() catsRepo.Repository {
	return c.catsRepo
}

// Close 关闭所有服务
// 先停工作池，保证正在执行的数据库任务结束后再关闭连接。
func (c *Container) Close() error {
	if c.workers != nil {
		c.workers.Stop()
	}

	if c.cacheFactory != nil {
		if err := c.cacheFactory.Close(); err != nil {
			log.Printf("Error closing cache: %v", err)
		}
	}

	if c.databaseFactory != nil {
		if err := c.databaseFactory.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	return nil
}
