package database

import (
	"fmt"
	"log"

	"github.com/anoixa/cat-catalog/config"
	"github.com/anoixa/cat-catalog/database/models"
)

// Factory 数据库工厂 - 负责创建和管理数据库提供者与连接池
type Factory struct {
	provider Provider
	pool     *Pool
}

// NewFactory 创建新的数据库工厂
func NewFactory(cfg *config.Config) (*Factory, error) {
	log.Println("Initializing database provider...")

	provider, err := NewGormProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database provider: %w", err)
	}

	log.Printf("Database provider '%s' initialized successfully", provider.Name())

	return &Factory{
		provider: provider,
		pool:     NewPool(provider, cfg.DBMaxOpenConns, cfg.DBPoolTimeout),
	}, nil
}

// GetProvider 获取数据库提供者
func (f *Factory) GetProvider() Provider {
	return f.provider
}

// GetPool 获取连接池
func (f *Factory) GetPool() *Pool {
	return f.pool
}

// Close 关闭数据库连接
func (f *Factory) Close() error {
	if f.provider != nil {
		return f.provider.Close()
	}
	return nil
}

// AutoMigrate 自动迁移数据库结构
func (f *Factory) AutoMigrate() error {
	if f.provider == nil {
		return fmt.Errorf("database provider not initialized")
	}

	log.Println("Running database auto migration...")
	if err := f.provider.AutoMigrate(&models.Cat{}); err != nil {
		return fmt.Errorf("failed to auto migrate database: %w", err)
	}
	log.Println("Database auto migration completed.")
	return nil
}
