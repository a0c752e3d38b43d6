package cache

import (
	"fmt"
	"log"
	"time"

	"github.com/anoixa/cat-catalog/cache/memory"
	"github.com/anoixa/cat-catalog/cache/redis"
	"github.com/anoixa/cat-catalog/config"
)

const (
	TypeNone   = "none"
	TypeMemory = "memory"
	TypeRedis  = "redis"
)

// DefaultTTL 记录缓存默认过期时间
const DefaultTTL = 10 * time.Minute

// Factory 缓存工厂，按配置创建唯一的缓存后端
type Factory struct {
	provider Provider
	ttl      time.Duration
}

// NewFactory 创建缓存工厂
// cache_type 为 none 时 GetProvider 返回 nil，调用方应直接使用底层仓库。
func NewFactory(cfg *config.Config) (*Factory, error) {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	factory := &Factory{ttl: ttl}

	switch cfg.CacheType {
	case TypeNone:
		log.Println("[CacheFactory] Cache disabled")
		return factory, nil
	case "", TypeMemory:
		provider, err := memory.NewMemory(memory.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create memory cache: %w", err)
		}
		factory.provider = provider
	case TypeRedis:
		provider, err := redis.NewRedisFromConfig(&redis.Config{
			Address:      cfg.CacheRedisAddr,
			Password:     cfg.CacheRedisPassword,
			DB:           cfg.CacheRedisDB,
			PoolSize:     10,
			MinIdleConns: 2,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect redis cache at %s: %w", cfg.CacheRedisAddr, err)
		}
		factory.provider = provider
	default:
		return nil, fmt.Errorf("unsupported cache provider type: %s", cfg.CacheType)
	}

	log.Printf("[CacheFactory] Using %s cache, ttl=%s", factory.provider.Name(), ttl)
	return factory, nil
}

// NewFactoryWithProvider 用已有的 provider 构造工厂，测试使用
func NewFactoryWithProvider(provider Provider, ttl time.Duration) *Factory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Factory{provider: provider, ttl: ttl}
}

// GetProvider 获取缓存提供者，未启用时为 nil
func (f *Factory) GetProvider() Provider {
	return f.provider
}

// TTL 返回记录缓存的过期时间
func (f *Factory) TTL() time.Duration {
	return f.ttl
}

// Enabled 是否启用了缓存
func (f *Factory) Enabled() bool {
	return f.provider != nil
}

// Close 关闭缓存提供者
func (f *Factory) Close() error {
	if f.provider == nil {
		return nil
	}
	if err := f.provider.Close(); err != nil {
		log.Printf("[CacheFactory] Error closing %s cache: %v", f.provider.Name(), err)
		return err
	}
	return nil
}
