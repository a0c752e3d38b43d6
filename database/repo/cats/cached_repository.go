package cats

import (
	"fmt"
	"log"
	"time"

	"github.com/anoixa/cat-catalog/cache"
	"github.com/anoixa/cat-catalog/database"
	"github.com/anoixa/cat-catalog/database/models"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL 单条记录缓存时间
const DefaultCacheTTL = 10 * time.Minute

func cacheKey(id uint) string {
	return fmt.Sprintf("cat:id:%d", id)
}

// CachedRepository 带缓存的仓库装饰器
// 只缓存按ID查询的结果；记录插入后不会被修改，所以无需失效。
type CachedRepository struct {
	repo  Repository
	cache cache.Provider
	ttl   time.Duration
	group singleflight.Group
}

// NewCachedRepository 创建带缓存的仓库
func NewCachedRepository(repo Repository, provider cache.Provider, ttl time.Duration) *CachedRepository {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedRepository{
		repo:  repo,
		cache: provider,
		ttl:   ttl,
	}
}

// List 列表直接查库，新插入的记录需要立即可见
func (c *CachedRepository) List(conn *database.Conn, limit int) ([]*models.Cat, error) {
	return c.repo.List(conn, limit)
}

// GetByID 根据ID获取记录（带缓存）
// 并发的未命中请求合并为一次查询；ErrNotFound 不缓存。
func (c *CachedRepository) GetByID(conn *database.Conn, id uint) (*models.Cat, error) {
	ctx := conn.Context()
	key := cacheKey(id)

	var cached models.Cat
	if err := c.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	} else if !cache.IsCacheMiss(err) {
		log.Printf("[CachedRepository] Cache get failed for %s: %v", key, err)
	}

	// 查询结果由所有等待者共享，不能因为发起者断开而取消
	shared := conn.WithoutCancel()
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		cat, err := c.repo.GetByID(shared, id)
		if err != nil {
			return nil, err
		}
		if err := c.cache.Set(shared.Context(), key, cat, c.ttl); err != nil {
			log.Printf("[CachedRepository] Failed to cache %s: %v", key, err)
		}
		return cat, nil
	})
	if err != nil {
		return nil, err
	}

	// 共享结果的调用方各自拿一份拷贝
	cat := *v.(*models.Cat)
	return &cat, nil
}

// Insert 插入记录，并预热缓存
func (c *CachedRepository) Insert(conn *database.Conn, newCat *models.NewCat) (*models.Cat, error) {
	cat, err := c.repo.Insert(conn, newCat)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(conn.Context(), cacheKey(cat.ID), cat, c.ttl); err != nil {
		log.Printf("[CachedRepository] Failed to cache new cat %d: %v", cat.ID, err)
	}
	return cat, nil
}

var _ Repository = (*CachedRepository)(nil)
