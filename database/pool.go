package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"gorm.io/gorm"
)

// DefaultAcquireTimeout 获取连接的默认等待上限
const DefaultAcquireTimeout = 5 * time.Second

// ErrPoolExhausted 在等待超时内没有可用连接
var ErrPoolExhausted = errors.New("database pool exhausted")

// Pool 有界连接池
// 容量与 sql.DB 的 MaxOpenConns 一致，Acquire 最多等待 timeout。
type Pool struct {
	provider Provider
	sem      *semaphore.Weighted
	size     int64
	timeout  time.Duration

	inUse    atomic.Int64
	acquired atomic.Int64
	timeouts atomic.Int64
}

// PoolStats 连接池统计
type PoolStats struct {
	Size     int64 `json:"size"`
	InUse    int64 `json:"in_use"`
	Acquired int64 `json:"acquired"`
	Timeouts int64 `json:"timeouts"`
}

// NewPool 创建连接池
func NewPool(provider Provider, size int, timeout time.Duration) *Pool {
	if size <= 0 {
		size = 10
	}
	if timeout <= 0 {
		timeout = DefaultAcquireTimeout
	}
	return &Pool{
		provider: provider,
		sem:      semaphore.NewWeighted(int64(size)),
		size:     int64(size),
		timeout:  timeout,
	}
}

// Acquire 获取一个连接，超时返回 ErrPoolExhausted
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.sem.Acquire(acquireCtx, 1); err != nil {
		// 调用方自己放弃了请求
		if ctx.Err() != nil {
			return nil, fmt.Errorf("acquire connection: %w", ctx.Err())
		}
		p.timeouts.Add(1)
		log.Printf("[Pool] No connection available within %s (size=%d)", p.timeout, p.size)
		return nil, fmt.Errorf("%w: no connection within %s", ErrPoolExhausted, p.timeout)
	}

	p.inUse.Add(1)
	p.acquired.Add(1)
	return &Conn{
		ctx:  ctx,
		db:   p.provider.WithContext(ctx),
		pool: p,
	}, nil
}

func (p *Pool) release() {
	p.inUse.Add(-1)
	p.sem.Release(1)
}

// Stats 返回统计信息
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Size:     p.size,
		InUse:    p.inUse.Load(),
		Acquired: p.acquired.Load(),
		Timeouts: p.timeouts.Load(),
	}
}

// Ping 占用一个连接配额检查数据库，不会越过连接池上限
func (p *Pool) Ping(ctx context.Context) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	return p.provider.Ping(ctx)
}

// Timeout 返回获取连接的等待上限
func (p *Pool) Timeout() time.Duration {
	return p.timeout
}

// Conn 从 Pool 借出的连接，归属于单个请求
type Conn struct {
	ctx  context.Context
	db   *gorm.DB
	pool *Pool
	once sync.Once
}

// NewConn 包装一个不受 Pool 管理的连接
func NewConn(ctx context.Context, db *gorm.DB) *Conn {
	return &Conn{ctx: ctx, db: db.WithContext(ctx)}
}

// WithoutCancel 返回不随原请求取消的同一连接
// 不负责归还，归还仍由原 Conn 完成，原 Conn 必须在它用完之后才 Release。
func (c *Conn) WithoutCancel() *Conn {
	ctx := context.WithoutCancel(c.ctx)
	return &Conn{ctx: ctx, db: c.db.WithContext(ctx)}
}

// DB 返回绑定了请求上下文的 *gorm.DB
func (c *Conn) DB() *gorm.DB {
	return c.db
}

// Context 返回借出连接时的上下文
func (c *Conn) Context() context.Context {
	return c.ctx
}

// Release 归还连接，可重复调用
func (c *Conn) Release() {
	c.once.Do(func() {
		if c.pool != nil {
			c.pool.release()
		}
	})
}
