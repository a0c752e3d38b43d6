package cats

import (
	"context"
	"errors"

	"github.com/anoixa/cat-catalog/api/common"
	"github.com/anoixa/cat-catalog/api/middleware"
	"github.com/anoixa/cat-catalog/config"
	"github.com/anoixa/cat-catalog/database"
	catsRepo "github.com/anoixa/cat-catalog/database/repo/cats"
	"github.com/anoixa/cat-catalog/internal/upload"
	"github.com/anoixa/cat-catalog/internal/worker"
	"github.com/gin-gonic/gin"
)

// ConnPool 连接来源
type ConnPool interface {
	Acquire(ctx context.Context) (*database.Conn, error)
}

// Handler 猫咪目录处理器
type Handler struct {
	repo           catsRepo.Repository
	pool           ConnPool
	workers        *worker.WorkerPool
	ingestor       *upload.Ingestor
	listLimit      int
	maxUploadBytes int64
}

// NewHandler 创建处理器
func NewHandler(
	repo catsRepo.Repository,
	pool ConnPool,
	workers *worker.WorkerPool,
	ingestor *upload.Ingestor,
	listLimit int,
	maxUploadBytes int64,
) *Handler {
	if listLimit <= 0 || listLimit > config.MaxListLimit {
		listLimit = config.MaxListLimit
	}
	return &Handler{
		repo:           repo,
		pool:           pool,
		workers:        workers,
		ingestor:       ingestor,
		listLimit:      listLimit,
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes 注册到 /api 分组
func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/cats", h.ListCatsHandler)
	group.GET("/cat/:id", h.GetCatHandler)
	group.POST("/add_cat", middleware.MaxBodySize(h.maxUploadBytes), h.CreateCatHandler)
}

// withConn 借出一个连接，并在工作池中执行 fn
// 连接在 fn 返回后才归还。
func (h *Handler) withConn(ctx context.Context, fn func(conn *database.Conn) error) error {
	conn, err := h.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	return h.workers.Do(ctx, func() error {
		return fn(conn)
	})
}

// classify 把下层错误归入对应的分类
func classify(op string, err error) *common.Error {
	var appErr *common.Error
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, database.ErrPoolExhausted), errors.Is(err, worker.ErrQueueFull):
		return common.NewPoolExhaustedError(op, err)
	case errors.Is(err, catsRepo.ErrNotFound):
		return common.NewNotFoundError(op, "cat not found", err)
	case errors.Is(err, upload.ErrMissingUpload):
		return common.NewMissingUploadError(op, err)
	default:
		return common.NewUnexpectedError(op, err)
	}
}
