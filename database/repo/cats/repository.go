package cats

import (
	"errors"
	"fmt"

	"github.com/anoixa/cat-catalog/config"
	"github.com/anoixa/cat-catalog/database"
	"github.com/anoixa/cat-catalog/database/models"
	"gorm.io/gorm"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("cat not found")

// Repository 猫咪仓库接口
// 所有方法都是阻塞调用，调用方负责在 worker 池中执行。
type Repository interface {
	// List 返回最多 limit 条记录
	List(conn *database.Conn, limit int) ([]*models.Cat, error)
	// GetByID 通过主键获取记录，不存在时返回 ErrNotFound
	GetByID(conn *database.Conn, id uint) (*models.Cat, error)
	// Insert 插入一条记录
	Insert(conn *database.Conn, cat *models.NewCat) (*models.Cat, error)
}

// GormRepository 基于 GORM 的实现
type GormRepository struct{}

// NewRepository 创建新的猫咪仓库
func NewRepository() *GormRepository {
	return &GormRepository{}
}

// List 获取列表，limit 超出上限时按上限截断
func (r *GormRepository) List(conn *database.Conn, limit int) ([]*models.Cat, error) {
	if limit <= 0 || limit > config.MaxListLimit {
		limit = config.MaxListLimit
	}

	cats := make([]*models.Cat, 0, limit)
	if err := conn.DB().Order("id asc").Limit(limit).Find(&cats).Error; err != nil {
		return nil, fmt.Errorf("failed to list cats: %w", err)
	}
	return cats, nil
}

// GetByID 通过ID获取记录
func (r *GormRepository) GetByID(conn *database.Conn, id uint) (*models.Cat, error) {
	var cat models.Cat
	err := conn.DB().First(&cat, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get cat %d: %w", id, err)
	}
	return &cat, nil
}

// Insert 插入记录，返回带有数据库生成ID的记录
func (r *GormRepository) Insert(conn *database.Conn, newCat *models.NewCat) (*models.Cat, error) {
	cat := newCat.ToModel()
	if err := conn.DB().Create(cat).Error; err != nil {
		return nil, fmt.Errorf("failed to insert cat %q: %w", newCat.Name, err)
	}
	return cat, nil
}

// 确保 GormRepository 实现了 Repository
var _ Repository = (*GormRepository)(nil)
