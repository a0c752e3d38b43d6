package storage

import (
	"context"
	"errors"
	"io"
)

// ErrExists 目标文件已存在，上传不会覆盖任何已有文件
var ErrExists = errors.New("file already exists")

// Provider 上传文件存储接口
type Provider interface {
	// SaveWithContext 以独占方式创建文件并写入内容
	SaveWithContext(ctx context.Context, name string, file io.Reader) error

	// DeleteWithContext 删除文件
	DeleteWithContext(ctx context.Context, name string) error

	// List 列出存储目录中的文件名
	List(ctx context.Context) ([]string, error)

	// Health 检查存储健康状态
	Health(ctx context.Context) error

	// Name 返回存储名称
	Name() string
}
