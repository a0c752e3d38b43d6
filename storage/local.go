package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// LocalStorage 本地目录存储，所有文件平铺在同一目录下
type LocalStorage struct {
	dir         string
	absBasePath string
}

// NewLocalStorage 创建本地存储，目录不存在时自动创建并检查可写
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for '%s': %w", basePath, err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory '%s': %w", absPath, err)
	}

	s := &LocalStorage{
		dir:         basePath,
		absBasePath: absPath + string(os.PathSeparator),
	}
	if err := s.Health(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// resolve 校验文件名并返回绝对路径
func (s *LocalStorage) resolve(name string) (string, error) {
	if !IsValidStoragePath(name) {
		return "", fmt.Errorf("invalid storage path: %q", name)
	}

	fullPath := filepath.Join(s.absBasePath, name)
	if !strings.HasPrefix(fullPath, s.absBasePath) {
		return "", fmt.Errorf("invalid file path, potential directory traversal: %q", name)
	}
	return fullPath, nil
}

// SaveWithContext 保存文件
// 使用 O_EXCL 创建，同名文件已存在时返回 ErrExists；写入失败会删除半成品。
func (s *LocalStorage) SaveWithContext(ctx context.Context, name string, file io.Reader) error {
	dstPath, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dst, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, name)
		}
		return fmt.Errorf("failed to create destination file '%s': %w", dstPath, err)
	}

	if _, err := io.Copy(dst, file); err != nil {
		_ = dst.Close()
		_ = os.Remove(dstPath)
		return fmt.Errorf("failed to copy file content to '%s': %w", dstPath, err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dstPath)
		return fmt.Errorf("failed to flush '%s': %w", dstPath, err)
	}

	return nil
}

// DeleteWithContext 删除文件
func (s *LocalStorage) DeleteWithContext(ctx context.Context, name string) error {
	fullPath, err := s.resolve(name)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file to delete not found: %s", name)
		}
		return fmt.Errorf("failed to delete local file '%s': %w", fullPath, err)
	}
	return nil
}

// List 列出目录下的普通文件，跳过隐藏文件，按名称排序
func (s *LocalStorage) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.absBasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Health 检查目录可写
func (s *LocalStorage) Health(ctx context.Context) error {
	testFile := filepath.Join(s.absBasePath, ".write_test_"+strconv.FormatInt(time.Now().UnixNano(), 10))
	f, err := os.Create(testFile)
	if err != nil {
		return fmt.Errorf("upload directory '%s' is not writable: %w", s.absBasePath, err)
	}
	_ = f.Close()
	_ = os.Remove(testFile)
	return nil
}

// Name 返回存储名称
func (s *LocalStorage) Name() string {
	return "local"
}

// Dir 返回配置的目录（未转换为绝对路径）
func (s *LocalStorage) Dir() string {
	return s.dir
}

// FilePath 返回文件在配置目录下的路径，例如 ./image/abc.png
func (s *LocalStorage) FilePath(name string) string {
	return filepath.Join(s.dir, name)
}

// IsValidStoragePath 校验文件名：不含目录、不以点开头、只允许安全字符
func IsValidStoragePath(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}

	for _, r := range name {
		if (r < 'a' || r > 'z') &&
			(r < 'A' || r > 'Z') &&
			(r < '0' || r > '9') &&
			r != '-' && r != '_' && r != '.' {
			return false
		}
	}

	return true
}

var _ Provider = (*LocalStorage)(nil)
