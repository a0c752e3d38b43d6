package upload

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"path"
	"path/filepath"
	"strings"

	"github.com/anoixa/cat-catalog/internal/worker"
	"github.com/anoixa/cat-catalog/storage"
	"github.com/google/uuid"
)

// ErrMissingUpload 表单中没有上传文件
var ErrMissingUpload = errors.New("missing upload")

// maxNameAttempts 同名冲突时重新生成文件名的次数
const maxNameAttempts = 3

// Store 上传文件的落盘位置
type Store interface {
	storage.Provider
	// FilePath 返回文件在上传目录下的路径
	FilePath(name string) string
}

// Form 解析后的 multipart 表单
// 同名文本字段以最后一个值为准；文件字段保留全部部件。
type Form struct {
	Texts map[string]string
	Files map[string][]*multipart.FileHeader
}

// Parse 将 multipart.Form 转为 Form
func Parse(form *multipart.Form) *Form {
	parsed := &Form{
		Texts: make(map[string]string),
		Files: make(map[string][]*multipart.FileHeader),
	}
	if form == nil {
		return parsed
	}

	for key, values := range form.Value {
		if len(values) > 0 {
			parsed.Texts[key] = values[len(values)-1]
		}
	}
	for key, files := range form.File {
		if len(files) > 0 {
			parsed.Files[key] = files
		}
	}
	return parsed
}

// File 返回字段的第一个文件，不存在时返回 ErrMissingUpload
func (f *Form) File(field string) (*multipart.FileHeader, error) {
	files := f.Files[field]
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: field %q", ErrMissingUpload, field)
	}
	return files[0], nil
}

// StoredFile 已保存的上传文件
type StoredFile struct {
	Name       string // 生成的文件名，如 0f8f...950e.png
	FilePath   string // 上传目录下的路径，如 image/0f8f...950e.png
	PublicPath string // 对外访问路径，如 /image/0f8f...950e.png
}

// Ingestor 把上传的文件写入存储
type Ingestor struct {
	store        Store
	workers      *worker.WorkerPool
	publicPrefix string
}

// NewIngestor 创建上传处理器，publicPrefix 为静态路由前缀
func NewIngestor(store Store, workers *worker.WorkerPool, publicPrefix string) *Ingestor {
	if publicPrefix == "" {
		publicPrefix = "/image"
	}
	return &Ingestor{
		store:        store,
		workers:      workers,
		publicPrefix: "/" + strings.Trim(publicPrefix, "/"),
	}
}

// Persist 以唯一文件名保存上传文件，写入在工作池中执行
func (i *Ingestor) Persist(ctx context.Context, fh *multipart.FileHeader) (*StoredFile, error) {
	if fh == nil {
		return nil, ErrMissingUpload
	}

	ext := SanitizeExt(fh.Filename)
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := uuid.NewString() + ext

		err := i.workers.Do(ctx, func() error {
			src, err := fh.Open()
			if err != nil {
				return fmt.Errorf("open upload %q: %w", fh.Filename, err)
			}
			defer src.Close()
			return i.store.SaveWithContext(ctx, name, src)
		})
		if errors.Is(err, storage.ErrExists) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("persist upload %q: %w", fh.Filename, err)
		}

		return &StoredFile{
			Name:       name,
			FilePath:   i.store.FilePath(name),
			PublicPath: path.Join(i.publicPrefix, name),
		}, nil
	}

	return nil, fmt.Errorf("persist upload %q: no unique name after %d attempts", fh.Filename, maxNameAttempts)
}

// SanitizeExt 取客户端文件名的扩展名，转小写，只保留字母数字
// 不合法或过长的扩展名返回空串。
func SanitizeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(strings.ReplaceAll(filename, "\\", "/"))))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
