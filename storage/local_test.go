package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("connection reset")
}

// TestLocalStorage_PathTraversal_Prevention 测试路径遍历防护
func TestLocalStorage_PathTraversal_Prevention(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	traversalAttempts := []string{
		"../../../etc/passwd",
		"..\\..\\..\\windows\\system32\\config\\sam",
		"../../.env",
		"..",
		".",
		"",
		"folder/../../../etc/passwd",
		"/absolute/path",
		"sub/dir.png",
	}

	for _, attempt := range traversalAttempts {
		t.Run("save_"+attempt, func(t *testing.T) {
			err := storage.SaveWithContext(ctx, attempt, strings.NewReader("test content"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid")
		})
	}

	err = storage.DeleteWithContext(ctx, "../../../etc/passwd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid")
}

func TestLocalStorage_SaveAndDelete(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewLocalStorage(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, storage.SaveWithContext(ctx, "tom.png", strings.NewReader("meow")))

	data, err := os.ReadFile(filepath.Join(dir, "tom.png"))
	require.NoError(t, err)
	assert.Equal(t, "meow", string(data))
	assert.Equal(t, filepath.Join(dir, "tom.png"), storage.FilePath("tom.png"))

	require.NoError(t, storage.DeleteWithContext(ctx, "tom.png"))
	_, err = os.Stat(filepath.Join(dir, "tom.png"))
	assert.True(t, os.IsNotExist(err))

	err = storage.DeleteWithContext(ctx, "tom.png")
	assert.Error(t, err)
}

// TestLocalStorage_NeverOverwrites 已存在的文件不会被覆盖
func TestLocalStorage_NeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewLocalStorage(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, storage.SaveWithContext(ctx, "cat.png", strings.NewReader("first")))
	err = storage.SaveWithContext(ctx, "cat.png", strings.NewReader("second"))
	assert.ErrorIs(t, err, ErrExists)

	data, err := os.ReadFile(filepath.Join(dir, "cat.png"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

// TestLocalStorage_ConcurrentSameName 并发写同名文件只有一个成功
func TestLocalStorage_ConcurrentSameName(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := storage.SaveWithContext(ctx, "concurrent.png", strings.NewReader("content")); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrExists)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
}

func TestLocalStorage_PartialWriteRemoved(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewLocalStorage(dir)
	require.NoError(t, err)

	err = storage.SaveWithContext(context.Background(), "broken.png", failingReader{})
	require.Error(t, err)

	_, err = os.Stat(filepath.Join(dir, "broken.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStorage_List(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewLocalStorage(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, storage.SaveWithContext(ctx, "b.png", strings.NewReader("b")))
	require.NoError(t, storage.SaveWithContext(ctx, "a.jpg", strings.NewReader("a")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0755))

	names, err := storage.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "b.png"}, names)
}

func TestLocalStorage_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing", "image")
	storage, err := NewLocalStorage(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.NoError(t, storage.Health(context.Background()))
	assert.Equal(t, "local", storage.Name())
}

// TestIsValidStoragePath 测试文件名校验
func TestIsValidStoragePath(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		wantValid bool
	}{
		{"simple", "file.png", true},
		{"uuid", "0f8fad5b-d9cb-469f-a165-70867728950e.jpeg", true},
		{"uppercase", "UPPERCASE.PNG", true},
		{"empty", "", false},
		{"dot", ".", false},
		{"dotdot", "..", false},
		{"hidden", ".env", false},
		{"absolute_unix", "/etc/passwd", false},
		{"absolute_windows", "C:\\file.txt", false},
		{"nested", "a/b.png", false},
		{"traversal", "../file.txt", false},
		{"null_byte", "file\x00.txt", false},
		{"newline", "file\n.txt", false},
		{"shell", "file;rm -rf.txt", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantValid, IsValidStoragePath(tt.path), "path: %q", tt.path)
		})
	}
}
