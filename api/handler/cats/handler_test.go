package cats

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anoixa/cat-catalog/api/common"
	"github.com/anoixa/cat-catalog/database"
	"github.com/anoixa/cat-catalog/database/models"
	catsRepo "github.com/anoixa/cat-catalog/database/repo/cats"
	"github.com/anoixa/cat-catalog/internal/upload"
	"github.com/anoixa/cat-catalog/internal/worker"
	"github.com/anoixa/cat-catalog/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	router    *gin.Engine
	db        *gorm.DB
	pool      *database.Pool
	uploadDir string
}

type envOptions struct {
	poolSize    int
	poolTimeout time.Duration
	repo        catsRepo.Repository
	maxUpload   int64
}

func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return gin.New()
}

// setupEnv 组装 SQLite、连接池、工作池与本地存储
func setupEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	if opts.poolSize == 0 {
		opts.poolSize = 4
	}
	if opts.poolTimeout == 0 {
		opts.poolTimeout = time.Second
	}
	if opts.repo == nil {
		opts.repo = catsRepo.NewRepository()
	}
	if opts.maxUpload == 0 {
		opts.maxUpload = 1 << 20
	}

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "cats.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Cat{}))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	provider := database.NewGormProviderFromDB(db)
	t.Cleanup(func() { _ = provider.Close() })
	pool := database.NewPool(provider, opts.poolSize, opts.poolTimeout)

	workers := worker.NewWorkerPool(4, 64)
	workers.Start()
	t.Cleanup(workers.Stop)

	uploadDir := t.TempDir()
	store, err := storage.NewLocalStorage(uploadDir)
	require.NoError(t, err)
	ingestor := upload.NewIngestor(store, workers, "/image")

	handler := NewHandler(opts.repo, pool, workers, ingestor, 100, opts.maxUpload)
	router := setupTestRouter(t)
	handler.RegisterRoutes(router.Group("/api"))

	return &testEnv{router: router, db: db, pool: pool, uploadDir: uploadDir}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) seed(t *testing.T, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		require.NoError(t, e.db.Create(&models.Cat{
			Name:      fmt.Sprintf("cat-%d", i),
			ImagePath: fmt.Sprintf("/image/cat-%d.png", i),
		}).Error)
	}
}

type formPart struct {
	field    string
	filename string
	content  []byte
}

func multipartRequest(t *testing.T, parts ...formPart) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, p := range parts {
		if p.filename == "" {
			require.NoError(t, writer.WriteField(p.field, string(p.content)))
			continue
		}
		fw, err := writer.CreateFormFile(p.field, p.filename)
		require.NoError(t, err)
		_, err = fw.Write(p.content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/add_cat", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func listCats(t *testing.T, env *testEnv) []models.Cat {
	t.Helper()
	w := env.do(httptest.NewRequest(http.MethodGet, "/api/cats", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var cats []models.Cat
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cats))
	return cats
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	n := 0
	for _, e := range entries {
		if !e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			n++
		}
	}
	return n
}

// stubRepo 统计调用次数，可注入插入错误
type stubRepo struct {
	calls     atomic.Int32
	insertErr error
}

func (r *stubRepo) List(conn *database.Conn, limit int) ([]*models.Cat, error) {
	r.calls.Add(1)
	return nil, nil
}

func (r *stubRepo) GetByID(conn *database.Conn, id uint) (*models.Cat, error) {
	r.calls.Add(1)
	return &models.Cat{ID: id, Name: "stub", ImagePath: "/image/stub.png"}, nil
}

func (r *stubRepo) Insert(conn *database.Conn, cat *models.NewCat) (*models.Cat, error) {
	r.calls.Add(1)
	if r.insertErr != nil {
		return nil, r.insertErr
	}
	return &models.Cat{ID: 1, Name: cat.Name, ImagePath: cat.ImagePath}, nil
}

// --- 列表 ---

func TestListCats(t *testing.T) {
	tests := []struct {
		name    string
		seed    int
		wantLen int
	}{
		{name: "empty returns array", seed: 0, wantLen: 0},
		{name: "few records", seed: 3, wantLen: 3},
		{name: "capped at 100", seed: 130, wantLen: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupEnv(t, envOptions{})
			env.seed(t, tt.seed)

			w := env.do(httptest.NewRequest(http.MethodGet, "/api/cats", nil))
			assert.Equal(t, http.StatusOK, w.Code)
			if tt.seed == 0 {
				assert.JSONEq(t, "[]", w.Body.String())
			}

			var cats []models.Cat
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cats))
			assert.Len(t, cats, tt.wantLen)
			for _, cat := range cats {
				assert.NotZero(t, cat.ID)
				assert.NotEmpty(t, cat.Name)
				assert.NotEmpty(t, cat.ImagePath)
			}
		})
	}
}

func TestListCats_NilFromRepoIsEmptyArray(t *testing.T) {
	env := setupEnv(t, envOptions{repo: &stubRepo{}})

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/cats", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

// --- 详情 ---

func TestGetCat(t *testing.T) {
	env := setupEnv(t, envOptions{})
	env.seed(t, 2)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/cat/2", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var cat models.Cat
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cat))
	assert.Equal(t, uint(2), cat.ID)
	assert.Equal(t, "cat-2", cat.Name)
	assert.Equal(t, "/image/cat-2.png", cat.ImagePath)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/cat/150", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	var resp common.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
}

// TestGetCat_InvalidID 非法 id 在访问存储之前被拒绝
func TestGetCat_InvalidID(t *testing.T) {
	stub := &stubRepo{}
	env := setupEnv(t, envOptions{repo: stub})

	for _, id := range []string{"0", "151", "abc", "-1", "1.5", "99999999999999999999"} {
		t.Run(id, func(t *testing.T) {
			w := env.do(httptest.NewRequest(http.MethodGet, "/api/cat/"+id, nil))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	assert.Equal(t, int32(0), stub.calls.Load())
	assert.Equal(t, int64(0), env.pool.Stats().Acquired)
}

func TestGetCat_BoundaryIDs(t *testing.T) {
	stub := &stubRepo{}
	env := setupEnv(t, envOptions{repo: stub})

	for _, id := range []string{"1", "150"} {
		w := env.do(httptest.NewRequest(http.MethodGet, "/api/cat/"+id, nil))
		assert.Equal(t, http.StatusOK, w.Code, "id %s", id)
	}
	assert.Equal(t, int32(2), stub.calls.Load())
}

// --- 创建 ---

func TestCreateCat_RoundTrip(t *testing.T) {
	env := setupEnv(t, envOptions{})
	before := len(listCats(t, env))
	image := []byte("\x89PNG\r\n\x1a\nfake-png-data")

	w := env.do(multipartRequest(t,
		formPart{field: "name", content: []byte("Tom")},
		formPart{field: "image", filename: "tom.png", content: image},
	))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, w.Body.String())

	cats := listCats(t, env)
	require.Len(t, cats, before+1)
	created := cats[len(cats)-1]
	assert.Equal(t, "Tom", created.Name)
	assert.True(t, strings.HasPrefix(created.ImagePath, "/image/"))
	assert.False(t, strings.HasPrefix(created.ImagePath, "."))
	assert.True(t, strings.HasSuffix(created.ImagePath, ".png"))

	data, err := os.ReadFile(filepath.Join(env.uploadDir, strings.TrimPrefix(created.ImagePath, "/image/")))
	require.NoError(t, err)
	assert.Equal(t, image, data)
}

func TestCreateCat_LastNameWinsAndTrimmed(t *testing.T) {
	env := setupEnv(t, envOptions{})

	w := env.do(multipartRequest(t,
		formPart{field: "name", content: []byte("Garfield")},
		formPart{field: "name", content: []byte("  Felix  ")},
		formPart{field: "extra", content: []byte("ignored")},
		formPart{field: "image", filename: "felix.jpg", content: []byte("jpg")},
	))
	require.Equal(t, http.StatusCreated, w.Code)

	cats := listCats(t, env)
	require.Len(t, cats, 1)
	assert.Equal(t, "Felix", cats[0].Name)
}

func TestCreateCat_Validation(t *testing.T) {
	tests := []struct {
		name    string
		parts   []formPart
		wantMsg string
	}{
		{
			name:    "missing name",
			parts:   []formPart{{field: "image", filename: "cat.png", content: []byte("png")}},
			wantMsg: "name is required",
		},
		{
			name: "blank name",
			parts: []formPart{
				{field: "name", content: []byte("   ")},
				{field: "image", filename: "cat.png", content: []byte("png")},
			},
			wantMsg: "name is required",
		},
		{
			name:    "missing image",
			parts:   []formPart{{field: "name", content: []byte("Tom")}},
			wantMsg: "image file is required",
		},
		{
			name: "image sent as text",
			parts: []formPart{
				{field: "name", content: []byte("Tom")},
				{field: "image", content: []byte("not a file")},
			},
			wantMsg: "image file is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubRepo{}
			env := setupEnv(t, envOptions{repo: stub})

			w := env.do(multipartRequest(t, tt.parts...))
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp common.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantMsg, resp.Msg)

			// 校验失败时不写文件也不插入
			assert.Equal(t, 0, countFiles(t, env.uploadDir))
			assert.Equal(t, int32(0), stub.calls.Load())
		})
	}
}

func TestCreateCat_NotMultipart(t *testing.T) {
	env := setupEnv(t, envOptions{})

	req := httptest.NewRequest(http.MethodPost, "/api/add_cat", strings.NewReader(`{"name":"Tom"}`))
	req.Header.Set("Content-Type", "application/json")
	w := env.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateCat_TooLarge(t *testing.T) {
	stub := &stubRepo{}
	env := setupEnv(t, envOptions{repo: stub, maxUpload: 1024})

	w := env.do(multipartRequest(t,
		formPart{field: "name", content: []byte("Tom")},
		formPart{field: "image", filename: "big.png", content: bytes.Repeat([]byte("x"), 4096)},
	))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, countFiles(t, env.uploadDir))
	assert.Equal(t, int32(0), stub.calls.Load())
}

// TestCreateCat_ConcurrentSameFilename 同名并发上传不会互相覆盖
func TestCreateCat_ConcurrentSameFilename(t *testing.T) {
	env := setupEnv(t, envOptions{})

	const n = 12
	var wg sync.WaitGroup
	codes := make([]int, n)
	for i := 0; i < n; i++ {
		req := multipartRequest(t,
			formPart{field: "name", content: []byte(fmt.Sprintf("cat-%d", i))},
			formPart{field: "image", filename: "cat.png", content: []byte(fmt.Sprintf("image-%d", i))},
		)
		wg.Add(1)
		go func(i int, req *http.Request) {
			defer wg.Done()
			codes[i] = env.do(req).Code
		}(i, req)
	}
	wg.Wait()

	for i, code := range codes {
		assert.Equal(t, http.StatusCreated, code, "request %d", i)
	}

	cats := listCats(t, env)
	require.Len(t, cats, n)
	paths := make(map[string]string)
	for _, cat := range cats {
		_, dup := paths[cat.ImagePath]
		assert.False(t, dup, "duplicate image_path %s", cat.ImagePath)
		paths[cat.ImagePath] = cat.Name

		data, err := os.ReadFile(filepath.Join(env.uploadDir, filepath.Base(cat.ImagePath)))
		require.NoError(t, err)
		assert.Equal(t, "image-"+strings.TrimPrefix(cat.Name, "cat-"), string(data))
	}
	assert.Equal(t, n, countFiles(t, env.uploadDir))
}

// TestCreateCat_InsertFailureKeepsFile 插入失败时返回 500，文件保留
func TestCreateCat_InsertFailureKeepsFile(t *testing.T) {
	stub := &stubRepo{insertErr: errors.New("disk I/O error")}
	env := setupEnv(t, envOptions{repo: stub})

	w := env.do(multipartRequest(t,
		formPart{field: "name", content: []byte("Tom")},
		formPart{field: "image", filename: "tom.png", content: []byte("png")},
	))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 1, countFiles(t, env.uploadDir))
	assert.Equal(t, int32(1), stub.calls.Load())
}

// --- 连接池 ---

func TestPoolExhausted(t *testing.T) {
	env := setupEnv(t, envOptions{poolSize: 1, poolTimeout: 100 * time.Millisecond})

	held, err := env.pool.Acquire(context.Background())
	require.NoError(t, err)

	start := time.Now()
	w := env.do(httptest.NewRequest(http.MethodGet, "/api/cats", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)

	held.Release()
	w = env.do(httptest.NewRequest(http.MethodGet, "/api/cats", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), env.pool.Stats().Timeouts)
}
