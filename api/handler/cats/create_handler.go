package cats

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/anoixa/cat-catalog/api/common"
	"github.com/anoixa/cat-catalog/database"
	"github.com/anoixa/cat-catalog/database/models"
	"github.com/anoixa/cat-catalog/internal/upload"
	"github.com/anoixa/cat-catalog/utils"
	"github.com/gin-gonic/gin"
)

// CreateCatHandler 新增猫咪
// @Summary      Add cat
// @Description  Upload a cat image together with its name
// @Tags         cats
// @Accept       multipart/form-data
// @Param        name   formData  string  true  "Cat name"
// @Param        image  formData  file    true  "Cat image"
// @Success      201    "Created"
// @Failure      400    {object}  common.Response  "Missing or invalid field"
// @Failure      500    {object}  common.Response  "Store or filesystem error"
// @Router       /add_cat [post]
func (h *Handler) CreateCatHandler(c *gin.Context) {
	const op = "cats.create"
	ctx := c.Request.Context()

	mf, err := c.MultipartForm()
	if err != nil {
		common.RespondAppError(c, h.multipartError(op, err))
		return
	}
	defer func() { _ = mf.RemoveAll() }()

	req, err := decodeCreateForm(upload.Parse(mf))
	if err != nil {
		if isMissingImage(err) {
			common.RespondAppError(c, common.NewMissingUploadError(op, err))
			return
		}
		common.RespondAppError(c, common.NewValidationError(op, validationMessage(err)))
		return
	}

	stored, err := h.ingestor.Persist(ctx, req.Image)
	if err != nil {
		common.RespondAppError(c, classify(op, err))
		return
	}

	newCat := &models.NewCat{Name: req.Name, ImagePath: stored.PublicPath}
	err = h.withConn(ctx, func(conn *database.Conn) error {
		_, err := h.repo.Insert(conn, newCat)
		return err
	})
	if err != nil {
		// 文件已落盘但记录未写入，留给 clean 命令处理
		log.Printf("ERROR: [%s] orphaned upload %s (name=%q): %v",
			op, stored.FilePath, utils.SanitizeLogField(req.Name), err)
		common.RespondAppError(c, classify(op, err))
		return
	}

	c.Status(http.StatusCreated)
}

// multipartError 表单解析失败的分类
func (h *Handler) multipartError(op string, err error) *common.Error {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return common.NewValidationError(op, fmt.Sprintf("upload exceeds %d bytes", maxErr.Limit))
	case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
		return common.NewValidationError(op, "request must be multipart/form-data")
	case utils.IsContextCanceled(err):
		return common.NewUnexpectedError(op, err)
	default:
		return common.NewValidationError(op, "malformed multipart body")
	}
}
