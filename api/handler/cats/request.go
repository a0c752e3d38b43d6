package cats

import (
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/anoixa/cat-catalog/internal/upload"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

const (
	minCatID = 1
	maxCatID = 150
)

// catURI GET /api/cat/:id 的路径参数
type catURI struct {
	ID uint `uri:"id" binding:"required,min=1,max=150"`
}

// createCatForm POST /api/add_cat 的表单
type createCatForm struct {
	Name  string                `mapstructure:"name" binding:"required"`
	Image *multipart.FileHeader `mapstructure:"-" binding:"required"`
}

var fieldNames = map[string]string{
	"ID":    "id",
	"Name":  "name",
	"Image": "image",
}

// decodeCreateForm 从解析后的表单构造 createCatForm 并校验
func decodeCreateForm(form *upload.Form) (*createCatForm, error) {
	var req createCatForm
	if err := mapstructure.Decode(form.Texts, &req); err != nil {
		return nil, fmt.Errorf("decode form: %w", err)
	}
	req.Name = strings.TrimSpace(req.Name)
	if fh, err := form.File("image"); err == nil {
		req.Image = fh
	}

	if err := binding.Validator.ValidateStruct(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// invalidIDMessage 路径参数 id 不合法时的信息
var invalidIDMessage = fmt.Sprintf("id must be an integer between %d and %d", minCatID, maxCatID)

// validationMessage 把校验错误转换为面向客户端的信息
func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return "invalid request"
	}

	fe := verrs[0]
	field := fieldNames[fe.Field()]
	if field == "" {
		field = strings.ToLower(fe.Field())
	}

	switch fe.Tag() {
	case "required":
		return field + " is required"
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
	}
}

// isMissingImage 校验失败是否只因为缺少图片
func isMissingImage(err error) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return false
	}
	for _, fe := range verrs {
		if fe.Field() != "Image" {
			return false
		}
	}
	return len(verrs) > 0
}
