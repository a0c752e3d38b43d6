package common

import (
	"errors"
	"log"
	"net/http"

	"github.com/anoixa/cat-catalog/utils"
	"github.com/gin-gonic/gin"
)

// ErrorKind 请求失败的分类，决定 HTTP 状态码
type ErrorKind int

const (
	KindUnexpected ErrorKind = iota
	KindValidation
	KindMissingUpload
	KindPoolExhausted
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindMissingUpload:
		return "missing_upload"
	case KindPoolExhausted:
		return "pool_exhausted"
	case KindNotFound:
		return "not_found"
	default:
		return "unexpected"
	}
}

// StatusCode 错误分类到 HTTP 状态码的唯一映射
func StatusCode(kind ErrorKind) int {
	switch kind {
	case KindValidation, KindMissingUpload:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error 带分类的请求错误
type Error struct {
	Kind ErrorKind
	Op   string // 出错的操作，如 cats.create
	Msg  string // 返回给客户端的信息
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg += ": " + e.Err.Error()
		}
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError 参数校验失败
func NewValidationError(op, msg string) *Error {
	return &Error{Kind: KindValidation, Op: op, Msg: msg}
}

// NewMissingUploadError 缺少上传文件
func NewMissingUploadError(op string, err error) *Error {
	return &Error{Kind: KindMissingUpload, Op: op, Msg: "image file is required", Err: err}
}

// NewNotFoundError 记录不存在
func NewNotFoundError(op, msg string, err error) *Error {
	return &Error{Kind: KindNotFound, Op: op, Msg: msg, Err: err}
}

// NewPoolExhaustedError 数据库连接池耗尽
func NewPoolExhaustedError(op string, err error) *Error {
	return &Error{Kind: KindPoolExhausted, Op: op, Msg: "service busy, please retry", Err: err}
}

// NewUnexpectedError 其他内部错误，不向客户端暴露细节
func NewUnexpectedError(op string, err error) *Error {
	return &Error{Kind: KindUnexpected, Op: op, Msg: "internal server error", Err: err}
}

// KindOf 返回错误的分类，未分类的错误视为 KindUnexpected
func KindOf(err error) ErrorKind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnexpected
}

// RespondAppError 记录日志并写出错误响应
func RespondAppError(c *gin.Context, err error) {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = NewUnexpectedError("", err)
	}

	status := StatusCode(appErr.Kind)
	logMsg := utils.SanitizeLogMessage(appErr.Error())

	switch appErr.Kind {
	case KindValidation, KindMissingUpload:
		log.Printf("WARN: %s %s rejected: %s", c.Request.Method, c.Request.URL.Path, logMsg)
	case KindNotFound:
		log.Printf("%s %s: %s", c.Request.Method, c.Request.URL.Path, logMsg)
	case KindPoolExhausted:
		c.Header("Retry-After", "1")
		log.Printf("ERROR: %s %s: %s", c.Request.Method, c.Request.URL.Path, logMsg)
	default:
		if utils.IsClientDisconnect(appErr.Err) {
			log.Printf("%s %s: client disconnected: %s", c.Request.Method, c.Request.URL.Path, logMsg)
			break
		}
		log.Printf("ERROR: %s %s: %s", c.Request.Method, c.Request.URL.Path, logMsg)
	}

	msg := appErr.Msg
	if msg == "" {
		msg = http.StatusText(status)
	}
	RespondError(c, status, msg)
}
