package response

import (
	"Realty/internal/api/dto"
	"Realty/internal/service"
	"errors"
	log "log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const (
	Ok                  = 200
	BadRequest          = 400
	Unauthorized        = 401
	Forbidden           = 403
	NotFound            = 404
	InternalServerError = 500
)

// Success 成功返回封装，data 自带 ok 字段
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Items 列表返回封装
func Items(c *gin.Context, items interface{}, next string) {
	c.JSON(http.StatusOK, dto.ItemsResponse{OK: true, Items: items, Next: next})
}

// NoStore 列表数据实时变化，禁止缓存
func NoStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
}

// Fail 失败返回封装
func Fail(c *gin.Context, status int, message string) {
	c.JSON(status, dto.Response{
		OK:    false,
		Error: message,
	})
}

// Error 处理错误
func Error(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		Fail(c, BadRequest, service.ErrParamInvalid.Error())
		return
	}

	code, ok := service.ErrorMap[err]
	if !ok {
		for target, status := range service.ErrorMap {
			if errors.Is(err, target) {
				code, ok = status, true
				break
			}
		}
	}
	if !ok {
		log.ErrorContext(c.Request.Context(), "Error", "err", err)
		Fail(c, InternalServerError, service.UnExpectedError.Error())
		return
	}
	Fail(c, code, err.Error())
}
