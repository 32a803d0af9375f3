package result

import (
	"net/http"

	"github.com/sudo-enjoy/matching-app-be/consts"

	"github.com/gin-gonic/gin"
)

// ErrorBody 统一错误响应体
type ErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// exposeDetails 非生产环境下 500 响应附带 details
var exposeDetails = true

// SetExposeDetails 在 main 中根据运行环境设置
func SetExposeDetails(expose bool) {
	exposeDetails = expose
}

// Success 200 + 业务载荷
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Created 201 + 业务载荷
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// Fail 按业务码返回 {error}
func Fail(c *gin.Context, code int32) {
	c.AbortWithStatusJSON(consts.HTTPStatus(code), ErrorBody{Error: consts.GetMessage(code)})
}

// FailWithMessage 自定义错误文案（例如参数校验的具体字段）
func FailWithMessage(c *gin.Context, code int32, message string) {
	if message == "" {
		message = consts.GetMessage(code)
	}
	c.AbortWithStatusJSON(consts.HTTPStatus(code), ErrorBody{Error: message})
}

// FailWithError 服务端错误，非生产环境附带底层错误信息
func FailWithError(c *gin.Context, code int32, err error) {
	body := ErrorBody{Error: consts.GetMessage(code)}
	if exposeDetails && err != nil {
		body.Details = err.Error()
	}
	c.AbortWithStatusJSON(consts.HTTPStatus(code), body)
}
