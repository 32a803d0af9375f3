package v1

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/middleware"
	"github.com/sudo-enjoy/matching-app-be/consts"
	"github.com/sudo-enjoy/matching-app-be/pkg/bizerr"
	"github.com/sudo-enjoy/matching-app-be/pkg/logger"
	"github.com/sudo-enjoy/matching-app-be/pkg/result"
)

// bindFail 参数绑定/校验失败，返回 400 和第一个出错字段
func bindFail(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		result.FailWithMessage(c, consts.CodeParamError, describeFieldError(verrs[0]))
		return
	}
	result.Fail(c, consts.CodeBodyError)
}

func describeFieldError(fe validator.FieldError) string {
	field := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "e164":
		return fmt.Sprintf("%s must be an international phone number", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "min", "max", "len":
		return fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// failWithServiceError 业务错误按错误码返回，其他错误记录日志后返回 500
func failWithServiceError(ctx context.Context, c *gin.Context, op string, err error) {
	code := bizerr.Code(err)
	if consts.IsNonServerError(code) {
		result.Fail(c, code)
		return
	}
	if code == consts.CodeSMSUnavailable || code == consts.CodeServiceUnavailable || code == consts.CodeSMSDeliveryFailed {
		logger.Warn(ctx, op+"失败", logger.ErrorField("error", err))
		result.Fail(c, code)
		return
	}

	logger.Error(ctx, op+"服务内部错误", logger.ErrorField("error", err))
	result.FailWithError(c, code, err)
}

// currentUserID 认证中间件写入的用户 id，缺失时直接返回 401
func currentUserID(c *gin.Context) (string, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		result.Fail(c, consts.CodeUnauthorized)
		return "", false
	}
	return userID, true
}
