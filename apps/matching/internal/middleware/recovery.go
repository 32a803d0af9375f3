package middleware

import (
	"errors"
	"net"
	"net/http"
	"os"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sudo-enjoy/matching-app-be/consts"
	"github.com/sudo-enjoy/matching-app-be/pkg/logger"
	"github.com/sudo-enjoy/matching-app-be/pkg/result"
)

// GinRecovery 捕获 panic，记录堆栈并返回 500
// 客户端断开（broken pipe / connection reset）时不再写响应
func GinRecovery(stack bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			ctx := NewContextWithGin(c)

			if isBrokenPipe(r) {
				logger.Warn(ctx, "客户端连接已断开",
					logger.String("path", c.Request.URL.Path),
					logger.Any("error", r),
				)
				_ = c.Error(asError(r))
				c.Abort()
				return
			}

			fields := []zap.Field{
				logger.String("method", c.Request.Method),
				logger.String("path", c.Request.URL.Path),
				logger.Any("panic", r),
			}
			if stack {
				fields = append(fields, logger.String("stack", string(debug.Stack())))
			}
			logger.Error(ctx, "请求处理 panic", fields...)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			result.Fail(c, consts.CodeInternalError)
		}()
		c.Next()
	}
}

func isBrokenPipe(r any) bool {
	err, ok := r.(error)
	if !ok {
		return false
	}
	if errors.Is(err, http.ErrAbortHandler) {
		return true
	}
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return false
	}
	var sysErr *os.SyscallError
	if !errors.As(opErr, &sysErr) {
		return false
	}
	msg := strings.ToLower(sysErr.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
}

func asError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return errors.New("panic")
}
