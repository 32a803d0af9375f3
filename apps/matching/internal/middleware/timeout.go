package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sudo-enjoy/matching-app-be/consts"
	"github.com/sudo-enjoy/matching-app-be/pkg/logger"
	"github.com/sudo-enjoy/matching-app-be/pkg/result"
)

// TimeoutMiddleware 请求超时控制
// 不开启额外 goroutine，依赖下游对 ctx 的感知；处理结束时仍未写响应才由中间件返回 504
func TimeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}

		// 1. 基于请求 ctx 派生带超时的 ctx，后续 Handler、数据库调用都使用它
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		// 2. 当前协程执行
		c.Next()

		// 3. 下游太慢，连响应都没来得及写
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			logger.Warn(NewContextWithGin(c), "请求处理超时",
				logger.String("path", c.Request.URL.Path),
				logger.Duration("timeout", timeout),
			)
			result.Fail(c, consts.CodeTimeoutError)
		}
	}
}
