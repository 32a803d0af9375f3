package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sudo-enjoy/matching-app-be/pkg/ctxmeta"
	"github.com/sudo-enjoy/matching-app-be/pkg/logger"
)

const slowRequestThreshold = 2 * time.Second

// NewContextWithGin 从 gin.Context 构建带 trace_id / user_id / client_ip 的 context
func NewContextWithGin(c *gin.Context) context.Context {
	ctx := c.Request.Context()
	if traceID := c.GetString(ctxmeta.KeyTraceID); traceID != "" && ctxmeta.TraceID(ctx) == "" {
		ctx = ctxmeta.WithTraceID(ctx, traceID)
	}
	if userID := c.GetString(ctxmeta.KeyUserID); userID != "" && ctxmeta.UserID(ctx) == "" {
		ctx = ctxmeta.WithUserID(ctx, userID)
	}
	if ip := c.GetString(ctxmeta.KeyClientIP); ip != "" && ctxmeta.ClientIP(ctx) == "" {
		ctx = ctxmeta.WithClientIP(ctx, ip)
	}
	return ctx
}

// GinLogger 请求日志
// 只记录服务端错误(5xx)和慢请求(>2s)，正常请求只打 debug
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		ctx := NewContextWithGin(c)
		cost := time.Since(start)
		status := c.Writer.Status()

		if status >= 500 || cost > slowRequestThreshold {
			logger.Warn(ctx, "慢请求或服务端错误",
				logger.Int("status", status),
				logger.String("method", c.Request.Method),
				logger.String("path", path),
				logger.String("query", query),
				logger.String("ip", ClientIPFromGinContext(c)),
				logger.String("user-agent", c.Request.UserAgent()),
				logger.String("errors", c.Errors.ByType(gin.ErrorTypePrivate).String()),
				logger.Duration("cost", cost),
			)
			return
		}

		logger.Debug(ctx, "请求完成",
			logger.Int("status", status),
			logger.String("method", c.Request.Method),
			logger.String("path", path),
			logger.Duration("cost", cost),
		)
	}
}
