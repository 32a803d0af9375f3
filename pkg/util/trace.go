package util

import (
	"github.com/sudo-enjoy/matching-app-be/pkg/ctxmeta"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const HeaderXRequestID = "X-Request-ID"

// TraceLogger 追踪中间件，生成或获取 trace_id 并写入 gin 与 request 上下文
func TraceLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. 优先沿用上游（Nginx/客户端）传入的请求 ID
		traceID := c.GetHeader(HeaderXRequestID)

		// 2. 没有则自己生成
		if traceID == "" {
			traceID = NewUUID()
		}

		// 3. 放入 gin 上下文与 request ctx，后续日志都能带上
		c.Set(ctxmeta.KeyTraceID, traceID)
		c.Request = c.Request.WithContext(ctxmeta.WithTraceID(c.Request.Context(), traceID))

		// 4. 回写响应头，方便客户端报障
		c.Header(HeaderXRequestID, traceID)

		c.Next()
	}
}

// NewUUID 生成新的 UUID
func NewUUID() string {
	return uuid.New().String()
}
