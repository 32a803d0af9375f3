// Package ctxmeta 负责在 context 中透传请求级元数据（trace_id / user_id / client_ip）。
package ctxmeta

import (
	"context"

	"github.com/gin-gonic/gin"
)

type ctxKey string

const (
	// gin.Context 中使用的 key，与中间件 c.Set 保持一致
	KeyTraceID  = "trace_id"
	KeyUserID   = "user_id"
	KeyClientIP = "client_ip"

	traceIDKey  ctxKey = KeyTraceID
	userIDKey   ctxKey = KeyUserID
	clientIPKey ctxKey = KeyClientIP
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

func TraceID(ctx context.Context) string {
	return stringValue(ctx, traceIDKey)
}

func UserID(ctx context.Context) string {
	return stringValue(ctx, userIDKey)
}

func ClientIP(ctx context.Context) string {
	return stringValue(ctx, clientIPKey)
}

// TraceIDFromGin 读取 TraceLogger 中间件写入的 trace_id
func TraceIDFromGin(c *gin.Context) string {
	return c.GetString(KeyTraceID)
}

// Propagate 只保留元数据，脱离父 ctx 的取消信号，供异步任务使用
func Propagate(parent context.Context) context.Context {
	ctx := context.Background()
	if parent == nil {
		return ctx
	}
	if v := TraceID(parent); v != "" {
		ctx = WithTraceID(ctx, v)
	}
	if v := UserID(parent); v != "" {
		ctx = WithUserID(ctx, v)
	}
	if v := ClientIP(parent); v != "" {
		ctx = WithClientIP(ctx, v)
	}
	return ctx
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
