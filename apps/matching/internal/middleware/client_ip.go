package middleware

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sudo-enjoy/matching-app-be/pkg/ctxmeta"
)

const (
	headerXRealIP       = "X-Real-IP"
	headerXForwardedFor = "X-Forwarded-For"
)

// GetClientIP 客户端真实 IP
// 优先级：X-Real-IP > X-Forwarded-For 第一个 > RemoteAddr
func GetClientIP(c *gin.Context) string {
	// 1. 反向代理设置的真实 IP
	if ip := strings.TrimSpace(c.GetHeader(headerXRealIP)); ip != "" && net.ParseIP(ip) != nil {
		return ip
	}

	// 2. 代理链，取第一个（原始客户端）
	if xff := c.GetHeader(headerXForwardedFor); xff != "" {
		first := xff
		if idx := strings.Index(xff, ","); idx != -1 {
			first = xff[:idx]
		}
		if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
			return ip
		}
	}

	// 3. gin 自带逻辑（RemoteAddr）
	return c.ClientIP()
}

// ClientIPMiddleware 注入 client_ip 到 gin 与 request 上下文
func ClientIPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := GetClientIP(c)
		c.Set(ctxmeta.KeyClientIP, ip)
		c.Request = c.Request.WithContext(ctxmeta.WithClientIP(c.Request.Context(), ip))
		c.Next()
	}
}

// ClientIPFromGinContext 读取 ClientIPMiddleware 写入的 IP，未经过中间件时现算
func ClientIPFromGinContext(c *gin.Context) string {
	if ip := c.GetString(ctxmeta.KeyClientIP); ip != "" {
		return ip
	}
	return GetClientIP(c)
}
