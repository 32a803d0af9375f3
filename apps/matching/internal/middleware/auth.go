package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/service"
	"github.com/sudo-enjoy/matching-app-be/consts"
	"github.com/sudo-enjoy/matching-app-be/pkg/bizerr"
	"github.com/sudo-enjoy/matching-app-be/pkg/ctxmeta"
	"github.com/sudo-enjoy/matching-app-be/pkg/result"
	"github.com/sudo-enjoy/matching-app-be/pkg/util"
)

// JWTAuthMiddleware 访问令牌认证中间件
// 解析 Bearer Token 并确认用户存在且已完成短信验证，通过后将 user_id 写入上下文
func JWTAuthMiddleware(verifier service.SessionVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. 取 Authorization: Bearer <token>
		token, ok := BearerToken(c)
		if !ok {
			// 客户端未携带或格式错误，属于正常业务流程，不记录日志
			result.Fail(c, consts.CodeUnauthorized)
			return
		}

		// 2. 解析并验证 Token（刷新令牌不能用于访问接口）
		claims, err := util.ParseToken(token)
		if err != nil {
			result.Fail(c, consts.CodeInvalidToken)
			return
		}

		// 3. 确认用户仍存在且已验证（带本地缓存）
		if err := verifier.VerifySession(c.Request.Context(), claims.UserID); err != nil {
			code := bizerr.Code(err)
			if consts.IsNonServerError(code) {
				result.Fail(c, code)
				return
			}
			result.FailWithError(c, code, err)
			return
		}

		// 4. 写入 gin 与 request 上下文，供 Handler 与日志使用
		c.Set(ctxmeta.KeyUserID, claims.UserID)
		c.Request = c.Request.WithContext(ctxmeta.WithUserID(c.Request.Context(), claims.UserID))

		c.Next()
	}
}

// BearerToken 从 Authorization 头读取令牌
func BearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// GetUserID 当前登录用户 id
func GetUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(ctxmeta.KeyUserID)
	return userID, userID != ""
}
