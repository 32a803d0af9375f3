package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/dto"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/middleware"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/service"
	"github.com/sudo-enjoy/matching-app-be/consts"
	"github.com/sudo-enjoy/matching-app-be/pkg/bizerr"
	"github.com/sudo-enjoy/matching-app-be/pkg/result"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register 注册并下发验证码
// @Router /api/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	// 1. 绑定请求数据
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}

	// 2. 调用服务层
	resp, err := h.authService.Register(ctx, &req)
	if err != nil {
		failWithServiceError(ctx, c, "注册", err)
		return
	}

	// 3. 返回 201
	result.Created(c, resp)
}

// VerifySMS 提交注册验证码
// @Router /api/auth/verify-sms [post]
func (h *AuthHandler) VerifySMS(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	var req dto.VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}

	resp, err := h.authService.VerifyRegistration(ctx, &req)
	if err != nil {
		failWithServiceError(ctx, c, "注册验证", err)
		return
	}
	result.Success(c, resp)
}

// Login 请求登录验证码
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}

	resp, err := h.authService.Login(ctx, &req)
	if err != nil {
		failWithServiceError(ctx, c, "登录", err)
		return
	}
	result.Success(c, resp)
}

// VerifyLogin 提交登录验证码
// @Router /api/auth/verify-login [post]
func (h *AuthHandler) VerifyLogin(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	var req dto.VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}

	resp, err := h.authService.VerifyLogin(ctx, &req)
	if err != nil {
		failWithServiceError(ctx, c, "登录验证", err)
		return
	}
	result.Success(c, resp)
}

// Validate 校验访问令牌，认证失败也返回结构化结果
// @Router /api/auth/validate [get]
func (h *AuthHandler) Validate(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	token, ok := middleware.BearerToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.ValidateResponse{
			IsAuthenticated: false,
			Error:           consts.GetMessage(consts.CodeUnauthorized),
		})
		return
	}

	user, err := h.authService.Authenticate(ctx, token)
	if err != nil {
		code := bizerr.Code(err)
		if !consts.IsNonServerError(code) {
			failWithServiceError(ctx, c, "令牌校验", err)
			return
		}
		c.JSON(consts.HTTPStatus(code), dto.ValidateResponse{
			IsAuthenticated: false,
			Error:           consts.GetMessage(code),
		})
		return
	}

	result.Success(c, dto.ValidateResponse{
		IsAuthenticated: true,
		User:            dto.ConvertSelfInfo(user),
	})
}

// Me 当前用户
// @Router /api/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	resp, err := h.authService.Me(ctx, userID)
	if err != nil {
		failWithServiceError(ctx, c, "获取当前用户", err)
		return
	}
	result.Success(c, resp)
}

// RefreshToken 用刷新令牌换新令牌对
// @Router /api/auth/refresh [post]
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	var req dto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}

	resp, err := h.authService.RefreshToken(ctx, &req)
	if err != nil {
		failWithServiceError(ctx, c, "刷新令牌", err)
		return
	}
	result.Success(c, resp)
}
