package dto

// ==================== 认证服务 DTO ====================

// RegisterRequest 注册请求 DTO
type RegisterRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=50"`               // 昵称(2-50字符)
	PhoneNumber string `json:"phoneNumber" binding:"required,e164"`                // 手机号(国际格式)
	Gender      string `json:"gender" binding:"required,oneof=male female other"` // 性别
	Address     string `json:"address" binding:"required,min=5,max=200"`           // 地址(5-200字符)
}

// CodeIssuedResponse 验证码已下发
type CodeIssuedResponse struct {
	Message              string `json:"message"`
	UserID               string `json:"userId"`
	PhoneNumber          string `json:"phoneNumber"`
	IsNewUser            bool   `json:"isNewUser"`
	RequiresVerification bool   `json:"requiresVerification"`
}

// LoginRequest 登录请求 DTO
type LoginRequest struct {
	PhoneNumber string `json:"phoneNumber" binding:"required,e164"` // 手机号
}

// VerifyCodeRequest 提交验证码
type VerifyCodeRequest struct {
	UserID string `json:"userId" binding:"required"`     // 用户id
	Code   string `json:"code" binding:"required,len=6"` // 6位验证码
}

// VerifyRegistrationResponse 注册验证响应
type VerifyRegistrationResponse struct {
	Message                string    `json:"message"`
	Token                  string    `json:"token"`
	RefreshToken           string    `json:"refreshToken"`
	IsRegistrationComplete bool      `json:"isRegistrationComplete"`
	User                   *SelfInfo `json:"user"`
}

// VerifyLoginResponse 登录验证响应
type VerifyLoginResponse struct {
	Message         string    `json:"message"`
	Token           string    `json:"token"`
	RefreshToken    string    `json:"refreshToken"`
	IsLoginComplete bool      `json:"isLoginComplete"`
	User            *SelfInfo `json:"user"`
}

// RefreshTokenRequest 刷新Token请求 DTO
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"` // 刷新令牌
}

// RefreshTokenResponse 刷新Token响应 DTO
type RefreshTokenResponse struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refreshToken"`
	User         *SelfInfo `json:"user"`
}

// ValidateResponse token 校验结果
type ValidateResponse struct {
	IsAuthenticated bool      `json:"isAuthenticated"`
	User            *SelfInfo `json:"user,omitempty"`
	Error           string    `json:"error,omitempty"`
}

// MeResponse 当前用户
type MeResponse struct {
	User *SelfInfo `json:"user"`
}
