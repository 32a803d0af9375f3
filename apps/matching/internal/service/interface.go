package service

import (
	"context"
	"io"

	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/dto"
	"github.com/sudo-enjoy/matching-app-be/model"
	"github.com/sudo-enjoy/matching-app-be/pkg/minio"
)

// AuthService 短信验证与令牌
// 职责：
//   - 注册/登录时下发验证码（bcrypt 哈希存储，10 分钟有效）
//   - 校验验证码并签发访问令牌与刷新令牌
type AuthService interface {
	// Register 创建或刷新未验证用户并下发注册验证码
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.CodeIssuedResponse, error)
	// Login 已验证用户请求登录验证码
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.CodeIssuedResponse, error)
	// VerifyRegistration 提交注册验证码
	VerifyRegistration(ctx context.Context, req *dto.VerifyCodeRequest) (*dto.VerifyRegistrationResponse, error)
	// VerifyLogin 提交登录验证码
	VerifyLogin(ctx context.Context, req *dto.VerifyCodeRequest) (*dto.VerifyLoginResponse, error)
	// RefreshToken 用刷新令牌换取新的令牌对
	RefreshToken(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.RefreshTokenResponse, error)
	// Authenticate 解析访问令牌并返回已验证用户（/auth/validate 与 WebSocket 握手）
	Authenticate(ctx context.Context, token string) (*model.User, error)
	// Me 当前用户
	Me(ctx context.Context, userID string) (*dto.MeResponse, error)
}

// SessionVerifier 鉴权中间件使用：确认令牌中的用户存在且已验证
type SessionVerifier interface {
	VerifySession(ctx context.Context, userID string) error
	Invalidate(userID string)
}

// UserService 用户资料与附近查询
type UserService interface {
	// FindNearby 附近用户，按距离升序
	FindNearby(ctx context.Context, userID string, q *dto.NearbyQuery) (*dto.NearbyResponse, error)
	// UpdateLocation 更新位置并广播 userLocationUpdate
	UpdateLocation(ctx context.Context, userID string, p dto.Location) (dto.Location, error)
	// GetProfile 他人公开资料
	GetProfile(ctx context.Context, targetID string) (*dto.ProfileResponse, error)
	// UpdateProfile 更新本人资料
	UpdateProfile(ctx context.Context, userID string, req *dto.UpdateProfileRequest) (*dto.UpdateProfileResponse, error)
	// SetStatus 手动切换在线状态并广播 userStatusUpdate
	SetStatus(ctx context.Context, userID string, online bool) (*dto.SetStatusResponse, error)
	// UploadAvatar 上传头像到对象存储并更新资料
	UploadAvatar(ctx context.Context, userID string, file io.Reader, size int64) (*dto.UploadAvatarResponse, error)
	// ListUsers 已验证用户分页列表
	ListUsers(ctx context.Context, q *dto.PaginationQuery) (*dto.ListUsersResponse, error)
	// GetUser 读取用户（realtime 使用）
	GetUser(ctx context.Context, userID string) (*model.User, error)
}

// MatchingService 匹配与会面
type MatchingService interface {
	RequestMatch(ctx context.Context, requesterID string, req *dto.SendMatchRequest) (*dto.MatchResponse, error)
	RespondToMatch(ctx context.Context, responderID string, req *dto.RespondMatchRequest) (*dto.MatchResponse, error)
	ConfirmMeeting(ctx context.Context, confirmerID string, req *dto.ConfirmMeetingRequest) (*dto.MeetingResponse, error)
	RateMeeting(ctx context.Context, raterID string, req *dto.RateMeetingRequest) (*dto.MeetingResponse, error)
	GetHistory(ctx context.Context, userID string, q *dto.MatchHistoryQuery) (*dto.MatchHistoryResponse, error)
	// ExpireStale 过期所有超时的待处理匹配，供定时清理调用
	ExpireStale(ctx context.Context) (int64, error)
}

// MapService 地图数据
type MapService interface {
	GetConfig(ctx context.Context) *dto.MapConfigResponse
	GetMapData(ctx context.Context, userID string, q *dto.MapDataQuery) (*dto.MapDataResponse, error)
	GetLocation(ctx context.Context, userID string) (*dto.MapLocationResponse, error)
	UpdateLocation(ctx context.Context, userID string, req *dto.UpdateMapLocationRequest) (*dto.MapLocationResponse, error)
}

// EventEmitter 实时事件下发，由 PresenceRegistry 实现
type EventEmitter interface {
	// EmitToUser 发给用户当前连接，不在线返回 false
	EmitToUser(userID, event string, data any) bool
	// Broadcast 发给所有连接，excludeUserID 非空时跳过该用户
	Broadcast(event string, data any, excludeUserID string)
}

// AvatarStorage 头像对象存储，由 pkg/minio.AvatarStore 实现
type AvatarStorage interface {
	PutAvatar(ctx context.Context, userID string, reader io.Reader, size int64) (*minio.UploadResult, error)
	Delete(ctx context.Context, objectName string) error
	ObjectNameFromURL(url string) string
}

// NopEmitter 无实时通道时使用（工具进程与测试）
type NopEmitter struct{}

func (NopEmitter) EmitToUser(string, string, any) bool { return false }
func (NopEmitter) Broadcast(string, any, string)       {}
