package repository

import (
	"context"
	"time"

	"github.com/sudo-enjoy/matching-app-be/model"
	"github.com/sudo-enjoy/matching-app-be/pkg/geo"
)

// ==================== 用户 Repository ====================

// NearbyQuery 附近用户预筛条件
type NearbyQuery struct {
	Center     geo.Point
	Box        geo.Box
	ExcludeID  string
	OnlineOnly bool
	Limit      int
}

// ProfileUpdate 资料更新，nil 字段不修改
type ProfileUpdate struct {
	Name         *string
	Bio          *string
	ProfilePhoto *string
	Address      *string
}

// IUserRepository 用户数据访问接口
type IUserRepository interface {
	// GetByID 走主库读取，保证写后读一致。不存在返回 ErrRecordNotFound
	GetByID(ctx context.Context, id string) (*model.User, error)

	// GetByIDs 批量查询，不存在的 id 不出现在结果中
	GetByIDs(ctx context.Context, ids []string) ([]*model.User, error)

	// GetByPhone 根据手机号查询，不存在返回 ErrRecordNotFound
	GetByPhone(ctx context.Context, phone string) (*model.User, error)

	// Create 创建用户，手机号冲突返回 ErrDuplicateKey
	Create(ctx context.Context, user *model.User) error

	// RefreshPending 刷新未验证用户的注册资料，仅 sms_verified = false 时生效
	// 返回 false 表示用户已在此期间完成验证
	RefreshPending(ctx context.Context, id, name, gender, address string) (bool, error)

	// DeleteUnverified 删除从未验证过的用户
	DeleteUnverified(ctx context.Context, id string) error

	// SetVerifyCode 写入验证码哈希与过期时间，覆盖旧值
	SetVerifyCode(ctx context.Context, id, codeHash string, expiry time.Time) error

	// ClearVerifyCode 清除验证码
	ClearVerifyCode(ctx context.Context, id string) error

	// ConsumeVerifyCode 以读到的哈希为条件消费验证码并标记已验证
	// 返回 false 表示验证码已被并发消费或替换
	ConsumeVerifyCode(ctx context.Context, id, codeHash string) (bool, error)

	// UpdateLocation 更新位置与最近活跃时间，address 为 nil 时不修改地址
	UpdateLocation(ctx context.Context, id string, p geo.Point, address *string, at time.Time) error

	// MarkOnline 记录在线状态与当前连接 id
	MarkOnline(ctx context.Context, id, socketID string, at time.Time) error

	// MarkOffline 仅当 socket_id 仍为该连接时置为离线
	MarkOffline(ctx context.Context, id, socketID string, at time.Time) (bool, error)

	// SetOnlineFlag 手动切换在线状态（不涉及连接）
	SetOnlineFlag(ctx context.Context, id string, online bool, at time.Time) error

	// ResetPresence 将所有在线用户置为离线，返回影响行数
	ResetPresence(ctx context.Context, at time.Time) (int64, error)

	// FindInBox 包围盒预筛，按球面距离升序，最多 Limit 条
	FindInBox(ctx context.Context, q NearbyQuery) ([]*model.User, error)

	// UpdateProfile 更新资料
	UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) error

	// ListVerified 已验证用户分页列表，按创建时间倒序
	ListVerified(ctx context.Context, page, limit int) ([]*model.User, int64, error)
}

// ==================== 匹配 Repository ====================

// IMatchRepository 匹配数据访问接口
type IMatchRepository interface {
	// CreatePending 插入待处理匹配，同一用户对已有待处理匹配时返回 ErrDuplicateKey
	CreatePending(ctx context.Context, m *model.Match) error

	// GetPendingByPair 查询用户对当前的待处理匹配
	GetPendingByPair(ctx context.Context, pairKey string) (*model.Match, error)

	// GetByID 查询匹配，不存在返回 ErrRecordNotFound
	GetByID(ctx context.Context, id string) (*model.Match, error)

	// Accept 单事务：条件更新为 accepted、双方 match_count+1、创建会面
	// 状态已变化时返回 ErrConflict
	Accept(ctx context.Context, matchID string, at time.Time, meeting *model.Meeting) error

	// Reject 条件更新为 rejected，状态已变化时返回 ErrConflict
	Reject(ctx context.Context, matchID string, at time.Time) error

	// Expire 单条过期，返回是否由本次调用完成迁移
	Expire(ctx context.Context, matchID string, now time.Time) (bool, error)

	// ExpireStale 批量过期所有超时的待处理匹配
	ExpireStale(ctx context.Context, now time.Time) (int64, error)

	// ExpireStaleForUser 过期与该用户相关的超时待处理匹配
	ExpireStaleForUser(ctx context.Context, userID string, now time.Time) (int64, error)

	// History 用户作为任一方的匹配记录，按创建时间倒序
	History(ctx context.Context, userID, status string, page, limit int) ([]*model.Match, int64, error)
}

// ==================== 会面 Repository ====================

// ConfirmResult 确认结果
type ConfirmResult struct {
	Meeting *model.Meeting
	// Stamped 本次确认写入了实际见面时间（全局只发生一次）
	Stamped bool
}

// IMeetingRepository 会面数据访问接口
type IMeetingRepository interface {
	// GetByID 查询会面，不存在返回 ErrRecordNotFound
	GetByID(ctx context.Context, id string) (*model.Meeting, error)

	// Confirm 单事务：设置己方确认、重算 both_confirmed、条件写入实际见面时间，
	// 写入成功时双方 actual_meet_count+1
	Confirm(ctx context.Context, meetingID string, asRequester bool, now time.Time) (*ConfirmResult, error)

	// Rate 写入己方评分与备注，notes 为 nil 时不修改
	Rate(ctx context.Context, meetingID string, asRequester bool, rating int8, notes *string) (*model.Meeting, error)
}
