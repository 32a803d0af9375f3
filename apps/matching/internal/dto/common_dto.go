package dto

import (
	"time"

	"github.com/sudo-enjoy/matching-app-be/model"
	"github.com/sudo-enjoy/matching-app-be/pkg/geo"
)

// ==================== 通用 DTO 定义 ====================

// Location 经纬度
type Location struct {
	Lat float64 `json:"lat"` // 纬度
	Lng float64 `json:"lng"` // 经度
}

// ToPoint 转换为 geo.Point
func (l Location) ToPoint() geo.Point {
	return geo.Point{Lat: l.Lat, Lng: l.Lng}
}

// NewLocation 由 geo.Point 构造
func NewLocation(p geo.Point) Location {
	return Location{Lat: p.Lat, Lng: p.Lng}
}

// UserInfo 公开的用户信息（不含手机号和验证码字段）
type UserInfo struct {
	ID              string    `json:"id"`              // 用户id
	Name            string    `json:"name"`            // 昵称
	Gender          string    `json:"gender"`          // 性别
	Address         string    `json:"address"`         // 地址
	Location        Location  `json:"location"`        // 位置
	ProfilePhoto    string    `json:"profilePhoto"`    // 头像
	Bio             string    `json:"bio"`             // 自我介绍
	IsOnline        bool      `json:"isOnline"`        // 是否在线
	LastSeen        time.Time `json:"lastSeen"`        // 最近活跃时间
	MatchCount      int       `json:"matchCount"`      // 匹配次数
	ActualMeetCount int       `json:"actualMeetCount"` // 见面次数
	CreatedAt       time.Time `json:"createdAt"`       // 注册时间
}

// SelfInfo 本人可见的用户信息
type SelfInfo struct {
	UserInfo
	PhoneNumber string `json:"phoneNumber"` // 手机号
	SmsVerified bool   `json:"smsVerified"` // 是否已验证
}

// UserSummary 事件中携带的用户摘要
type UserSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ProfilePhoto string `json:"profilePhoto"`
	Bio          string `json:"bio,omitempty"`
}

// NearbyUser 附近用户，附带距离（米）
type NearbyUser struct {
	UserInfo
	Distance float64 `json:"distance"`
}

// PaginationQuery 分页参数
type PaginationQuery struct {
	Page  int `form:"page" binding:"omitempty,min=1"`          // 页码，从 1 开始
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"` // 每页数量
}

// Normalize 填充默认值
func (q *PaginationQuery) Normalize(defaultLimit int) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
}

// TotalPages 向上取整
func TotalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

// ==================== 转换函数 ====================

// ConvertUserInfo model.User -> UserInfo
func ConvertUserInfo(u *model.User) *UserInfo {
	if u == nil {
		return nil
	}
	return &UserInfo{
		ID:              u.ID,
		Name:            u.Name,
		Gender:          u.Gender,
		Address:         u.Address,
		Location:        Location{Lat: u.Lat, Lng: u.Lng},
		ProfilePhoto:    u.ProfilePhoto,
		Bio:             u.Bio,
		IsOnline:        u.IsOnline,
		LastSeen:        u.LastSeen,
		MatchCount:      u.MatchCount,
		ActualMeetCount: u.ActualMeetCount,
		CreatedAt:       u.CreatedAt,
	}
}

// ConvertSelfInfo model.User -> SelfInfo
func ConvertSelfInfo(u *model.User) *SelfInfo {
	if u == nil {
		return nil
	}
	return &SelfInfo{
		UserInfo:    *ConvertUserInfo(u),
		PhoneNumber: u.PhoneNumber,
		SmsVerified: u.SmsVerified,
	}
}

// ConvertUserSummary model.User -> UserSummary
func ConvertUserSummary(u *model.User) *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{
		ID:           u.ID,
		Name:         u.Name,
		ProfilePhoto: u.ProfilePhoto,
		Bio:          u.Bio,
	}
}
