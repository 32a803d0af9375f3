package dto

import "time"

// ==================== 用户服务 DTO ====================

// NearbyQuery 附近用户查询参数
type NearbyQuery struct {
	Lat        *float64 `form:"lat" binding:"required,min=-90,max=90"`
	Lng        *float64 `form:"lng" binding:"required,min=-180,max=180"`
	Radius     float64  `form:"radius" binding:"omitempty,min=0"`
	OnlineOnly bool     `form:"onlineOnly"`
}

// NearbyResponse 附近用户
type NearbyResponse struct {
	Users     []*NearbyUser `json:"users"`
	Count     int           `json:"count"`
	Truncated bool          `json:"truncated"` // 半径内用户超过返回上限，只返回最近的一批
}

// UpdateLocationRequest 更新位置
type UpdateLocationRequest struct {
	Lat *float64 `json:"lat" binding:"required,min=-90,max=90"`
	Lng *float64 `json:"lng" binding:"required,min=-180,max=180"`
}

// UpdateLocationResponse 更新位置响应
type UpdateLocationResponse struct {
	Message  string   `json:"message"`
	Location Location `json:"location"`
}

// ProfileResponse 他人资料
type ProfileResponse struct {
	User *UserInfo `json:"user"`
}

// UpdateProfileRequest 更新资料，未传字段不修改
type UpdateProfileRequest struct {
	Name         *string `json:"name" binding:"omitempty,min=2,max=50"`     // 昵称(2-50字符)
	Bio          *string `json:"bio" binding:"omitempty,max=500"`           // 自我介绍
	ProfilePhoto *string `json:"profilePhoto" binding:"omitempty,url"`      // 头像URL
	Address      *string `json:"address" binding:"omitempty,min=5,max=200"` // 地址
}

// UpdateProfileResponse 更新后的资料
type UpdateProfileResponse struct {
	Message string    `json:"message"`
	User    *SelfInfo `json:"user"`
}

// SetStatusRequest 切换在线状态
type SetStatusRequest struct {
	IsOnline *bool `json:"isOnline" binding:"required"`
}

// SetStatusResponse 在线状态
type SetStatusResponse struct {
	Message  string    `json:"message"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}

// UploadAvatarResponse 上传头像响应 DTO
type UploadAvatarResponse struct {
	AvatarURL string `json:"avatarUrl"` // 头像URL
}

// ListUsersResponse 用户列表
type ListUsersResponse struct {
	Users       []*UserInfo `json:"users"`
	Count       int         `json:"count"`
	Total       int64       `json:"total"`
	TotalPages  int         `json:"totalPages"`
	CurrentPage int         `json:"currentPage"`
}
