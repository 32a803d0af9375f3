package dto

import (
	"time"

	"github.com/sudo-enjoy/matching-app-be/model"
)

// ==================== 匹配服务 DTO ====================

// MeetingPoint 见面地点
type MeetingPoint struct {
	Location
	Address   *string `json:"address,omitempty"`
	PlaceName *string `json:"placeName,omitempty"`
}

// MatchInfo 匹配
type MatchInfo struct {
	ID            string       `json:"id"`
	RequesterID   string       `json:"requesterId"`
	TargetUserID  string       `json:"targetUserId"`
	Requester     *UserSummary `json:"requester,omitempty"`
	TargetUser    *UserSummary `json:"targetUser,omitempty"`
	Status        string       `json:"status"`
	MeetingReason string       `json:"meetingReason"`
	MeetingPoint  MeetingPoint `json:"meetingPoint"`
	CreatedAt     time.Time    `json:"createdAt"`
	ExpiresAt     time.Time    `json:"expiresAt"`
	RespondedAt   *time.Time   `json:"respondedAt,omitempty"`
}

// SendMatchRequest 发起匹配
type SendMatchRequest struct {
	TargetUserID  string `json:"targetUserId" binding:"required"`
	MeetingReason string `json:"meetingReason" binding:"required"`
}

// MatchResponse 单个匹配响应
type MatchResponse struct {
	Message string     `json:"message"`
	Match   *MatchInfo `json:"match"`
}

// RespondMatchRequest 响应匹配
type RespondMatchRequest struct {
	MatchID  string `json:"matchId" binding:"required"`
	Response string `json:"response" binding:"required,oneof=accepted rejected"`
}

// MatchHistoryQuery 历史查询
type MatchHistoryQuery struct {
	PaginationQuery
	Status string `form:"status" binding:"omitempty,oneof=pending accepted rejected expired"`
}

// MatchHistoryResponse 历史
type MatchHistoryResponse struct {
	Matches     []*MatchInfo `json:"matches"`
	TotalPages  int          `json:"totalPages"`
	CurrentPage int          `json:"currentPage"`
	Total       int64        `json:"total"`
}

// ConfirmMeetingRequest 确认见面
type ConfirmMeetingRequest struct {
	MeetingID string `json:"meetingId" binding:"required"`
}

// MeetingInfo 会面状态
type MeetingInfo struct {
	ID                string     `json:"id"`
	MatchID           string     `json:"matchId,omitempty"`
	BothConfirmed     bool       `json:"bothConfirmed"`
	ActualMeetingTime *time.Time `json:"actualMeetingTime"`
	MeetingSuccess    bool       `json:"meetingSuccess"`
	RequesterRating   *int8      `json:"requesterRating,omitempty"`
	TargetRating      *int8      `json:"targetRating,omitempty"`
	Notes             *string    `json:"notes,omitempty"`
}

// MeetingResponse 会面响应
type MeetingResponse struct {
	Message string       `json:"message"`
	Meeting *MeetingInfo `json:"meeting"`
}

// RateMeetingRequest 评价会面
type RateMeetingRequest struct {
	MeetingID string  `json:"meetingId" binding:"required"`
	Rating    int8    `json:"rating" binding:"required,min=1,max=5"`
	Notes     *string `json:"notes" binding:"omitempty,max=1000"`
}

// ConvertMatchInfo model.Match -> MatchInfo，users 用于填充双方摘要
func ConvertMatchInfo(m *model.Match, users map[string]*model.User) *MatchInfo {
	if m == nil {
		return nil
	}
	info := &MatchInfo{
		ID:            m.ID,
		RequesterID:   m.RequesterID,
		TargetUserID:  m.TargetUserID,
		Status:        m.Status,
		MeetingReason: m.MeetingReason,
		MeetingPoint:  ConvertMeetingPoint(m),
		CreatedAt:     m.CreatedAt,
		ExpiresAt:     m.ExpiresAt,
		RespondedAt:   m.RespondedAt,
	}
	if users != nil {
		info.Requester = ConvertUserSummary(users[m.RequesterID])
		info.TargetUser = ConvertUserSummary(users[m.TargetUserID])
	}
	return info
}

// ConvertMeetingPoint 见面点
func ConvertMeetingPoint(m *model.Match) MeetingPoint {
	return MeetingPoint{
		Location:  Location{Lat: m.MeetingLat, Lng: m.MeetingLng},
		Address:   m.MeetingAddress,
		PlaceName: m.MeetingPlaceName,
	}
}

// ConvertMeetingInfo model.Meeting -> MeetingInfo
func ConvertMeetingInfo(m *model.Meeting) *MeetingInfo {
	if m == nil {
		return nil
	}
	return &MeetingInfo{
		ID:                m.ID,
		MatchID:           m.MatchID,
		BothConfirmed:     m.BothConfirmed,
		ActualMeetingTime: m.ActualMeetingTime,
		MeetingSuccess:    m.MeetingSuccess,
		RequesterRating:   m.RequesterRating,
		TargetRating:      m.TargetRating,
		Notes:             m.Notes,
	}
}
