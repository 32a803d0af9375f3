package dto

import "time"

// ==================== 实时事件名 ====================

const (
	// 上行
	EventUpdateLocation       = "updateLocation"
	EventJoinRoom             = "joinRoom"
	EventLeaveRoom            = "leaveRoom"
	EventSendMessage          = "sendMessage"
	EventApproachingMeeting   = "approachingMeeting"
	EventRequestLocationShare = "requestLocationShare"
	EventShareLocation        = "shareLocation"
	EventPing                 = "ping"

	// 下行
	EventUserOnline             = "userOnline"
	EventUserOffline            = "userOffline"
	EventUserStatusUpdate       = "userStatusUpdate"
	EventUserLocationUpdate     = "userLocationUpdate"
	EventLocationUpdated        = "locationUpdated"
	EventNewMessage             = "newMessage"
	EventUserApproachingMeeting = "userApproachingMeeting"
	EventLocationShareRequest   = "locationShareRequest"
	EventLocationShared         = "locationShared"
	EventLocationShareExpired   = "locationShareExpired"
	EventPong                   = "pong"
	EventError                  = "error"

	// 匹配
	EventNewMatchRequest  = "newMatchRequest"
	EventMatchAccepted    = "matchAccepted"
	EventMatchConfirmed   = "matchConfirmed"
	EventMatchRejected    = "matchRejected"
	EventMeetingConfirmed = "meetingConfirmed"
)

// ==================== 下行事件负载 ====================

// UserOnlinePayload 用户上线
type UserOnlinePayload struct {
	UserID       string    `json:"userId"`
	Name         string    `json:"name"`
	Location     *Location `json:"location,omitempty"`
	ProfilePhoto string    `json:"profilePhoto"`
}

// UserOfflinePayload 用户离线
type UserOfflinePayload struct {
	UserID   string    `json:"userId"`
	LastSeen time.Time `json:"lastSeen"`
}

// UserStatusPayload 手动切换在线状态
type UserStatusPayload struct {
	UserID   string    `json:"userId"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}

// UserLocationPayload 位置变化
type UserLocationPayload struct {
	UserID    string    `json:"userId"`
	Location  Location  `json:"location"`
	Timestamp time.Time `json:"timestamp"`
}

// LocationUpdatedPayload 位置更新回执
type LocationUpdatedPayload struct {
	Success  bool     `json:"success"`
	Location Location `json:"location"`
}

// NewMessagePayload 房间消息
type NewMessagePayload struct {
	RoomID     string    `json:"roomId"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

// ApproachingPayload 接近见面点
type ApproachingPayload struct {
	MatchID   string    `json:"matchId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Distance  float64   `json:"distance"`
	Timestamp time.Time `json:"timestamp"`
}

// LocationShareRequestPayload 请求共享位置
type LocationShareRequestPayload struct {
	RequesterID   string `json:"requesterId"`
	RequesterName string `json:"requesterName"`
}

// LocationSharedPayload 共享位置
type LocationSharedPayload struct {
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Location   Location  `json:"location"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// LocationShareExpiredPayload 共享结束
type LocationShareExpiredPayload struct {
	SenderID string `json:"senderId"`
}

// TimestampPayload ping/pong
type TimestampPayload struct {
	Timestamp int64 `json:"timestamp"`
}

// ErrorPayload 协议错误
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewMatchRequestPayload 收到匹配请求
type NewMatchRequestPayload struct {
	MatchID       string       `json:"matchId"`
	Requester     *UserSummary `json:"requester"`
	MeetingReason string       `json:"meetingReason"`
	MeetingPoint  MeetingPoint `json:"meetingPoint"`
	ExpiresAt     time.Time    `json:"expiresAt"`
}

// MatchAcceptedPayload 发起方收到：对方已接受
type MatchAcceptedPayload struct {
	MatchID       string       `json:"matchId"`
	TargetUser    *UserSummary `json:"targetUser"`
	MeetingPoint  MeetingPoint `json:"meetingPoint"`
	MeetingID     string       `json:"meetingId"`
	ScheduledTime time.Time    `json:"scheduledTime"`
}

// MatchConfirmedPayload 被邀请方收到：会面已建立
type MatchConfirmedPayload struct {
	MatchID       string       `json:"matchId"`
	Requester     *UserSummary `json:"requester"`
	MeetingPoint  MeetingPoint `json:"meetingPoint"`
	MeetingID     string       `json:"meetingId"`
	ScheduledTime time.Time    `json:"scheduledTime"`
}

// MatchRejectedPayload 发起方收到：对方已拒绝
type MatchRejectedPayload struct {
	MatchID      string `json:"matchId"`
	TargetUserID string `json:"targetUserId"`
}

// MeetingConfirmedPayload 对方确认见面
type MeetingConfirmedPayload struct {
	MeetingID     string `json:"meetingId"`
	ConfirmedBy   string `json:"confirmedBy"`
	BothConfirmed bool   `json:"bothConfirmed"`
}
