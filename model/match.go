package model

import "time"

const (
	MatchStatusPending  = "pending"
	MatchStatusAccepted = "accepted"
	MatchStatusRejected = "rejected"
	MatchStatusExpired  = "expired"
)

// Match 匹配请求。
// pending_pair 仅在 pending 状态下有值（"小id:大id"），唯一索引保证同一对用户最多一条待处理请求。
type Match struct {
	ID               string     `gorm:"column:id;type:char(20);primaryKey;comment:雪花id"`
	RequesterID      string     `gorm:"column:requester_id;type:char(20);not null;index:idx_requester_created,priority:1;comment:发起人"`
	TargetUserID     string     `gorm:"column:target_user_id;type:char(20);not null;index:idx_target_created,priority:1;comment:被邀请人"`
	Status           string     `gorm:"column:status;type:varchar(16);not null;default:'pending';index:idx_status_expires,priority:1;comment:pending/accepted/rejected/expired"`
	MeetingReason    string     `gorm:"column:meeting_reason;type:varchar(200);not null;comment:见面理由"`
	MeetingLat       float64    `gorm:"column:meeting_lat;type:double;not null;comment:见面点纬度"`
	MeetingLng       float64    `gorm:"column:meeting_lng;type:double;not null;comment:见面点经度"`
	MeetingAddress   *string    `gorm:"column:meeting_address;type:varchar(255);comment:见面点地址"`
	MeetingPlaceName *string    `gorm:"column:meeting_place_name;type:varchar(255);comment:见面点名称"`
	PendingPair      *string    `gorm:"column:pending_pair;type:varchar(41);uniqueIndex:uidx_pending_pair;comment:待处理唯一键"`
	ExpiresAt        time.Time  `gorm:"column:expires_at;not null;index:idx_status_expires,priority:2;comment:过期时间"`
	RespondedAt      *time.Time `gorm:"column:responded_at;comment:响应时间"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime;index:idx_requester_created,priority:2;index:idx_target_created,priority:2"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Match) TableName() string { return "matches" }

// PairKey 无序用户对的唯一键
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// IsExpiredAt 待处理且已过期
func (m *Match) IsExpiredAt(now time.Time) bool {
	return m.Status == MatchStatusPending && !now.Before(m.ExpiresAt)
}
