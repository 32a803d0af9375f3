package model

import "time"

// Meeting 接受匹配后生成的会面，与 Match 一对一。
// actual_meeting_time 只会被写入一次，meeting_success 与之同步。
type Meeting struct {
	ID                 string     `gorm:"column:id;type:char(20);primaryKey;comment:雪花id"`
	MatchID            string     `gorm:"column:match_id;type:char(20);not null;uniqueIndex:uidx_match;comment:匹配id"`
	RequesterID        string     `gorm:"column:requester_id;type:char(20);not null;index;comment:发起人"`
	TargetUserID       string     `gorm:"column:target_user_id;type:char(20);not null;index;comment:被邀请人"`
	ScheduledTime      time.Time  `gorm:"column:scheduled_time;not null;comment:预定时间"`
	ActualMeetingTime  *time.Time `gorm:"column:actual_meeting_time;comment:实际见面时间"`
	RequesterConfirmed bool       `gorm:"column:requester_confirmed;not null;default:false"`
	TargetConfirmed    bool       `gorm:"column:target_confirmed;not null;default:false"`
	BothConfirmed      bool       `gorm:"column:both_confirmed;not null;default:false"`
	RequesterRating    *int8      `gorm:"column:requester_rating;comment:发起人评分 1-5"`
	TargetRating       *int8      `gorm:"column:target_rating;comment:被邀请人评分 1-5"`
	MeetingSuccess     bool       `gorm:"column:meeting_success;not null;default:false"`
	Notes              *string    `gorm:"column:notes;type:varchar(1000)"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Meeting) TableName() string { return "meetings" }

// IsParticipant 是否为会面参与者
func (m *Meeting) IsParticipant(userID string) bool {
	return m.RequesterID == userID || m.TargetUserID == userID
}

// OtherParticipant 返回另一方 id
func (m *Meeting) OtherParticipant(userID string) string {
	if m.RequesterID == userID {
		return m.TargetUserID
	}
	return m.RequesterID
}
